package environment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiProviderNone(t *testing.T) {
	provider := NewMultiProvider()
	value, err := provider.Get(t.Context(), "TEST1")

	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestMultiProviderDelegate(t *testing.T) {
	provider := NewMultiProvider(&alwaysFound{}, &neverFound{})
	value, err := provider.Get(t.Context(), "TEST2")

	require.NoError(t, err)
	assert.Equal(t, "FOUND", value)
}

func TestMultiProviderTryInOrder(t *testing.T) {
	provider := NewMultiProvider(&neverFound{}, &alwaysFound{})
	value, err := provider.Get(t.Context(), "TEST3")

	require.NoError(t, err)
	assert.Equal(t, "FOUND", value)
}

func TestMultiProviderPropagatesHardError(t *testing.T) {
	provider := NewMultiProvider(&alwaysFailProvider{}, &alwaysFound{})
	_, err := provider.Get(t.Context(), "TEST4")

	require.Error(t, err)
}

type neverFound struct{}

func (p *neverFound) Get(context.Context, string) (string, error) {
	return "", nil
}

type alwaysFound struct{}

func (p *alwaysFound) Get(context.Context, string) (string, error) {
	return "FOUND", nil
}

type alwaysFailProvider struct{}

func (p *alwaysFailProvider) Get(context.Context, string) (string, error) {
	return "", errors.New("backend unavailable")
}
