package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOsEnvProvider(t *testing.T) {
	t.Setenv("TEST1", "VALUE1")
	t.Setenv("TEST2", "VALUE2")

	provider := NewOsEnvProvider()

	value, err := provider.Get(t.Context(), "TEST1")
	require.NoError(t, err)
	assert.Equal(t, "VALUE1", value)

	value, err = provider.Get(t.Context(), "TEST2")
	require.NoError(t, err)
	assert.Equal(t, "VALUE2", value)

	value, err = provider.Get(t.Context(), "NOT_FOUND_XYZ")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestKeyValueProvider(t *testing.T) {
	provider := NewKeyValueProvider(map[string]string{"OPENAI_API_KEY": "sk-test"})

	value, err := provider.Get(t.Context(), "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", value)

	value, err = provider.Get(t.Context(), "MISSING")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestEnvListProvider(t *testing.T) {
	provider := NewEnvListProvider([]string{"A=1", "B=2", "MALFORMED"})

	value, err := provider.Get(t.Context(), "B")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	value, err = provider.Get(t.Context(), "MALFORMED")
	require.NoError(t, err)
	assert.Empty(t, value)
}
