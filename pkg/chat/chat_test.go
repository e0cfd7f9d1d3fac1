package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "be terse"}, System("be terse"))
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, User("hello"))
}
