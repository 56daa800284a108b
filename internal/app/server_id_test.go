package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateServerID(t *testing.T) {
	t.Setenv("T2M_SERVER_ID", "")
	id := GenerateServerID()
	assert.True(t, strings.HasPrefix(id, "talk2m-gateway-"), id)
	assert.NotEqual(t, id, GenerateServerID())

	t.Setenv("T2M_SERVER_ID", "gw-1")
	assert.Equal(t, "gw-1", GenerateServerID())
}
