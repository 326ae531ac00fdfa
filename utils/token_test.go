package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublicTokenIsURLSafe(t *testing.T) {
	tok, err := NewPublicToken()
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.False(t, strings.ContainsAny(tok, "+/="), "token %q must be URL safe", tok)
}

func TestNewPublicTokenIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewPublicToken()
		require.NoError(t, err)
		assert.False(t, seen[tok], "token %q repeated", tok)
		seen[tok] = true
	}
}
