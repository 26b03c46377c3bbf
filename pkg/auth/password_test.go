package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("abc")
	require.NoError(t, err)
	assert.NotEqual(t, "abc", hash)
	assert.True(t, CheckPasswordHash("abc", hash))
	assert.False(t, CheckPasswordHash("xyz", hash))
	assert.False(t, CheckPasswordHash("abc", ""))
}

func TestValidateRoomPassword(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateRoomPassword("abc"))
	assert.Error(t, ValidateRoomPassword("   "))
	assert.Error(t, ValidateRoomPassword(strings.Repeat("a", 73)))
	assert.Error(t, ValidateRoomPassword("a\nb"))

	err := ValidateRoomPassword("   ")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Contains(t, err.Error(), "non-space")
}
