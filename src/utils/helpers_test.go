package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecrypt(t *testing.T) {
	blob, err := EncryptMessage(testKey, "loyverse-token")
	require.NoError(t, err)
	assert.NotContains(t, blob, "loyverse-token")

	again, err := EncryptMessage(testKey, "loyverse-token")
	require.NoError(t, err)
	assert.NotEqual(t, blob, again)

	plain, err := DecryptMessage(testKey, blob)
	require.NoError(t, err)
	assert.Equal(t, "loyverse-token", plain)
}

func TestDecryptWithWrongKey(t *testing.T) {
	blob, err := EncryptMessage(testKey, "secret")
	require.NoError(t, err)

	other := []byte(strings.Repeat("x", 32))
	_, err = DecryptMessage(other, blob)
	assert.Error(t, err)

	_, err = DecryptMessage(testKey, "abcd")
	assert.Error(t, err)
}

func TestInvalidKeyLength(t *testing.T) {
	_, err := EncryptMessage([]byte("short"), "x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	k, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Len(t, k, 32)

	k, err = ParseKey(string(testKey))
	require.NoError(t, err)
	assert.Equal(t, testKey, k)

	_, err = ParseKey("nope")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********cdef", Mask("sk_live_abcdef"))
	assert.Equal(t, "***", Mask("abc"))
}

func TestSubdomain(t *testing.T) {
	assert.Equal(t, "burger-palace", Subdomain("Burger Palace!"))
}
