package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := NewCodec("test-key")

	stored, err := codec.Encrypt("Ребёнку 4 года, не выговаривает Р")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, Prefix))

	plain, err := codec.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "Ребёнку 4 года, не выговаривает Р", plain)
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	codec := NewCodec("test-key")

	plain, err := codec.Decrypt("старый комментарий без шифрования")
	require.NoError(t, err)
	assert.Equal(t, "старый комментарий без шифрования", plain)
}

func TestDecryptCorruptedCiphertextFails(t *testing.T) {
	codec := NewCodec("test-key")

	_, err := codec.Decrypt(Prefix + "not-valid-base64!!!")
	assert.ErrorIs(t, err, ErrDecrypt)

	stored, err := codec.Encrypt("secret")
	require.NoError(t, err)

	// flipping the key must not silently return ciphertext
	other := NewCodec("different-key")
	_, err = other.Decrypt(stored)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestEmptyValuesPassThrough(t *testing.T) {
	codec := NewCodec("test-key")

	stored, err := codec.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", stored)

	plain, err := codec.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", plain)
}

func TestNilCodecPassesThroughEncrypt(t *testing.T) {
	codec := NewCodec("   ")
	require.Nil(t, codec)

	stored, err := codec.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", stored)

	// but refuses to pretend it can decrypt a marked value
	_, err = codec.Decrypt(Prefix + "AAAA")
	assert.ErrorIs(t, err, ErrDecrypt)
}
