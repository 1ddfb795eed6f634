package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prefix marks a value as encrypted by this codec. Values without the
// prefix are legacy plaintext imported from the old system: they decode
// as-is, and re-saving them encrypts them. A value carrying the prefix
// that fails to decrypt is an error, never returned verbatim.
const Prefix = "enc:v1:"

var ErrDecrypt = errors.New("secret: decrypt failed")

// Codec encrypts and decrypts short free-text fields with AES-256-GCM.
type Codec struct {
	key []byte
}

// NewCodec derives a 32-byte key from the configured secret. An empty
// secret yields a nil codec whose methods pass values through unchanged.
func NewCodec(key string) *Codec {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(key))
	return &Codec{key: sum[:]}
}

// Encrypt returns the prefixed ciphertext for a plaintext value. Empty
// input stays empty.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if c == nil || plaintext == "" {
		return plaintext, nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Legacy values without the prefix come back
// unchanged.
func (c *Codec) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	if !strings.HasPrefix(stored, Prefix) {
		// legacy plaintext
		return stored, nil
	}
	if c == nil {
		return "", fmt.Errorf("%w: no key configured", ErrDecrypt)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, Prefix)
}
