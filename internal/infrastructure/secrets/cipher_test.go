package secrets_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moopoint/chat-api/internal/infrastructure/secrets"
)

func newCipher(t *testing.T) *secrets.AESCipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := secrets.NewAESCipher(key)
	require.NoError(t, err)
	return cipher
}

func TestAESCipher_RoundTrip(t *testing.T) {
	cipher := newCipher(t)

	ciphertext, err := cipher.Encrypt("sk-very-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-very-secret", ciphertext)

	plaintext, err := cipher.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret", plaintext)
}

func TestAESCipher_NonceMakesCiphertextUnique(t *testing.T) {
	cipher := newCipher(t)

	first, err := cipher.Encrypt("same input")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAESCipher_RejectsWrongKeyLength(t *testing.T) {
	_, err := secrets.NewAESCipher(make([]byte, 16))
	assert.Error(t, err)
}

func TestAESCipher_DecryptRejectsTamperedInput(t *testing.T) {
	cipher := newCipher(t)

	ciphertext, err := cipher.Encrypt("payload")
	require.NoError(t, err)

	_, err = cipher.Decrypt("A" + ciphertext[1:])
	assert.Error(t, err)
}

func TestAESCipher_DecryptRejectsGarbage(t *testing.T) {
	cipher := newCipher(t)

	_, err := cipher.Decrypt("not base64 %%%")
	assert.Error(t, err)

	_, err = cipher.Decrypt("")
	assert.Error(t, err)
}

func TestAESCipher_KeysDoNotInterchange(t *testing.T) {
	a := newCipher(t)
	b := newCipher(t)

	ciphertext, err := a.Encrypt("payload")
	require.NoError(t, err)

	_, err = b.Decrypt(ciphertext)
	assert.Error(t, err)
}
