package platform

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// HashWebhookKey returns the SHA-256 hex digest stored for a bot's
// webhook path key. The plaintext key never touches storage.
func HashWebhookKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// VerifyWebhookKey compares a presented path key against the stored hash
// in constant time. Only after this passes are the bot's encrypted
// credentials decrypted.
func VerifyWebhookKey(key, storedHash string) bool {
	computed := HashWebhookKey(key)

	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// EncryptCredential seals a channel secret or access token with AES-GCM.
// The nonce is prepended to the ciphertext.
func EncryptCredential(masterKey []byte, plaintext string) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// DecryptCredential opens a sealed credential.
func DecryptCredential(masterKey, sealed []byte) (string, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("sealed credential is too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return string(plaintext), nil
}

func newGCM(masterKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return gcm, nil
}
