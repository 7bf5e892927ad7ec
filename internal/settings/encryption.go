package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"roomchat/internal/constants"
	"roomchat/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

const (
	EnvEnableEncryption = "ROOMCHAT_ENABLE_ENCRYPTION"
	EnvEncryptionSecret = "ROOMCHAT_ENCRYPTION_SECRET"

	minSecretLength = 32
)

// encryptor seals setting values at rest. A nil gcm stores plaintext.
type encryptor struct {
	gcm cipher.AEAD
}

func encryptionEnabled() bool {
	return os.Getenv(EnvEnableEncryption) == "true"
}

func newEncryptorFromEnv() (*encryptor, error) {
	if !encryptionEnabled() {
		return &encryptor{}, nil
	}
	return newEncryptor(os.Getenv(EnvEncryptionSecret))
}

func newEncryptor(secret string) (*encryptor, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s is required when encryption is enabled", EnvEncryptionSecret)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d characters long", minSecretLength)
	}

	key := pbkdf2.Key([]byte(secret), []byte(constants.EncryptionSalt), models.Iterations, models.KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &encryptor{gcm: gcm}, nil
}

func (e *encryptor) enabled() bool {
	return e != nil && e.gcm != nil
}

// seal returns base64(nonce || ciphertext)
func (e *encryptor) seal(plaintext string) (string, error) {
	if !e.enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *encryptor) open(stored string) (string, error) {
	if !e.enabled() {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	if len(data) < models.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.gcm.Open(nil, data[:models.NonceSize], data[models.NonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
