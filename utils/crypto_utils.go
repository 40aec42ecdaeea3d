package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptionKeyEnv 服务器上通过环境变量提供密钥
const EncryptionKeyEnv = "ENCRYPTION_KEY"

// EncryptedPrefix marks a config value produced by Encrypt.
const EncryptedPrefix = "enc:"

var (
	ErrEncryptionKeyNotSet = errors.New(EncryptionKeyEnv + " environment variable is not set")
	ErrDecryptionFailed    = errors.New("decryption failed")
)

// ParseEncryptionKey key 必须是 32 个字符
func ParseEncryptionKey(keyStr string) (*[32]byte, error) {
	if len(keyStr) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 characters long, but got %d characters", len(keyStr))
	}
	var key [32]byte
	copy(key[:], keyStr)
	return &key, nil
}

// LoadEncryptionKey 从环境变量中加载加密密钥
func LoadEncryptionKey() (*[32]byte, error) {
	keyStr := os.Getenv(EncryptionKeyEnv)
	if keyStr == "" {
		return nil, ErrEncryptionKeyNotSet
	}
	return ParseEncryptionKey(keyStr)
}

// Encrypt seals s with a random nonce and returns base64(nonce || box).
func Encrypt(s string, key *[32]byte) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	encrypted := secretbox.Seal(nonce[:], []byte(s), &nonce, key)
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

func Decrypt(encoded string, key *[32]byte) (string, error) {
	encrypted, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(encrypted) < 24+secretbox.Overhead {
		return "", ErrDecryptionFailed
	}
	var nonce [24]byte
	copy(nonce[:], encrypted[:24])

	decrypted, ok := secretbox.Open(nil, encrypted[24:], &nonce, key)
	if !ok {
		return "", ErrDecryptionFailed
	}
	return string(decrypted), nil
}

func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, EncryptedPrefix)
}

// DecryptValue returns s unchanged unless it carries EncryptedPrefix.
func DecryptValue(s string, key *[32]byte) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	if key == nil {
		return "", ErrEncryptionKeyNotSet
	}
	return Decrypt(strings.TrimPrefix(s, EncryptedPrefix), key)
}
