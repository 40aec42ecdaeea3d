package signer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"
)

var (
	ErrMissingCredentials = errors.New("Either 'apiSecret' or 'privateKey' must be provided for signed requests.")
	ErrInvalidPrivateKey  = errors.New("Invalid private key. Please provide a valid RSA or ED25519 private key.")
	ErrUnsupportedKeyType = errors.New("Unsupported private key type. Must be RSA or ED25519.")
)

// Credentials identify an account. The cache keys signers on the pointer, so build one
// Credentials per account and keep reusing it.
type Credentials struct {
	APIKey    string
	APISecret string
	// PrivateKey is either a path to a PEM file or the PEM text itself.
	PrivateKey           string
	PrivateKeyPassphrase string
}

// Signer signs a canonical query string.
type Signer interface {
	Sign(payload string) (string, error)
}

// New builds the signer matching the credentials. Asymmetric keys are loaded and parsed here.
func New(c *Credentials) (Signer, error) {
	if c == nil {
		return nil, ErrMissingCredentials
	}
	if c.APISecret != "" && c.PrivateKey == "" {
		return &hmacSigner{secret: []byte(c.APISecret)}, nil
	}
	if c.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}

	key, err := loadPrivateKey(c.PrivateKey, c.PrivateKeyPassphrase)
	if err != nil {
		return nil, err
	}
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return &rsaSigner{key: k}, nil
	case ed25519.PrivateKey:
		return &ed25519Signer{key: k}, nil
	case *ed25519.PrivateKey:
		return &ed25519Signer{key: *k}, nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}

type hmacSigner struct {
	secret []byte
}

// Sign HMAC-SHA256, hex encoded
func (s *hmacSigner) Sign(payload string) (string, error) {
	mac := hmac.New(sha256.New, s.secret)
	if _, err := mac.Write([]byte(payload)); err != nil {
		return "", err
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

type rsaSigner struct {
	key *rsa.PrivateKey
}

// Sign RSA PKCS#1 v1.5 over SHA-256, base64 encoded
func (s *rsaSigner) Sign(payload string) (string, error) {
	hashed := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, hashed[:])
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

type ed25519Signer struct {
	key ed25519.PrivateKey
}

// Sign Ed25519 over the raw payload, base64 encoded
func (s *ed25519Signer) Sign(payload string) (string, error) {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.key, []byte(payload))), nil
}

func loadPrivateKey(keyOrPath, passphrase string) (crypto.PrivateKey, error) {
	data := []byte(keyOrPath)
	if fi, err := os.Stat(keyOrPath); err == nil && !fi.IsDir() {
		data, err = os.ReadFile(keyOrPath)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPrivateKey
	}

	der := block.Bytes
	if block.Type == "ENCRYPTED PRIVATE KEY" {
		if passphrase == "" {
			return nil, ErrInvalidPrivateKey
		}
		key, err := pkcs8.ParsePKCS8PrivateKey(der, []byte(passphrase))
		if err != nil {
			return nil, ErrInvalidPrivateKey
		}
		return key, nil
	}
	// legacy Proc-Type: 4,ENCRYPTED blocks
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
		if passphrase == "" {
			return nil, ErrInvalidPrivateKey
		}
		var err error
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
		if err != nil {
			return nil, ErrInvalidPrivateKey
		}
	}
	return parseDER(der)
}

// parseDER tries PKCS#8 first, then PKCS#1.
func parseDER(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if _, err := x509.ParseECPrivateKey(der); err == nil {
		return nil, ErrUnsupportedKeyType
	}
	return nil, ErrInvalidPrivateKey
}
