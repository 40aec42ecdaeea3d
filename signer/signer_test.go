package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/bnconnector/utils"
)

func pkcs8PEM(t *testing.T, key interface{}) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestHMACSigner(t *testing.T) {
	creds := &Credentials{APIKey: "key", APISecret: "secret"}
	params := utils.Params{"symbol": "BTCUSDT", "timestamp": 1}

	got, err := NewCache().Sign(creds, params)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("symbol=BTCUSDT&timestamp=1"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), got)
}

func TestRSASigner(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	creds := &Credentials{APIKey: "key", PrivateKey: pkcs8PEM(t, key)}

	payload := "symbol=BNBUSDT&timestamp=2"
	s, err := New(creds)
	require.NoError(t, err)
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	hashed := sha256.Sum256([]byte(payload))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, hashed[:], raw))
}

func TestRSASignerPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemText := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))

	s, err := New(&Credentials{PrivateKey: pemText})
	require.NoError(t, err)
	assert.IsType(t, &rsaSigner{}, s)
}

func TestEd25519SignerFromFile(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ed25519.pem")
	require.NoError(t, os.WriteFile(path, []byte(pkcs8PEM(t, priv)), 0o600))

	s, err := New(&Credentials{PrivateKey: path})
	require.NoError(t, err)

	payload := "apiKey=k&timestamp=3"
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte(payload), raw))
}

func TestEncryptedPEMWithPassphrase(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	//nolint:staticcheck
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), []byte("pass"), x509.PEMCipherAES256)
	require.NoError(t, err)
	pemText := string(pem.EncodeToMemory(block))

	_, err = New(&Credentials{PrivateKey: pemText})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	s, err := New(&Credentials{PrivateKey: pemText, PrivateKeyPassphrase: "pass"})
	require.NoError(t, err)
	assert.IsType(t, &rsaSigner{}, s)

	_, err = New(&Credentials{PrivateKey: pemText, PrivateKeyPassphrase: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestEncryptedPKCS8WithPassphrase(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		signer Signer
	}{
		{name: "ed25519", path: "testdata/ed25519_encrypted.pem", signer: &ed25519Signer{}},
		{name: "rsa", path: "testdata/rsa_encrypted.pem", signer: &rsaSigner{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&Credentials{PrivateKey: tt.path})
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)
			_, err = New(&Credentials{PrivateKey: tt.path, PrivateKeyPassphrase: "wrong"})
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)

			s, err := New(&Credentials{PrivateKey: tt.path, PrivateKeyPassphrase: "secret"})
			require.NoError(t, err)
			require.IsType(t, tt.signer, s)

			payload := "symbol=BTCUSDT&timestamp=1"
			sig, err := s.Sign(payload)
			require.NoError(t, err)
			raw, err := base64.StdEncoding.DecodeString(sig)
			require.NoError(t, err)
			switch k := s.(type) {
			case *ed25519Signer:
				assert.True(t, ed25519.Verify(k.key.Public().(ed25519.PublicKey), []byte(payload), raw))
			case *rsaSigner:
				hashed := sha256.Sum256([]byte(payload))
				assert.NoError(t, rsa.VerifyPKCS1v15(&k.key.PublicKey, crypto.SHA256, hashed[:], raw))
			}
		})
	}
}

func TestSignerErrors(t *testing.T) {
	_, err := New(&Credentials{APIKey: "only"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New(&Credentials{PrivateKey: "not a key"})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = New(&Credentials{PrivateKey: pkcs8PEM(t, ecKey)})
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestPrivateKeyTakesPrecedence(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := New(&Credentials{APISecret: "secret", PrivateKey: pkcs8PEM(t, priv)})
	require.NoError(t, err)
	assert.IsType(t, &ed25519Signer{}, s)
}

func TestCacheParsesOnce(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	creds := &Credentials{PrivateKey: pkcs8PEM(t, priv)}

	cache := NewCache()
	builds := 0
	cache.build = func(c *Credentials) (Signer, error) {
		builds++
		return New(c)
	}

	params := utils.Params{"symbol": "BTCUSDT", "timestamp": 10}
	first, err := cache.Sign(creds, params)
	require.NoError(t, err)
	second, err := cache.Sign(creds, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, builds)

	// same values, different identity
	clone := *creds
	_, err = cache.Sign(&clone, params)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
	_, err = cache.Sign(creds, params)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewCache()
	creds := &Credentials{}
	_, err := cache.Sign(creds, utils.Params{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, 0, cache.Len())
}
