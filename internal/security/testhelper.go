package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

// testRSAKey returns a process-wide RSA key so tests pay for generation once.
func testRSAKey() (*rsa.PrivateKey, error) {
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	return testKey, testKeyErr
}

// testKeyPEMs returns the shared test key as PKCS#8 private and PKIX public PEM.
func testKeyPEMs() (privatePEM, publicPEM string, err error) {
	key, err := testRSAKey()
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})), nil
}

// NewTestTokenProvider returns an RS256 TokenProvider with issuer "test-issuer", audience
// "test-audience" and a 24h session TTL. For unit tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	key, err := testRSAKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, &key.PublicKey, "test-issuer", "test-audience", 24*time.Hour), nil
}
