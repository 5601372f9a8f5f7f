package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
// Inline PEM may use literal "\n" sequences, as single-line env vars often do.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(s)
}

// LoadKeyPair parses the configured private and public keys.
func LoadKeyPair(privatePEM, publicPEM string) (crypto.Signer, crypto.PublicKey, error) {
	priv, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return nil, nil, err
	}
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// NewEphemeralKeyPair returns a fresh ECDSA P-256 key pair. Sessions signed with it
// do not survive a restart, so callers only use it outside production.
func NewEphemeralKeyPair() (crypto.Signer, crypto.PublicKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return key, key.Public(), nil
}

// decodePEM loads s (inline or path) and returns its first PEM block.
func decodePEM(s string) (*pem.Block, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}

// ParsePrivateKey accepts PKCS#1 RSA, SEC 1 EC and PKCS#8 private keys.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok {
			return signer, nil
		}
	}
	return nil, ErrInvalidKey
}

// ParsePublicKey accepts PKCS#1 RSA and PKIX public keys.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodePEM(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}

// KeyAlg is the JWS algorithm for pub: RS256, ES256, or "" when unsupported.
func KeyAlg(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		if k.Curve == elliptic.P256() {
			return "ES256"
		}
	}
	return ""
}
