// Package otp generates and shape-checks the six-digit sign-in codes.
package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
)

const (
	// Digits is the length of every code.
	Digits = 6

	minCode  = 100000
	codeSpan = 900000 // codes fall in [100000, 999999]
)

// ErrBadSource is returned when a RandomSource yields a value outside [0, n).
var ErrBadSource = errors.New("otp: random source returned out-of-range value")

// RandomSource yields a uniformly distributed integer in [0, n).
type RandomSource interface {
	Int63n(n int64) (int64, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

// Int63n returns a uniform value in [0, n) from the OS CSPRNG.
func (CryptoSource) Int63n(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// FixedSource always yields the same offset (reduced mod n). Tests use it to pin the issued code.
type FixedSource int64

// Int63n returns the fixed value mod n.
func (f FixedSource) Int63n(n int64) (int64, error) {
	v := int64(f) % n
	if v < 0 {
		v += n
	}
	return v, nil
}

// Generate returns a six-digit code in 100000–999999 using src. No leading zeros.
func Generate(src RandomSource) (string, error) {
	n, err := src.Int63n(codeSpan)
	if err != nil {
		return "", err
	}
	if n < 0 || n >= codeSpan {
		return "", ErrBadSource
	}
	return strconv.FormatInt(minCode+n, 10), nil
}

// ValidFormat reports whether code is exactly six ASCII digits.
func ValidFormat(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
