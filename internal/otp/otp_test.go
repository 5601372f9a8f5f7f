package otp

import (
	"errors"
	"strconv"
	"testing"
)

func TestGenerate_ReturnsSixDigitsInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := Generate(CryptoSource{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !ValidFormat(code) {
			t.Fatalf("code %q is not six digits", code)
		}
		n, _ := strconv.Atoi(code)
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d out of range", n)
		}
	}
}

func TestGenerate_FixedSource(t *testing.T) {
	cases := []struct {
		offset int64
		want   string
	}{
		{0, "100000"},
		{383920, "483920"},
		{899999, "999999"},
		{900000, "100000"},
	}
	for _, tc := range cases {
		code, err := Generate(FixedSource(tc.offset))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if code != tc.want {
			t.Errorf("Generate(FixedSource(%d)) = %q, want %q", tc.offset, code, tc.want)
		}
	}
}

type badSource struct{ v int64 }

func (b badSource) Int63n(int64) (int64, error) { return b.v, nil }

type failingSource struct{}

func (failingSource) Int63n(int64) (int64, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate_RejectsBadSource(t *testing.T) {
	if _, err := Generate(badSource{v: 900000}); !errors.Is(err, ErrBadSource) {
		t.Errorf("out-of-range source: err = %v, want ErrBadSource", err)
	}
	if _, err := Generate(badSource{v: -1}); !errors.Is(err, ErrBadSource) {
		t.Errorf("negative source: err = %v, want ErrBadSource", err)
	}
	if _, err := Generate(failingSource{}); err == nil {
		t.Error("failing source should return error")
	}
}

func TestValidFormat(t *testing.T) {
	valid := []string{"000000", "483920", "999999"}
	invalid := []string{"", "12345", "1234567", "12a456", " 12345", "١٢٣٤٥٦", "12345\n"}
	for _, c := range valid {
		if !ValidFormat(c) {
			t.Errorf("ValidFormat(%q) = false, want true", c)
		}
	}
	for _, c := range invalid {
		if ValidFormat(c) {
			t.Errorf("ValidFormat(%q) = true, want false", c)
		}
	}
}
