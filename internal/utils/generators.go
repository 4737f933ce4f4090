package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	pnrLength   = 10
	pnrAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// GeneratePNR returns a random 10 character booking reference. Ambiguous
// characters (0/O, 1/I) are left out of the alphabet.
func GeneratePNR() (string, error) {
	buf := make([]byte, pnrLength)
	max := big.NewInt(int64(len(pnrAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate pnr: %w", err)
		}
		buf[i] = pnrAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidPNR reports whether s has the shape GeneratePNR produces.
func ValidPNR(s string) bool {
	if len(s) != pnrLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !containsByte(pnrAlphabet, s[i]) {
			return false
		}
	}
	return true
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
