package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet for pairing codes. Excludes 0/O, 1/I/L and lowercase so the code
// survives being read aloud or typed from a phone screen.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const PairingCodeLength = 6

// GeneratePairingCode returns a fixed-length code drawn uniformly from the
// unambiguous alphabet using crypto/rand.
func GeneratePairingCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, PairingCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate pairing code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
