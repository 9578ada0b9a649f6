package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 10

// GenerateDeviceSecret returns a base64url-encoded random secret of n bytes.
// The cleartext is returned to the agent exactly once; callers must store
// only the hash.
func GenerateDeviceSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate device secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashDeviceSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckDeviceSecret recomputes the hash of the presented secret and compares
// it to the stored hash.
func CheckDeviceSecret(hashedSecret string, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret))
	return err == nil
}
