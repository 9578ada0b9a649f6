package blobstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Presigner mints short-lived signed PUT URLs for the durable blob store.
// The store verifies the same HMAC over (method, key, expiry); the server
// never hands out its signing secret.
type Presigner struct {
	endpoint string
	secret   []byte
}

func NewPresigner(endpoint, secret string) *Presigner {
	return &Presigner{
		endpoint: strings.TrimRight(endpoint, "/"),
		secret:   []byte(secret),
	}
}

func (p *Presigner) PresignPut(key string, expiresAt time.Time) string {
	exp := expiresAt.Unix()
	sig := p.sign("PUT", key, exp)
	return fmt.Sprintf("%s/%s?exp=%d&sig=%s", p.endpoint, key, exp, sig)
}

// Verify checks a signature produced by PresignPut. Comparison is
// constant-time.
func (p *Presigner) Verify(method, key string, exp int64, sig string, now time.Time) bool {
	if now.Unix() > exp {
		return false
	}
	expected := p.sign(method, key, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (p *Presigner) sign(method, key string, exp int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
