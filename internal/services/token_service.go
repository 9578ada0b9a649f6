package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid access credential")
	ErrTokenExpired = errors.New("access credential expired")
)

// AccessClaims is the decoded content of one access credential: a stateless
// signed proof of (device, user) identity.
type AccessClaims struct {
	DeviceID  uuid.UUID
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService mints and verifies short-lived HS256 credentials. There is
// deliberately no server-side revocation list: verification is a pure
// recompute-and-compare with no storage round trip, so a credential issued
// before a device was revoked stays valid until its own expiry. Operators
// tune that exposure window with TOKEN_TTL.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint issues a credential for (device, user) valid for the configured TTL.
func (s *TokenService) Mint(deviceID, userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub": deviceID.String(),
		"uid": userID.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify recomputes the signature (the jwt library compares HMACs in
// constant time) and then checks expiry. ErrTokenExpired is distinguished
// from ErrInvalidToken so the agent knows whether to refresh or re-pair.
func (s *TokenService) Verify(tokenString string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	deviceIDStr, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	deviceID, err := uuid.Parse(deviceIDStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userIDStr, ok := claims["uid"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, ErrInvalidToken
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &AccessClaims{
		DeviceID:  deviceID,
		UserID:    userID,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
