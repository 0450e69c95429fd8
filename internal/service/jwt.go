package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const identityIssuer = "puzzle_webapp"

// IdentityClaims is the payload of an identity token. Subject is the user id.
type IdentityClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// IdentityService signs and verifies identity tokens. It is the
// session manager's IdentityVerifier.
type IdentityService struct {
	secret  []byte
	ttl     time.Duration
	devMode bool
	nowFn   func() time.Time
}

func NewIdentityService(secret string, ttl time.Duration, devMode bool) (*IdentityService, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdentityService{secret: []byte(secret), ttl: ttl, devMode: devMode, nowFn: time.Now}, nil
}

func (s *IdentityService) Issue(userID, username string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	now := s.nowFn()
	claims := IdentityClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    identityIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *IdentityService) Parse(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(identityIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFn),
	)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject not found")
	}
	return claims, nil
}

// Verify accepts a signed identity token. In dev mode a bare numeric user
// id is accepted as well.
func (s *IdentityService) Verify(_ context.Context, identity string) (string, error) {
	if s.devMode {
		if _, err := strconv.ParseInt(identity, 10, 64); err == nil {
			return identity, nil
		}
	}
	claims, err := s.Parse(identity)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
