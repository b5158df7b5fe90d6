package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/domain"
	"github.com/go-api-accounts/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. A token is only accepted for the purpose it was issued for.
const (
	PurposeReset  = "reset"
	PurposeAccess = "access"
)

// Claims holds the JWT payload fields.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 JWTs with the process-wide secret.
type Provider struct {
	secret []byte
	now    func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is empty")
	}
	return &Provider{secret: []byte(cfg.JWTSecret), now: time.Now}, nil
}

// Sign issues a token binding subjectID and purpose that expires after ttl.
func (p *Provider) Sign(subjectID, purpose string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.New(),
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the subject bound to tokenStr. Tampering, a foreign key,
// malformed input, expiry or a purpose mismatch all yield ErrInvalidOrExpiredToken.
func (p *Provider) Verify(tokenStr, purpose string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", domain.ErrInvalidOrExpiredToken)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims: %w", domain.ErrInvalidOrExpiredToken)
	}
	if claims.Purpose != purpose {
		return "", fmt.Errorf("token purpose %q: %w", claims.Purpose, domain.ErrInvalidOrExpiredToken)
	}
	return claims.Subject, nil
}
