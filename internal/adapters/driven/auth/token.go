// Package auth issues and verifies the session tokens servers exchange
// when delegating a crawl.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = time.Hour

// Issuer is the iss claim of every token.
const Issuer = "addrcrawl"

// ErrMissingSecret indicates the signing secret is not configured.
var ErrMissingSecret = errors.New("auth: signing secret is not configured")

// Ensure TokenService implements the interfaces.
var (
	_ driven.TokenIssuer   = (*TokenService)(nil)
	_ driven.TokenVerifier = (*TokenService)(nil)
)

// Claims are the claims of a session token. Subject is the account ID.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs HS256 tokens with a secret shared by every server.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. A zero ttl selects DefaultTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for accountID.
func (s *TokenService) Issue(_ context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("%w: missing account", domain.ErrInvalidInput)
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the account a token was issued to.
func (s *TokenService) Verify(_ context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: invalid claims", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}
