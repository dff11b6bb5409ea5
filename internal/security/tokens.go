package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/foodfortalk/talk-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies participant access tokens (HS256).
type TokenIssuer struct {
	secret    []byte
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewTokenIssuer(secret, issuer, audience string, ttl, clockSkew time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		clockSkew: clockSkew,
	}
}

func (s *TokenIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue returns a token with sub=participantID and exp=now+ttl.
func (s *TokenIssuer) Issue(participantID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   participantID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-s.clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, issuer, audience and validity window and returns
// the participant id. Every failure wraps domain.ErrUnauthenticated.
func (s *TokenIssuer) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithExpirationRequired(),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if err := domain.ValidateParticipantID(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	}
	return claims.Subject, nil
}
