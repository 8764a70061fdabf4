// Package consent implements the consent token service with JWT.
// Tokens are signed with RSA (RS256) and are stateless: they carry only
// the correlation identifier, never personal data.
package consent

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// JWTTokenService implements ConsentTokenService using JWT tokens.
type JWTTokenService struct {
	privateKey *rsa.PrivateKey
	issuer     string
	duration   time.Duration
}

// consentClaims defines the JWT claims structure for consent tokens.
// The correlation identifier travels in the standard subject claim.
type consentClaims struct {
	jwt.RegisteredClaims
}

// NewJWTTokenService creates a consent token service. Tokens expire
// after duration, which bounds how long a citizen may sit on the
// consent page.
func NewJWTTokenService(privateKey *rsa.PrivateKey, issuer string, duration time.Duration) *JWTTokenService {
	return &JWTTokenService{
		privateKey: privateKey,
		issuer:     issuer,
		duration:   duration,
	}
}

// Issue generates a signed token bound to the correlation id.
func (s *JWTTokenService) Issue(correlationID string) (string, error) {
	now := time.Now()
	claims := consentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   correlationID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

// Verify validates a token and returns the correlation id it is bound to.
func (s *JWTTokenService) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &consentClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &s.privateKey.PublicKey, nil
	})
	if err != nil {
		return "", ports.ErrConsentTokenInvalid
	}

	claims, ok := parsed.Claims.(*consentClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ports.ErrConsentTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", ports.ErrConsentTokenInvalid
	}

	return claims.Subject, nil
}

// Ensure JWTTokenService implements ports.ConsentTokenService
var _ ports.ConsentTokenService = (*JWTTokenService)(nil)
