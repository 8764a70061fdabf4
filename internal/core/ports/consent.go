package ports

import "errors"

// ConsentTokenService binds the citizen-consent browser round-trip to a
// correlation entry with a signed token. The token carries no personal
// data, only the correlation identifier.
type ConsentTokenService interface {
	// Issue returns a signed token for the correlation id.
	Issue(correlationID string) (string, error)

	// Verify validates the token and returns the correlation id.
	// Returns ErrConsentTokenInvalid for tampered or expired tokens.
	Verify(token string) (string, error)
}

// ErrConsentTokenInvalid is returned for tampered or expired consent tokens.
var ErrConsentTokenInvalid = errors.New("consent token invalid")
