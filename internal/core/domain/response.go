package domain

import "time"

// ResponseStatus carries the SAML status of a response.
type ResponseStatus struct {
	// Code is the top-level status URI (Success, Requester, Responder).
	Code string

	// SubCode is the optional second-level status URI.
	SubCode string

	// Message is an optional human-readable status message.
	Message string
}

// Failed reports whether the status is anything but success.
func (s ResponseStatus) Failed() bool {
	return s.Code != StatusSuccess
}

// AuthenticationResponse correlates to exactly one AuthenticationRequest
// via InResponseTo. It is discarded once forwarded to its destination and
// never persisted beyond the single correlation entry.
type AuthenticationResponse struct {
	// ID is the response's own protocol message identifier.
	ID string

	// InResponseTo references the originating request's identifier.
	InResponseTo string

	// Issuer is the metadata URL of the responding party.
	Issuer string

	// Destination is the URL the response is addressed to.
	Destination string

	// IssuerCountry is the country that resolved the authentication.
	IssuerCountry string

	// Status is the protocol status of the authentication.
	Status ResponseStatus

	// LevelOfAssurance is the level the citizen actually authenticated at.
	LevelOfAssurance LevelOfAssurance

	// Attributes are the resolved personal attributes.
	Attributes *PersonalAttributeList

	// Subject is the asserted name identifier, when present.
	Subject string

	// AudienceRestriction limits which party may consume the assertion.
	AudienceRestriction string

	// NotOnOrAfter bounds the validity of the assertion.
	NotOnOrAfter time.Time
}

// Clone returns a deep copy of the response.
func (r *AuthenticationResponse) Clone() *AuthenticationResponse {
	c := *r
	if r.Attributes != nil {
		c.Attributes = r.Attributes.Clone()
	}
	return &c
}

// Validate checks the fields every inbound response must carry.
func (r *AuthenticationResponse) Validate() error {
	switch {
	case r.ID == "":
		return NewFault(KindInvalidParameter, "response has no identifier")
	case r.InResponseTo == "":
		return NewFault(KindInvalidParameter, "response has no inResponseTo reference")
	case r.Issuer == "":
		return NewFault(KindInvalidParameter, "response has no issuer")
	case r.Status.Code == "":
		return NewFault(KindInvalidParameter, "response has no status")
	}
	return nil
}
