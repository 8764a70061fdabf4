package domain

import "fmt"

// Binding selects the HTTP binding a protocol message travels over.
type Binding string

const (
	BindingRedirect Binding = "redirect"
	BindingPost     Binding = "post"
)

// ParseBinding accepts the short form or the full SAML binding URI.
func ParseBinding(s string) (Binding, error) {
	switch s {
	case string(BindingRedirect), "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect", "GET":
		return BindingRedirect, nil
	case string(BindingPost), "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST", "POST":
		return BindingPost, nil
	}
	return "", fmt.Errorf("unknown binding %q", s)
}

// FormatVersion tags the message format generation a request uses.
type FormatVersion string

const (
	// FormatStork is the legacy format; the assertion consumer URL travels
	// in the request.
	FormatStork FormatVersion = "stork1"

	// FormatEidas is the current format; the assertion consumer URL is
	// suppressed on the outbound leg and resolved from metadata by the
	// identity-provider side.
	FormatEidas FormatVersion = "eidas1"
)

// SPType tags the sector of the requesting service provider.
type SPType string

const (
	SPTypePublic  SPType = "public"
	SPTypePrivate SPType = "private"
)

// AuthenticationRequest is one cross-border authentication request.
// Immutable once dispatched to the remote party, except for fields
// explicitly overwritten by policy.
type AuthenticationRequest struct {
	// ID is the opaque, unique protocol message identifier.
	ID string

	// Issuer is the metadata URL of the issuing party.
	Issuer string

	// Destination is the URL the signed message is addressed to.
	Destination string

	// AssertionConsumerURL is where the final response must be returned.
	// Suppressed on the wire for FormatEidas until the proxy side
	// resolves it from metadata.
	AssertionConsumerURL string

	// ProviderName is the human-readable relying-party name.
	ProviderName string

	// SPID identifies the originating service provider at the edge.
	SPID string

	// SPType is the sector tag, subject to the local-wins policy.
	SPType SPType

	// CitizenCountry is the country the citizen chose to authenticate in.
	CitizenCountry string

	// OriginCountry is the country of the requesting party.
	OriginCountry string

	// Binding is the HTTP binding the message claims to travel over.
	Binding Binding

	// FormatVersion selects the wire format generation.
	FormatVersion FormatVersion

	// LevelOfAssurance is the requested assurance level.
	LevelOfAssurance LevelOfAssurance

	// Comparison is how the offered level must match the requested one.
	Comparison LoAComparison

	// RequestedAttributes is the attribute set the relying party asked for.
	RequestedAttributes *PersonalAttributeList

	// RelayState is echoed back to the requester unchanged.
	RelayState string
}

// Clone returns a deep copy of the request.
func (r *AuthenticationRequest) Clone() *AuthenticationRequest {
	c := *r
	if r.RequestedAttributes != nil {
		c.RequestedAttributes = r.RequestedAttributes.Clone()
	}
	return &c
}

// Validate checks the fields every inbound request must carry.
func (r *AuthenticationRequest) Validate() error {
	switch {
	case r.ID == "":
		return NewFault(KindInvalidParameter, "request has no identifier")
	case r.Issuer == "":
		return NewFault(KindInvalidParameter, "request has no issuer")
	case r.CitizenCountry == "":
		return NewFault(KindInvalidParameter, "request has no citizen country")
	case r.RequestedAttributes == nil || r.RequestedAttributes.Len() == 0:
		return NewFault(KindInvalidParameter, "request has no requested attributes")
	}
	if err := ValidateLoAComparison(r.Comparison); err != nil {
		return WrapFault(KindInvalidParameter, err, "request has invalid comparison")
	}
	return nil
}
