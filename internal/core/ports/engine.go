package ports

import "github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"

// SignedMessage is an outbound protocol message ready for transport:
// signed XML plus the base64 form carried in the wire parameter.
type SignedMessage struct {
	// XML is the signed (and possibly encrypted) protocol document.
	XML []byte

	// Encoded is the base64 form for the SAMLRequest/SAMLResponse field.
	Encoded string

	// Destination is the URL the message must be delivered to.
	Destination string

	// Binding selects redirect or post delivery.
	Binding domain.Binding

	// RelayState is echoed alongside the message when non-empty.
	RelayState string
}

// AssertionEngine is the port interface for the opaque cryptographic
// engine that signs, verifies, encrypts and decrypts protocol messages.
// The core never touches key material directly.
type AssertionEngine interface {
	// MarshalRequest produces a signed authentication request message.
	MarshalRequest(req *domain.AuthenticationRequest) (*SignedMessage, error)

	// UnmarshalRequest decodes and verifies an encoded request message.
	// Verification uses the issuer's certificates from its descriptor.
	UnmarshalRequest(encoded string, issuer *RemoteParty) (*domain.AuthenticationRequest, error)

	// MarshalResponse produces a signed, optionally encrypted response
	// message addressed to the recipient.
	MarshalResponse(resp *domain.AuthenticationResponse, recipient *RemoteParty) (*SignedMessage, error)

	// UnmarshalResponse decodes and verifies an encoded response message.
	UnmarshalResponse(encoded string, issuer *RemoteParty) (*domain.AuthenticationResponse, error)

	// ExtractReference decodes an encoded response only far enough to read
	// its inResponseTo reference and issuer, without verifying it. The
	// caller uses the reference to locate the pending context, whose
	// stored metadata URL then drives full verification.
	ExtractReference(encoded string) (inResponseTo, issuer string, err error)

	// MarshalFault produces a signed protocol fault response.
	MarshalFault(resp *domain.AuthenticationResponse) (*SignedMessage, error)

	// VerifyDescriptor validates the enveloped signature of a metadata
	// descriptor against the configured trust anchors, returning the
	// validated bytes. The returned bytes must be used for any further
	// parsing to prevent signature wrapping.
	VerifyDescriptor(descriptor []byte) ([]byte, error)
}
