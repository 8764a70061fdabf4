package domain

import (
	"errors"
	"fmt"
)

// FaultKind categorizes internal failures. Kinds are stable and drive both
// the protocol-level sub-status mapping and the user-facing behaviour.
type FaultKind string

const (
	KindInvalidParameter           FaultKind = "invalid_parameter"
	KindInvalidSession             FaultKind = "invalid_session"
	KindUnauthorized               FaultKind = "unauthorized"
	KindAttributeAccessDenied      FaultKind = "attribute_access_denied"
	KindMandatoryAttributesMissing FaultKind = "mandatory_attributes_missing"
	KindInvalidAttributeList       FaultKind = "invalid_attribute_list"
	KindLoANotSupported            FaultKind = "loa_not_supported"
	KindNoMetadata                 FaultKind = "no_metadata"
	KindInvalidMetadata            FaultKind = "invalid_metadata"
	KindInvalidMetadataSource      FaultKind = "invalid_metadata_source"
	KindSignatureInvalid           FaultKind = "signature_invalid"
	KindAuthenticationFailed       FaultKind = "authentication_failed"
	KindInternal                   FaultKind = "internal"
)

// SAML status and sub-status URIs used in fault responses.
const (
	StatusSuccess   = "urn:oasis:names:tc:SAML:2.0:status:Success"
	StatusRequester = "urn:oasis:names:tc:SAML:2.0:status:Requester"
	StatusResponder = "urn:oasis:names:tc:SAML:2.0:status:Responder"

	SubStatusRequestDenied    = "urn:oasis:names:tc:SAML:2.0:status:RequestDenied"
	SubStatusAuthnFailed      = "urn:oasis:names:tc:SAML:2.0:status:AuthnFailed"
	SubStatusInvalidAttrValue = "urn:oasis:names:tc:SAML:2.0:status:InvalidAttrNameOrValue"
	SubStatusQAANotSupported  = "urn:oasis:names:tc:SAML:2.0:status:NoAuthnContext"
)

// Fault is a tagged error carrying a machine kind, an optional SAML
// sub-status decided by the error translator, a human-readable message and
// the wrapped cause.
type Fault struct {
	Kind      FaultKind
	SubStatus string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (f *Fault) Unwrap() error {
	return f.Cause
}

// Is lets errors.Is match faults by kind using sentinel faults.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// NewFault builds a fault of the given kind with a formatted message.
func NewFault(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapFault builds a fault wrapping a cause.
func WrapFault(kind FaultKind, cause error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the fault kind from any error, unwrapping as needed.
// Errors with no fault in their chain are classified as internal.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// subStatusByKind is the fixed mapping from fault kinds to the four
// protocol sub-status codes. Kinds not listed default to request-denied.
var subStatusByKind = map[FaultKind]string{
	KindLoANotSupported:            SubStatusQAANotSupported,
	KindUnauthorized:               SubStatusRequestDenied,
	KindAttributeAccessDenied:      SubStatusRequestDenied,
	KindInvalidParameter:           SubStatusRequestDenied,
	KindMandatoryAttributesMissing: SubStatusInvalidAttrValue,
	KindInvalidAttributeList:       SubStatusInvalidAttrValue,
	KindAuthenticationFailed:       SubStatusAuthnFailed,
	KindSignatureInvalid:           SubStatusAuthnFailed,
}

// SubStatusFor returns the protocol sub-status for a fault kind.
func SubStatusFor(kind FaultKind) string {
	if s, ok := subStatusByKind[kind]; ok {
		return s
	}
	return SubStatusRequestDenied
}

// UserMessageFor returns the localizable human-readable message for a
// fault kind, keyed by a stable message code.
func UserMessageFor(kind FaultKind) string {
	switch kind {
	case KindInvalidSession:
		return "Your authentication session is invalid or has expired."
	case KindUnauthorized, KindAttributeAccessDenied:
		return "The service provider is not authorized to request this data."
	case KindMandatoryAttributesMissing, KindInvalidAttributeList:
		return "The requested identity data could not be provided."
	case KindLoANotSupported:
		return "The requested level of assurance is not supported."
	case KindNoMetadata, KindInvalidMetadata, KindInvalidMetadataSource, KindSignatureInvalid:
		return "The remote party could not be trusted."
	case KindAuthenticationFailed:
		return "Authentication failed."
	default:
		return "An internal error occurred."
	}
}
