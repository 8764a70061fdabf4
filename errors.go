package eidasnode

import (
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// Re-export the fault model.
type (
	Fault     = domain.Fault
	FaultKind = domain.FaultKind
)

const (
	KindInvalidParameter           = domain.KindInvalidParameter
	KindInvalidSession             = domain.KindInvalidSession
	KindUnauthorized               = domain.KindUnauthorized
	KindAttributeAccessDenied      = domain.KindAttributeAccessDenied
	KindMandatoryAttributesMissing = domain.KindMandatoryAttributesMissing
	KindInvalidAttributeList       = domain.KindInvalidAttributeList
	KindLoANotSupported            = domain.KindLoANotSupported
	KindNoMetadata                 = domain.KindNoMetadata
	KindInvalidMetadata            = domain.KindInvalidMetadata
	KindInvalidMetadataSource      = domain.KindInvalidMetadataSource
	KindSignatureInvalid           = domain.KindSignatureInvalid
	KindAuthenticationFailed       = domain.KindAuthenticationFailed
	KindInternal                   = domain.KindInternal
)

var (
	NewFault       = domain.NewFault
	WrapFault      = domain.WrapFault
	KindOf         = domain.KindOf
	SubStatusFor   = domain.SubStatusFor
	UserMessageFor = domain.UserMessageFor
)
