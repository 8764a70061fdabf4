package domain

import (
	"errors"
	"time"
)

// TrustKind classifies how a cached descriptor entered the trust store.
type TrustKind string

const (
	// TrustStatic marks descriptors loaded from local trusted configuration.
	TrustStatic TrustKind = "static"

	// TrustDynamic marks descriptors fetched over the network. A dynamic
	// entry must never be trusted without its own signature validation at
	// each query, unless covered by a validated signature holder.
	TrustDynamic TrustKind = "dynamic"

	// TrustSignatureHolder marks a signed wrapper retained solely to
	// re-validate the signature of a larger descriptor collection.
	TrustSignatureHolder TrustKind = "signature-holder"
)

// TrustEntry is one cache entry of the metadata trust store, keyed by the
// remote party's identifying URL.
type TrustEntry struct {
	// URL is the identifying URL of the remote party.
	URL string

	// Descriptor is the serialized signed descriptor document.
	Descriptor []byte

	// Kind records how the entry was obtained.
	Kind TrustKind

	// FetchedAt is when the entry was cached.
	FetchedAt time.Time

	// ValidUntil bounds the entry's validity; zero means unbounded.
	ValidUntil time.Time
}

// Expired reports whether the entry is past its validity at now.
func (e *TrustEntry) Expired(now time.Time) bool {
	return !e.ValidUntil.IsZero() && !now.Before(e.ValidUntil)
}

// ErrDescriptorNotFound is returned when no descriptor is cached for a URL
// and retrieval is disabled or failed to yield one.
var ErrDescriptorNotFound = errors.New("metadata descriptor not found")
