package ports

import (
	"context"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// RemoteParty is the parsed view of a remote party's metadata descriptor
// that the orchestrator consumes.
type RemoteParty struct {
	// EntityID is the party's entity identifier (its metadata URL).
	EntityID string

	// SSOLocation is the endpoint authentication requests are sent to,
	// per binding URI.
	SSOLocations map[string]string

	// AssertionConsumerURL is where responses for this party are returned.
	AssertionConsumerURL string

	// SigningCertificates are the PEM-encoded signing certificates.
	SigningCertificates []string

	// EncryptionCertificates are the PEM-encoded encryption certificates.
	EncryptionCertificates []string

	// SupportedLoA is the minimum level of assurance the party supports,
	// empty when unpublished.
	SupportedLoA domain.LevelOfAssurance

	// SPType is the sector published in metadata, empty when unpublished.
	SPType domain.SPType
}

// TrustStore is the port interface for the metadata trust subsystem.
// Implementations fetch, cache and validate signed descriptors of remote
// parties.
type TrustStore interface {
	// GetDescriptor returns the parsed descriptor for url, fetching and
	// caching it as dynamic when absent and network retrieval is enabled.
	// Fails with a NoMetadata fault if retrieval fails or yields nothing,
	// InvalidMetadataSource for a plain-HTTP url under the HTTPS-only
	// policy, and InvalidMetadata for a structurally invalid or expired
	// descriptor.
	GetDescriptor(ctx context.Context, url string) (*RemoteParty, error)

	// CheckValidSignature validates the descriptor's signature against the
	// configured trust anchors. Validation is skipped only for urls on the
	// explicit trusted-exception list or when signature checking is
	// globally disabled.
	CheckValidSignature(ctx context.Context, url string) error

	// PutDescriptor populates the cache with a locally trusted (static)
	// descriptor.
	PutDescriptor(url string, descriptor []byte, kind domain.TrustKind) error

	// PutSignatureHolder caches a signed collection wrapper whose
	// signature covers its member entries as a whole.
	PutSignatureHolder(url string, descriptor []byte) error
}
