package ports

import (
	"errors"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// CorrelationStore maps an opaque request identifier to the pending
// authentication context. Implementations must guarantee that Consume for
// a given identifier succeeds at most once: a second consumer must observe
// absence, never the same context twice. A race here is a correctness bug
// (replay), not a performance concern.
type CorrelationStore interface {
	// Put stores the in-flight context under id.
	Put(id string, ctx *domain.AuthenticationContext) error

	// Consume atomically retrieves and removes the context for id.
	// Returns ErrNoCorrelation if the id is absent, expired, or already
	// consumed.
	Consume(id string) (*domain.AuthenticationContext, error)

	// Peek returns the context without consuming it. Used by the consent
	// round-trip, which must not burn the single consumption.
	Peek(id string) (*domain.AuthenticationContext, error)

	// Remove discards the context for id if present.
	Remove(id string)
}

// ErrNoCorrelation is returned when a correlation entry is absent. Callers
// must treat it as fatal for the attempt: it signals expiry, replay, or a
// forged reference, never a recoverable cache miss.
var ErrNoCorrelation = errors.New("no correlation entry")
