package ports

import "time"

// KeyValueCache is the port interface for the shared backing store used by
// the metadata trust store and the correlation store. A local map or a
// distributed service may implement it; the core only requires these
// semantics. Implementations must be safe for concurrent use.
type KeyValueCache interface {
	// Get returns the value for key, or false if absent or expired.
	Get(key string) ([]byte, bool)

	// Put stores value under key with an optional time-to-live.
	// A zero ttl means the entry does not expire.
	Put(key string, value []byte, ttl time.Duration)

	// Remove deletes key if present.
	Remove(key string)

	// TakeAndRemove atomically reads and removes key. The second return is
	// false if the key is absent or expired. At most one caller observes a
	// given entry; this is the per-key read-then-consume atomicity the
	// correlation store builds replay rejection on.
	TakeAndRemove(key string) ([]byte, bool)

	// Clear removes all entries.
	Clear()
}
