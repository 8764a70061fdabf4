// Package metadata implements the metadata trust store: it fetches,
// caches and validates the signed descriptors that remote parties are
// trusted through. Entries live in the shared key-value cache so both
// roles of a node, and multiple nodes behind one distributed store, see
// the same trust state.
package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

const keyPrefix = "meta:"

// cachedEntry is the serialized form of a trust entry in the cache.
type cachedEntry struct {
	URL        string    `json:"url"`
	Descriptor []byte    `json:"descriptor"`
	Kind       string    `json:"kind"`
	FetchedAt  time.Time `json:"fetched_at"`
	ValidUntil time.Time `json:"valid_until,omitempty"`

	// Holder names the signature-holder entry covering this descriptor,
	// when it was cached from a validated collection.
	Holder string `json:"holder,omitempty"`
}

// TrustStore is the cache-backed metadata trust store.
type TrustStore struct {
	cache ports.KeyValueCache
	opts  *storeOptions

	warnOnce sync.Once
}

// NewTrustStore builds a TrustStore over the shared cache.
func NewTrustStore(cache ports.KeyValueCache, opts ...Option) *TrustStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.fetchTimeout}
	}
	return &TrustStore{cache: cache, opts: o}
}

func (t *TrustStore) log() *zap.Logger {
	if t.opts.logger == nil {
		return zap.NewNop()
	}
	return t.opts.logger
}

// GetDescriptor returns the parsed descriptor for url. A cached,
// unexpired entry is served directly; otherwise the descriptor is fetched
// over the network (when enabled), validated, parsed and cached as
// dynamic. Concurrent misses for the same url may race and fetch twice;
// the fetch is idempotent and the last write wins.
func (t *TrustStore) GetDescriptor(ctx context.Context, url string) (*ports.RemoteParty, error) {
	if entry, ok := t.cached(url); ok {
		party, _, err := ParseDescriptor(entry.Descriptor, t.opts.clock.Now())
		if err == nil {
			return party, nil
		}
		// A cached entry that no longer parses or has expired is dropped
		// and refetched.
		t.cache.Remove(keyPrefix + url)
	}

	if !t.opts.fetchEnabled {
		return nil, domain.WrapFault(domain.KindNoMetadata, domain.ErrDescriptorNotFound,
			"no cached descriptor for %q and retrieval is disabled", url)
	}

	data, err := t.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if t.signatureRequired(url) {
		validated, verr := t.validateSignature(data)
		if verr != nil {
			return nil, verr
		}
		data = validated
	}

	party, entry, err := ParseDescriptor(data, t.opts.clock.Now())
	if err != nil {
		return nil, err
	}
	entry.Kind = domain.TrustDynamic
	t.putEntry(url, entry, "")

	if t.opts.metricsRecorder != nil {
		t.opts.metricsRecorder.RecordMetadataFetch(url, true)
	}
	t.log().Info("descriptor cached",
		zap.String("url", url),
		zap.String("kind", string(domain.TrustDynamic)),
	)
	return party, nil
}

// CheckValidSignature validates the cached or fetched descriptor's
// signature against the configured trust anchors. Validation is bypassed
// only by the explicit allow-list or the global disable flag, both of
// which are logged.
func (t *TrustStore) CheckValidSignature(ctx context.Context, url string) error {
	if !t.opts.signatureCheck {
		t.warnOnce.Do(func() {
			t.log().Warn("metadata signature checking globally disabled by configuration")
		})
		return nil
	}
	if t.opts.trustedExceptions[url] {
		t.log().Warn("metadata signature check skipped for allow-listed url",
			zap.String("url", url))
		return nil
	}

	if entry, ok := t.cached(url); ok {
		// An entry covered by a validated signature holder, or loaded
		// from local trusted configuration, needs no per-query check.
		if entry.Kind == string(domain.TrustStatic) || entry.Holder != "" {
			return nil
		}
		_, err := t.validateSignature(entry.Descriptor)
		return err
	}

	data, err := t.fetch(ctx, url)
	if err != nil {
		return err
	}
	_, err = t.validateSignature(data)
	return err
}

// PutDescriptor populates the cache with a locally trusted descriptor.
func (t *TrustStore) PutDescriptor(url string, descriptor []byte, kind domain.TrustKind) error {
	_, entry, err := ParseDescriptor(descriptor, t.opts.clock.Now())
	if err != nil {
		return err
	}
	entry.Kind = kind
	t.putEntry(url, entry, "")
	return nil
}

// PutSignatureHolder validates the signature of a descriptor collection
// once, then caches the wrapper and every member entry under it. Members
// cached this way are trusted without per-entry re-validation because the
// holder's signature covers them as a whole.
func (t *TrustStore) PutSignatureHolder(url string, descriptor []byte) error {
	data := descriptor
	if t.signatureRequired(url) {
		validated, err := t.validateSignature(descriptor)
		if err != nil {
			return err
		}
		data = validated
	}

	members, validUntil, err := ParseCollection(data, t.opts.clock.Now())
	if err != nil {
		return err
	}

	holder := &domain.TrustEntry{
		URL:        url,
		Descriptor: descriptor,
		Kind:       domain.TrustSignatureHolder,
		FetchedAt:  t.opts.clock.Now(),
	}
	if validUntil != nil {
		holder.ValidUntil = *validUntil
	}
	t.putEntry(url, holder, "")

	for entityID, raw := range members {
		member := &domain.TrustEntry{
			URL:        entityID,
			Descriptor: raw,
			Kind:       domain.TrustDynamic,
			FetchedAt:  holder.FetchedAt,
			ValidUntil: holder.ValidUntil,
		}
		t.putEntry(entityID, member, url)
	}

	t.log().Info("signature holder cached",
		zap.String("url", url),
		zap.Int("member_count", len(members)),
	)
	return nil
}

// signatureRequired reports whether url is subject to signature checking.
func (t *TrustStore) signatureRequired(url string) bool {
	return t.opts.signatureCheck && !t.opts.trustedExceptions[url]
}

// validateSignature runs the configured assertion-engine callback.
func (t *TrustStore) validateSignature(descriptor []byte) ([]byte, error) {
	if t.opts.signatureValidator == nil {
		return nil, domain.NewFault(domain.KindSignatureInvalid,
			"signature checking is enabled but no validator is configured")
	}
	validated, err := t.opts.signatureValidator(descriptor)
	if err != nil {
		return nil, domain.WrapFault(domain.KindSignatureInvalid, err,
			"descriptor signature validation failed")
	}
	return validated, nil
}

// fetch retrieves the descriptor over the network, enforcing the
// HTTPS-only policy before any I/O and bounding the request with the
// configured timeout.
func (t *TrustStore) fetch(ctx context.Context, url string) ([]byte, error) {
	if t.opts.httpsOnly && !strings.HasPrefix(url, "https://") {
		return nil, domain.NewFault(domain.KindInvalidMetadataSource,
			"metadata retrieval from %q refused: HTTPS-only policy", url)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.WrapFault(domain.KindNoMetadata, err, "create metadata request")
	}

	resp, err := t.opts.httpClient.Do(req)
	if err != nil {
		t.recordFetchFailure(url)
		return nil, domain.WrapFault(domain.KindNoMetadata, err, "fetch metadata from %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.recordFetchFailure(url)
		return nil, domain.NewFault(domain.KindNoMetadata,
			"fetch metadata from %q: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.recordFetchFailure(url)
		return nil, domain.WrapFault(domain.KindNoMetadata, err, "read metadata from %q", url)
	}
	if len(data) == 0 {
		t.recordFetchFailure(url)
		return nil, domain.NewFault(domain.KindNoMetadata, "metadata from %q is empty", url)
	}
	return data, nil
}

func (t *TrustStore) recordFetchFailure(url string) {
	if t.opts.metricsRecorder != nil {
		t.opts.metricsRecorder.RecordMetadataFetch(url, false)
	}
}

// cached returns the live cache entry for url, dropping expired ones.
func (t *TrustStore) cached(url string) (*cachedEntry, bool) {
	data, ok := t.cache.Get(keyPrefix + url)
	if !ok {
		return nil, false
	}
	var entry cachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.cache.Remove(keyPrefix + url)
		return nil, false
	}
	if !entry.ValidUntil.IsZero() && !t.opts.clock.Now().Before(entry.ValidUntil) {
		t.cache.Remove(keyPrefix + url)
		return nil, false
	}
	return &entry, true
}

// putEntry serializes a trust entry into the cache. The cache TTL applies
// on top of the entry's own validUntil.
func (t *TrustStore) putEntry(url string, entry *domain.TrustEntry, holder string) {
	ce := cachedEntry{
		URL:        entry.URL,
		Descriptor: entry.Descriptor,
		Kind:       string(entry.Kind),
		FetchedAt:  entry.FetchedAt,
		ValidUntil: entry.ValidUntil,
		Holder:     holder,
	}
	data, err := json.Marshal(ce)
	if err != nil {
		// Marshalling a plain struct of bytes and strings cannot fail;
		// guard anyway so a future field does not panic the node.
		t.log().Error("trust entry not cacheable", zap.Error(err), zap.String("url", url))
		return
	}
	ttl := t.opts.cacheTTL
	if entry.Kind == domain.TrustStatic {
		ttl = 0
	}
	t.cache.Put(keyPrefix+url, data, ttl)
}

// Ensure TrustStore implements ports.TrustStore
var _ ports.TrustStore = (*TrustStore)(nil)
