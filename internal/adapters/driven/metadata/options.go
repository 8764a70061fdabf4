package metadata

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

// storeOptions collects optional TrustStore configuration.
type storeOptions struct {
	logger          *zap.Logger
	metricsRecorder ports.MetricsRecorder
	httpClient      *http.Client
	clock           Clock

	fetchTimeout time.Duration
	cacheTTL     time.Duration

	httpsOnly          bool
	fetchEnabled       bool
	signatureCheck     bool
	trustedExceptions  map[string]bool
	signatureValidator func(descriptor []byte) ([]byte, error)
}

// Option configures a TrustStore.
type Option func(*storeOptions)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *storeOptions) { o.logger = l }
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m ports.MetricsRecorder) Option {
	return func(o *storeOptions) { o.metricsRecorder = m }
}

// WithHTTPClient overrides the HTTP client used for network retrieval.
func WithHTTPClient(c *http.Client) Option {
	return func(o *storeOptions) { o.httpClient = c }
}

// WithClock overrides the time source, for tests.
func WithClock(c Clock) Option {
	return func(o *storeOptions) { o.clock = c }
}

// WithFetchTimeout bounds a single metadata retrieval. The default is 20
// seconds; on expiry the fetch fails as NoMetadata rather than hanging
// the request.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *storeOptions) { o.fetchTimeout = d }
}

// WithCacheTTL bounds how long a dynamic entry without its own validUntil
// is served from the cache.
func WithCacheTTL(d time.Duration) Option {
	return func(o *storeOptions) { o.cacheTTL = d }
}

// WithHTTPSOnly rejects plain-HTTP metadata URLs before any network I/O.
func WithHTTPSOnly(on bool) Option {
	return func(o *storeOptions) { o.httpsOnly = on }
}

// WithFetchEnabled toggles network retrieval on cache misses. When off,
// only preloaded static entries resolve.
func WithFetchEnabled(on bool) Option {
	return func(o *storeOptions) { o.fetchEnabled = on }
}

// WithSignatureCheck toggles descriptor signature validation globally.
// Disabling it is an explicit, auditable configuration choice and is
// logged at Warn on first use.
func WithSignatureCheck(on bool) Option {
	return func(o *storeOptions) { o.signatureCheck = on }
}

// WithTrustedExceptions names URLs whose descriptors skip signature
// validation. The allow-list is the only per-URL bypass.
func WithTrustedExceptions(urls ...string) Option {
	return func(o *storeOptions) {
		if o.trustedExceptions == nil {
			o.trustedExceptions = make(map[string]bool, len(urls))
		}
		for _, u := range urls {
			o.trustedExceptions[u] = true
		}
	}
}

// WithSignatureValidator installs the assertion-engine validation
// callback used by CheckValidSignature.
func WithSignatureValidator(fn func(descriptor []byte) ([]byte, error)) Option {
	return func(o *storeOptions) { o.signatureValidator = fn }
}

// defaultOptions returns the baseline configuration: retrieval on,
// signature checking on, 20 second fetch timeout, one hour cache TTL.
func defaultOptions() *storeOptions {
	return &storeOptions{
		clock:          RealClock{},
		fetchTimeout:   20 * time.Second,
		cacheTTL:       time.Hour,
		fetchEnabled:   true,
		signatureCheck: true,
	}
}
