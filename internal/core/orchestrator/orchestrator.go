// Package orchestrator drives the cross-border authentication state
// machine. A Service instance plays one role - Connector (relying-party
// facing) or ProxyService (identity-provider facing). The two roles are
// symmetric in structure and asymmetric only in which way the attribute
// vocabulary is translated and where messages are forwarded next:
// outbound messages are normalized to the common vocabulary, inbound
// messages are normalized back from it.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// Role names the side of the trust boundary a Service plays.
type Role string

const (
	RoleConnector    Role = "connector"
	RoleProxyService Role = "proxy-service"
)

// SPTypePolicy resolves the service-provider-type tag when both local
// configuration and the request carry one. The precedence is asymmetric:
// a configured local value wins and the request value is cleared from the
// outbound message.
type SPTypePolicy struct {
	// Local is the locally configured value; empty means unset.
	Local domain.SPType

	// Default is used when neither local config nor the request carries a
	// value. Defaults to public when empty.
	Default domain.SPType
}

// Resolve applies the precedence rule to the request's value.
func (p SPTypePolicy) Resolve(requested domain.SPType) domain.SPType {
	if p.Local != "" {
		return p.Local
	}
	if requested != "" {
		return requested
	}
	if p.Default != "" {
		return p.Default
	}
	return domain.SPTypePublic
}

// Policy is the read-only configuration surface the orchestrator enforces.
// It is injected at construction; there are no global policy caches.
type Policy struct {
	// AttributePermissions maps a service-provider id to the attribute
	// names it may request. A provider with no entry is unknown and every
	// request from it is refused.
	AttributePermissions map[string][]string

	// CheckMandatoryAttributes enables mandatory-attribute completeness
	// enforcement in CompleteRequest and CompleteResponse.
	CheckMandatoryAttributes bool

	// ValidateBinding enforces that the claimed binding of an inbound
	// message matches the actual HTTP method.
	ValidateBinding bool

	// SPType resolves the service-provider-type tag.
	SPType SPTypePolicy

	// ConsentEnabled gates the consent-pending step on the response path.
	ConsentEnabled bool

	// DisabledHandlerCountries lists country codes whose national handler
	// is switched off; a disabled handler is treated as "no match".
	DisabledHandlerCountries map[string]bool

	// RequestTTL bounds the lifetime of a correlation entry.
	RequestTTL time.Duration
}

// WireParams are the decoded HTTP form/query fields of one inbound
// protocol interaction. Field names are stable across both bindings.
type WireParams struct {
	// SAMLRequest is the base64-encoded protocol request message.
	SAMLRequest string

	// SAMLResponse is the base64-encoded protocol response message.
	SAMLResponse string

	// RelayState is the opaque value echoed back to the requester.
	RelayState string

	// Method is the actual HTTP method the message arrived over.
	Method string

	// RemoteMetadataURL identifies the counterpart the message came from
	// or must go to next.
	RemoteMetadataURL string

	// Side-channel fields used only at the relying-party edge.
	SPID           string
	SPURL          string
	SPQAALevel     string
	SPType         string
	ProviderName   string
	CitizenCountry string
	AttributeList  string
}

// Service is the protocol orchestrator for one role.
type Service struct {
	role         Role
	engine       ports.AssertionEngine
	trust        ports.TrustStore
	correlations ports.CorrelationStore
	catalog      *domain.AttributeCatalog
	consent      ports.ConsentTokenService
	handlers     []ports.NationalHandler
	metrics      ports.MetricsRecorder
	logger       *zap.Logger
	policy       Policy
	issuer       string
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConsentTokens installs the consent token service. Without one,
// ConsentEnabled policy cannot be honoured and CompleteResponse runs the
// one-shot path.
func WithConsentTokens(c ports.ConsentTokenService) Option {
	return func(s *Service) { s.consent = c }
}

// WithNationalHandlers registers the static national handler table.
func WithNationalHandlers(handlers ...ports.NationalHandler) Option {
	return func(s *Service) { s.handlers = handlers }
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger installs a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service for the given role. The issuer is this node's own
// metadata URL, stamped on every outbound message.
func New(role Role, issuer string, engine ports.AssertionEngine, trust ports.TrustStore,
	correlations ports.CorrelationStore, catalog *domain.AttributeCatalog,
	policy Policy, opts ...Option) *Service {
	s := &Service{
		role:         role,
		engine:       engine,
		trust:        trust,
		correlations: correlations,
		catalog:      catalog,
		policy:       policy,
		issuer:       issuer,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.RequestTTL == 0 {
		s.policy.RequestTTL = 5 * time.Minute
	}
	return s
}

// Role returns the role this service plays.
func (s *Service) Role() Role {
	return s.role
}

// log returns the configured logger or a nop one.
func (s *Service) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// checkBinding enforces the binding-validation policy: the claimed binding
// of the message must match the HTTP method it actually arrived over.
func (s *Service) checkBinding(claimed domain.Binding, method string) error {
	if !s.policy.ValidateBinding || method == "" {
		return nil
	}
	actual, err := domain.ParseBinding(method)
	if err != nil {
		return domain.WrapFault(domain.KindInvalidParameter, err, "unrecognized HTTP method %q", method)
	}
	if claimed != "" && claimed != actual {
		return domain.NewFault(domain.KindInvalidParameter,
			"claimed binding %s does not match HTTP method %s", claimed, method)
	}
	return nil
}

// checkAttributeAccess verifies the provider is known and entitled to
// every requested attribute.
func (s *Service) checkAttributeAccess(spID string, requested *domain.PersonalAttributeList) error {
	allowed, known := s.policy.AttributePermissions[spID]
	if !known {
		return domain.NewFault(domain.KindUnauthorized, "unknown service provider %q", spID)
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}
	for _, name := range requested.Names() {
		if !allowedSet[name] {
			return domain.NewFault(domain.KindAttributeAccessDenied,
				"service provider %q may not request attribute %q", spID, name)
		}
	}
	return nil
}

// storeContext persists the in-flight context under the request id.
func (s *Service) storeContext(req *domain.AuthenticationRequest, relayState, remoteURL string, state domain.FlowState) error {
	authCtx := &domain.AuthenticationContext{
		Request:           req,
		RelayState:        relayState,
		RemoteMetadataURL: remoteURL,
		State:             state,
		CreatedAt:         s.now(),
	}
	return s.correlations.Put(req.ID, authCtx)
}

// consumeContext consumes the correlation entry for id, translating
// absence into the fatal invalid-session fault. Absence or emptiness of
// the stored context signals expiry, replay, or a forged reference and is
// never recoverable.
func (s *Service) consumeContext(id string) (*domain.AuthenticationContext, error) {
	authCtx, err := s.correlations.Consume(id)
	if err != nil || authCtx == nil || authCtx.Request == nil {
		if s.metrics != nil {
			s.metrics.RecordCorrelation(false)
		}
		return nil, domain.WrapFault(domain.KindInvalidSession, err,
			"no pending request for reference %q", id)
	}
	if s.metrics != nil {
		s.metrics.RecordCorrelation(true)
	}
	return authCtx, nil
}

// remoteParty fetches and signature-checks the descriptor for url.
func (s *Service) remoteParty(ctx context.Context, url string) (*ports.RemoteParty, error) {
	if url == "" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "no remote metadata URL")
	}
	if err := s.trust.CheckValidSignature(ctx, url); err != nil {
		return nil, err
	}
	return s.trust.GetDescriptor(ctx, url)
}

// recordRequest reports a request outcome to metrics.
func (s *Service) recordRequest(err error) {
	if s.metrics != nil {
		s.metrics.RecordRequest(string(s.role), err == nil)
	}
}

// recordResponse reports a response outcome to metrics.
func (s *Service) recordResponse(err error) {
	if s.metrics != nil {
		s.metrics.RecordResponse(string(s.role), err == nil)
	}
}

// errIsNoCorrelation reports whether err wraps the correlation-miss sentinel.
func errIsNoCorrelation(err error) bool {
	return errors.Is(err, ports.ErrNoCorrelation)
}
