// Package httpserver is the HTTP edge of the node. It decodes the wire
// parameters of each endpoint into orchestrator calls and renders the
// outcome: an auto-submitting form for post delivery, a redirect for
// redirect delivery, a consent page, or the error interceptor page.
// All protocol decisions live in the orchestrator; this package only
// translates between HTTP and the core.
package httpserver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
)

// Endpoint paths of the node.
const (
	PathServiceProvider   = "/ServiceProvider"
	PathConnectorResponse = "/SpecificConnectorResponse"
	PathConnectorConsent  = "/ConnectorConsent"
	PathColleagueRequest  = "/ColleagueRequest"
	PathProxyCallback     = "/SpecificProxyServiceResponse"
	PathMetadata          = "/metadata"
	PathMetrics           = "/metrics"
	PathHealth            = "/healthz"
)

// Routes tells the edge where counterpart nodes and registered service
// providers publish their metadata. Requests for an unlisted country or
// service provider are refused.
type Routes struct {
	// CounterpartMetadataURLs maps a citizen country code to the metadata
	// URL of that country's node.
	CounterpartMetadataURLs map[string]string

	// ServiceProviderMetadataURLs maps a registered service-provider id to
	// its metadata URL.
	ServiceProviderMetadataURLs map[string]string
}

// RoleBinding couples one orchestrator role instance with its translator.
type RoleBinding struct {
	Service    *orchestrator.Service
	Translator *orchestrator.Translator
}

// Server is the HTTP edge. A node may run the connector role, the
// proxy-service role, or both in one process.
type Server struct {
	connector *RoleBinding
	proxy     *RoleBinding
	routes    Routes
	metadata  []byte
	renderer  *Renderer
	logger    *zap.Logger
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithConnector enables the connector-role endpoints.
func WithConnector(b *RoleBinding) Option {
	return func(s *Server) { s.connector = b }
}

// WithProxyService enables the proxy-service-role endpoints.
func WithProxyService(b *RoleBinding) Option {
	return func(s *Server) { s.proxy = b }
}

// WithMetadataDocument sets the signed metadata document the node
// publishes about itself.
func WithMetadataDocument(doc []byte) Option {
	return func(s *Server) { s.metadata = doc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the edge server and registers the endpoints of every
// enabled role.
func New(routes Routes, opts ...Option) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	s := &Server{
		routes:   routes,
		renderer: renderer,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.connector != nil {
		s.mux.HandleFunc(PathServiceProvider, s.handleServiceProvider)
		s.mux.HandleFunc(PathConnectorResponse, s.handleConnectorResponse)
		s.mux.HandleFunc(PathConnectorConsent, s.handleConnectorConsent)
	}
	if s.proxy != nil {
		s.mux.HandleFunc(PathColleagueRequest, s.handleColleagueRequest)
		s.mux.HandleFunc(PathProxyCallback, s.handleProxyCallback)
	}
	s.mux.HandleFunc(PathMetadata, s.handleMetadata)
	s.mux.Handle(PathMetrics, promhttp.Handler())
	s.mux.HandleFunc(PathHealth, s.handleHealth)

	return s, nil
}

func (s *Server) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// ServeHTTP dispatches to the registered endpoints.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listen builds an http.Server with sane timeouts around the edge.
func (s *Server) Listen(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if len(s.metadata) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	_, _ = w.Write(s.metadata)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
