package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
)

// handleServiceProvider is the relying-party edge of the connector role.
// A registered service provider posts its side-channel fields here; the
// connector builds the cross-border request and dispatches it to the
// citizen country's node.
func (s *Server) handleServiceProvider(w http.ResponseWriter, r *http.Request) {
	p := wireParams(r)

	counterpart, ok := s.routes.CounterpartMetadataURLs[p.CitizenCountry]
	if !ok || counterpart == "" {
		s.fail(w, r, s.connector, domain.NewFault(domain.KindInvalidParameter,
			"no counterpart node is configured for country %q", p.CitizenCountry),
			orchestrator.FaultReference{})
		return
	}
	p.RemoteMetadataURL = counterpart

	req, err := s.connector.Service.BeginRequest(r.Context(), p)
	if err != nil {
		s.fail(w, r, s.connector, err, orchestrator.FaultReference{})
		return
	}

	msg, err := s.connector.Service.CompleteRequest(r.Context(), req, counterpart)
	if err != nil {
		s.fail(w, r, s.connector, err, orchestrator.FaultReference{CorrelationID: req.ID})
		return
	}
	s.deliver(w, r, msg, "SAMLRequest")
}

// handleConnectorResponse receives the colleague response from the
// remote proxy service and returns the final response to the service
// provider, via the consent step when policy requires it.
func (s *Server) handleConnectorResponse(w http.ResponseWriter, r *http.Request) {
	p := wireParams(r)

	result, err := s.connector.Service.BeginResponse(r.Context(), p)
	if err != nil {
		s.fail(w, r, s.connector, err, orchestrator.FaultReference{})
		return
	}

	if result.ConsentPending {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if rerr := s.renderer.RenderConsent(w, ConsentData{
			Action:     PathConnectorConsent,
			Token:      result.ConsentToken,
			Attributes: consentAttributes(result.Response.Attributes),
		}); rerr != nil {
			s.log().Error("consent page rendering failed", zap.Error(rerr))
		}
		return
	}

	s.finalizeConnectorResponse(w, r, result)
}

// handleConnectorConsent resumes a consent-parked response with the
// citizen's choices.
func (s *Server) handleConnectorConsent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_ = r.ParseForm()

	result, err := s.connector.Service.ResumeConsent(r.Form.Get("token"), withheldNames(r.Form))
	if err != nil {
		s.fail(w, r, s.connector, err, orchestrator.FaultReference{})
		return
	}
	s.finalizeConnectorResponse(w, r, result)
}

// finalizeConnectorResponse signs the final response toward the service
// provider the flow started from.
func (s *Server) finalizeConnectorResponse(w http.ResponseWriter, r *http.Request, result *orchestrator.BeginResponseResult) {
	req := result.Context.Request
	ref := orchestrator.FaultReference{
		InResponseTo:  req.ID,
		Destination:   req.AssertionConsumerURL,
		CorrelationID: req.ID,
	}

	spURL, ok := s.routes.ServiceProviderMetadataURLs[req.SPID]
	if !ok || spURL == "" {
		s.fail(w, r, s.connector, domain.NewFault(domain.KindUnauthorized,
			"service provider %q is not registered", req.SPID), ref)
		return
	}

	msg, err := s.connector.Service.CompleteResponse(r.Context(), result, spURL)
	if err != nil {
		s.fail(w, r, s.connector, err, ref)
		return
	}
	s.deliver(w, r, msg, "SAMLResponse")
}
