package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
)

// handleColleagueRequest receives the cross-border request from a remote
// connector and hands the citizen to the matching national handler.
func (s *Server) handleColleagueRequest(w http.ResponseWriter, r *http.Request) {
	p := wireParams(r)

	issuer, err := peekIssuer(p.SAMLRequest)
	if err != nil {
		s.fail(w, r, s.proxy, err, orchestrator.FaultReference{})
		return
	}
	p.RemoteMetadataURL = issuer

	req, err := s.proxy.Service.BeginRequest(r.Context(), p)
	if err != nil {
		s.fail(w, r, s.proxy, err, orchestrator.FaultReference{})
		return
	}

	outcome, err := s.proxy.Service.ProcessPluginResponse(r.Context(), req.ID, "", nil)
	if err != nil {
		s.fail(w, r, s.proxy, err, orchestrator.FaultReference{CorrelationID: req.ID})
		return
	}
	s.deliverPluginOutcome(w, r, outcome)
}

// handleProxyCallback is where the citizen re-enters the node after the
// identity-provider leg. Three shapes arrive here: the provider's signed
// response, the citizen's consent form, or a bare correlation reference
// from a national handler that manages its own flow.
func (s *Server) handleProxyCallback(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	if token := r.Form.Get("token"); token != "" {
		result, err := s.proxy.Service.ResumeConsent(token, withheldNames(r.Form))
		if err != nil {
			s.fail(w, r, s.proxy, err, orchestrator.FaultReference{})
			return
		}
		s.finalizeProxyResponse(w, r, result)
		return
	}

	if r.Form.Get("SAMLResponse") != "" {
		result, err := s.proxy.Service.BeginResponse(r.Context(), wireParams(r))
		if err != nil {
			s.fail(w, r, s.proxy, err, orchestrator.FaultReference{})
			return
		}
		if result.ConsentPending {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if rerr := s.renderer.RenderConsent(w, ConsentData{
				Action:     PathProxyCallback,
				Token:      result.ConsentToken,
				Attributes: consentAttributes(result.Response.Attributes),
			}); rerr != nil {
				s.log().Error("consent page rendering failed", zap.Error(rerr))
			}
			return
		}
		s.finalizeProxyResponse(w, r, result)
		return
	}

	correlationID := r.Form.Get("correlationId")
	if correlationID == "" {
		correlationID = r.Form.Get("inResponseTo")
	}

	outcome, err := s.proxy.Service.ProcessPluginResponse(r.Context(), correlationID, "", withheldNames(r.Form))
	if err != nil {
		s.fail(w, r, s.proxy, err, orchestrator.FaultReference{CorrelationID: correlationID})
		return
	}
	s.deliverPluginOutcome(w, r, outcome)
}

// finalizeProxyResponse signs the colleague response toward the
// connector the request came from.
func (s *Server) finalizeProxyResponse(w http.ResponseWriter, r *http.Request, result *orchestrator.BeginResponseResult) {
	req := result.Context.Request
	ref := orchestrator.FaultReference{
		InResponseTo:  req.ID,
		Destination:   req.AssertionConsumerURL,
		CorrelationID: req.ID,
	}

	msg, err := s.proxy.Service.CompleteResponse(r.Context(), result, result.Context.RemoteMetadataURL)
	if err != nil {
		s.fail(w, r, s.proxy, err, ref)
		return
	}
	s.deliver(w, r, msg, "SAMLResponse")
}

func (s *Server) deliverPluginOutcome(w http.ResponseWriter, r *http.Request, outcome *orchestrator.PluginOutcome) {
	if outcome.RedirectURL != "" {
		http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
		return
	}
	s.deliver(w, r, outcome.Final, "SAMLResponse")
}
