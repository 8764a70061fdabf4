package httpserver

import (
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// wireParams decodes the form and query fields shared by the endpoints.
func wireParams(r *http.Request) orchestrator.WireParams {
	_ = r.ParseForm()
	return orchestrator.WireParams{
		SAMLRequest:    r.Form.Get("SAMLRequest"),
		SAMLResponse:   r.Form.Get("SAMLResponse"),
		RelayState:     r.Form.Get("RelayState"),
		Method:         r.Method,
		SPID:           r.Form.Get("spId"),
		SPURL:          r.Form.Get("spUrl"),
		SPQAALevel:     r.Form.Get("spQaaLevel"),
		SPType:         r.Form.Get("spType"),
		ProviderName:   r.Form.Get("providerName"),
		CitizenCountry: r.Form.Get("citizenCountryCode"),
		AttributeList:  r.Form.Get("attributeList"),
	}
}

// deliver sends a signed message on its way: a redirect for the redirect
// binding, an auto-submitting form for post.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, msg *ports.SignedMessage, paramName string) {
	if msg.Binding == domain.BindingRedirect {
		target, err := url.Parse(msg.Destination)
		if err != nil {
			s.renderFaultPage(w, domain.KindInternal, domain.UserMessageFor(domain.KindInternal))
			return
		}
		q := target.Query()
		q.Set(paramName, msg.Encoded)
		if msg.RelayState != "" {
			q.Set("RelayState", msg.RelayState)
		}
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderPost(w, PostData{
		Action:     msg.Destination,
		ParamName:  paramName,
		ParamValue: msg.Encoded,
		RelayState: msg.RelayState,
	}); err != nil {
		s.log().Error("delivery form rendering failed", zap.Error(err))
	}
}

// fail translates err and renders the outcome: the signed fault response
// is delivered to its destination when one could be produced, otherwise
// the interceptor page is shown.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, binding *RoleBinding, err error, ref orchestrator.FaultReference) {
	outcome := binding.Translator.Translate(err, ref)
	if outcome.Signed != nil {
		s.deliver(w, r, outcome.Signed, "SAMLResponse")
		return
	}
	s.renderFaultPage(w, outcome.Kind, outcome.UserMessage)
}

func (s *Server) renderFaultPage(w http.ResponseWriter, kind domain.FaultKind, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusFor(kind))
	if err := s.renderer.RenderError(w, ErrorData{
		Title:   "Authentication could not be completed",
		Message: message,
	}); err != nil {
		s.log().Error("error page rendering failed", zap.Error(err))
	}
}

func statusFor(kind domain.FaultKind) int {
	switch kind {
	case domain.KindUnauthorized, domain.KindAttributeAccessDenied:
		return http.StatusForbidden
	case domain.KindInvalidSession:
		return http.StatusUnauthorized
	case domain.KindNoMetadata, domain.KindInvalidMetadata, domain.KindInvalidMetadataSource:
		return http.StatusBadGateway
	case domain.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// peekIssuer reads the issuer of an encoded message without verifying
// it. The value is only a lookup key: nothing is trusted until the
// descriptor behind it passes signature validation.
func peekIssuer(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", domain.WrapFault(domain.KindInvalidParameter, err, "message is not valid base64")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", domain.WrapFault(domain.KindInvalidParameter, err, "message is not valid XML")
	}
	root := doc.Root()
	if root == nil {
		return "", domain.NewFault(domain.KindInvalidParameter, "message document is empty")
	}
	issuer := root.FindElement("./Issuer")
	if issuer == nil || issuer.Text() == "" {
		return "", domain.NewFault(domain.KindInvalidParameter, "message has no issuer")
	}
	return issuer.Text(), nil
}

// withheldNames computes the optional attributes the citizen unticked on
// the consent form.
func withheldNames(form url.Values) []string {
	shared := make(map[string]bool)
	for _, name := range form["share"] {
		shared[name] = true
	}
	var withheld []string
	for _, name := range form["offered"] {
		if !shared[name] {
			withheld = append(withheld, name)
		}
	}
	return withheld
}
