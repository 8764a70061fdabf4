// Package national holds the identity-provider integrations a
// proxy-service hands its citizens to.
package national

import (
	"net/url"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// RedirectHandler sends the citizen to one configured identity provider.
// The correlation identifier travels as a query parameter so the
// provider can reference the pending request when it posts its response
// back. The handler reports ready only once a response has been parked
// on the context, which for this integration never happens: the
// provider's response re-enters through the standard response pipeline.
type RedirectHandler struct {
	country string
	idpURL  string
}

// NewRedirectHandler builds the handler for one country and provider.
func NewRedirectHandler(country, idpURL string) *RedirectHandler {
	return &RedirectHandler{country: country, idpURL: idpURL}
}

// Country returns the country code this handler serves.
func (h *RedirectHandler) Country() string { return h.country }

// Matches claims every request for this handler's country.
func (h *RedirectHandler) Matches(req *domain.AuthenticationRequest) bool {
	return req != nil && req.CitizenCountry == h.country
}

// Ready reports whether the provider's response has been parked.
func (h *RedirectHandler) Ready(ctx *domain.AuthenticationContext) bool {
	return ctx != nil && ctx.PendingResponse != nil
}

// Advance returns the provider URL carrying the correlation identifier.
func (h *RedirectHandler) Advance(ctx *domain.AuthenticationContext) (string, error) {
	target, err := url.Parse(h.idpURL)
	if err != nil {
		return "", domain.WrapFault(domain.KindInternal, err, "identity provider URL is unusable")
	}
	q := target.Query()
	q.Set("correlationId", ctx.Request.ID)
	target.RawQuery = q.Encode()
	return target.String(), nil
}
