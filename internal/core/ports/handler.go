package ports

import "github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"

// NationalHandler is the capability a country-specific plugin implements
// to run its own multi-step UI flow outside the standard one-shot
// response path. Handlers are registered in a static table at startup;
// there is no runtime discovery.
type NationalHandler interface {
	// Country returns the ISO country code the handler serves.
	Country() string

	// Matches reports whether the handler wants this request.
	Matches(req *domain.AuthenticationRequest) bool

	// Ready reports whether the handler's own flow has produced a final
	// result for the attempt.
	Ready(ctx *domain.AuthenticationContext) bool

	// Advance performs the handler's next intermediate step and returns
	// the redirect URL the browser must follow.
	Advance(ctx *domain.AuthenticationContext) (string, error)
}
