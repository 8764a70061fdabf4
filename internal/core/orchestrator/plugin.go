package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// PluginOutcome is the result of ProcessPluginResponse: either a final
// signed message or an intermediate redirect the national handler wants
// the browser to follow.
type PluginOutcome struct {
	// Final is the signed final response, set when the handler's flow has
	// completed.
	Final *ports.SignedMessage

	// RedirectURL is the handler's next intermediate step, set when the
	// flow is not finished yet.
	RedirectURL string
}

// matchHandler returns the first registered handler that claims the
// request. Handlers for countries disabled by configuration are skipped,
// so a disabled handler behaves exactly like no handler at all.
func (s *Service) matchHandler(req *domain.AuthenticationRequest) ports.NationalHandler {
	for _, h := range s.handlers {
		if s.policy.DisabledHandlerCountries[h.Country()] {
			continue
		}
		if h.Matches(req) {
			return h
		}
	}
	return nil
}

// ProcessPluginResponse is the alternate response path for a national
// handler that manages its own multi-step UI flow. The orchestrator
// defers to the handler's own readiness check: a ready flow is finalized
// through the standard response pipeline, an unfinished one yields the
// handler's intermediate redirect. An empty recipientURL falls back to
// the counterpart stored with the context.
func (s *Service) ProcessPluginResponse(ctx context.Context, correlationID, recipientURL string, withheld []string) (out *PluginOutcome, err error) {
	authCtx, err := s.correlations.Peek(correlationID)
	if err != nil || authCtx == nil {
		return nil, domain.WrapFault(domain.KindInvalidSession, err,
			"no pending request for reference %q", correlationID)
	}
	defer func() {
		err = withReference(err, FaultReference{
			InResponseTo:  authCtx.Request.ID,
			Destination:   authCtx.Request.AssertionConsumerURL,
			CorrelationID: correlationID,
		})
	}()

	handler := s.matchHandler(authCtx.Request)
	if handler == nil {
		return nil, domain.NewFault(domain.KindInvalidParameter,
			"no national handler matches request %q", correlationID)
	}

	if !handler.Ready(authCtx) {
		redirect, aerr := handler.Advance(authCtx)
		if aerr != nil {
			return nil, domain.WrapFault(domain.KindAuthenticationFailed, aerr,
				"national handler failed to advance")
		}
		// Handing the citizen to the provider dispatches the request; the
		// entry stays in place because the flow is still running.
		if authCtx.State == domain.StateRequestReceived {
			_ = authCtx.Advance(domain.StateRequestDispatched)
		}
		_ = s.correlations.Put(correlationID, authCtx)
		s.log().Debug("national handler continues its flow",
			zap.String("country", handler.Country()),
			zap.String("request_id", correlationID),
		)
		return &PluginOutcome{RedirectURL: redirect}, nil
	}

	// The handler has produced its result; finalize through the standard
	// pipeline. Consumption happens here, exactly once.
	if authCtx.PendingResponse == nil {
		return nil, domain.NewFault(domain.KindInvalidSession,
			"national handler reported ready but no response is pending for %q", correlationID)
	}
	consumed, err := s.consumeContext(correlationID)
	if err != nil {
		return nil, err
	}
	if recipientURL == "" {
		recipientURL = consumed.RemoteMetadataURL
	}

	result := &BeginResponseResult{Response: consumed.PendingResponse, Context: consumed}
	for _, name := range withheld {
		if attr, ok := result.Response.Attributes.Get(name); ok && !attr.Required {
			attr.Values = nil
			attr.ComplexValues = nil
			attr.Status = domain.StatusWithheld
			result.Response.Attributes.Add(attr)
		}
	}

	signed, err := s.CompleteResponse(ctx, result, recipientURL)
	if err != nil {
		return nil, err
	}
	return &PluginOutcome{Final: signed}, nil
}
