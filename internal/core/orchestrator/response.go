package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// BeginResponseResult is the outcome of BeginResponse. When consent is
// pending, the caller must send the browser to the consent step carrying
// ConsentToken instead of finalizing immediately.
type BeginResponseResult struct {
	Response *domain.AuthenticationResponse
	Context  *domain.AuthenticationContext

	// ConsentPending is set when policy parked the response for consent.
	ConsentPending bool

	// ConsentToken is the signed token for the consent round-trip.
	ConsentToken string
}

// BeginResponse validates an inbound encoded response against the pending
// request it references. The correlation entry is consumed on success;
// its absence is fatal (expiry, replay, or a forged reference). The
// resolved attributes are normalized back from the common vocabulary and
// checked against what was originally requested.
func (s *Service) BeginResponse(ctx context.Context, p WireParams) (res *BeginResponseResult, err error) {
	defer func() { s.recordResponse(err) }()

	if p.SAMLResponse == "" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "missing SAMLResponse parameter")
	}

	inResponseTo, claimedIssuer, err := s.engine.ExtractReference(p.SAMLResponse)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "undecodable response message")
	}

	authCtx, err := s.consumeContext(inResponseTo)
	if err != nil {
		return nil, err
	}
	// From here on the attempt is identified; tag failures with it so the
	// translator can answer the requester and clear the entry.
	defer func() {
		err = withReference(err, FaultReference{
			InResponseTo:  authCtx.Request.ID,
			Destination:   authCtx.Request.AssertionConsumerURL,
			CorrelationID: authCtx.Request.ID,
		})
	}()

	// A connector hears back from the counterpart the request went to. A
	// proxy-service hears back from the national identity provider, whose
	// URL is not stored with the context; the claimed issuer is only a
	// lookup key and trust still comes from descriptor validation.
	senderURL := authCtx.RemoteMetadataURL
	if s.role == RoleProxyService {
		senderURL = claimedIssuer
	}
	remote, err := s.remoteParty(ctx, senderURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.engine.UnmarshalResponse(p.SAMLResponse, remote)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkBinding(authCtx.Request.Binding, p.Method); err != nil {
		return nil, err
	}

	if aerr := authCtx.Advance(domain.StateResponseReceived); aerr != nil {
		// A context that never reached the dispatched state cannot
		// legally receive a response.
		return nil, domain.WrapFault(domain.KindInvalidSession, aerr,
			"response arrived in state %s", authCtx.State)
	}

	if resp.Status.Failed() {
		// A remote fault response is passed through; nothing to normalize.
		s.log().Warn("remote party returned a fault",
			zap.String("role", string(s.role)),
			zap.String("in_response_to", inResponseTo),
			zap.String("status", resp.Status.Code),
			zap.String("sub_status", resp.Status.SubCode),
		)
		return &BeginResponseResult{Response: resp, Context: authCtx}, nil
	}

	if !resp.LevelOfAssurance.Satisfies(authCtx.Request.LevelOfAssurance, authCtx.Request.Comparison) {
		return nil, domain.NewFault(domain.KindLoANotSupported,
			"offered level %q does not satisfy required %q (%s)",
			resp.LevelOfAssurance, authCtx.Request.LevelOfAssurance, authCtx.Request.Comparison)
	}

	attrs := resp.Attributes
	if attrs == nil {
		attrs = domain.NewPersonalAttributeList()
	}
	attrs = s.catalog.DeriveAttributesBack(attrs)
	attrs = s.catalog.NormalizeFromCommon(attrs)
	resp.Attributes = attrs

	if !s.catalog.CompareLists(authCtx.Request.RequestedAttributes, resp.Attributes) {
		return nil, domain.NewFault(domain.KindInvalidAttributeList,
			"returned attribute set does not match the requested one")
	}

	_ = authCtx.Advance(domain.StateNormalized)

	if s.policy.ConsentEnabled && s.consent != nil {
		return s.parkForConsent(authCtx, resp)
	}

	s.log().Info("authentication response accepted",
		zap.String("role", string(s.role)),
		zap.String("in_response_to", inResponseTo),
		zap.String("issuer_country", resp.IssuerCountry),
	)
	return &BeginResponseResult{Response: resp, Context: authCtx}, nil
}

// parkForConsent re-stores the context with the pending response and
// issues the consent token for the browser round-trip.
func (s *Service) parkForConsent(authCtx *domain.AuthenticationContext, resp *domain.AuthenticationResponse) (*BeginResponseResult, error) {
	if err := authCtx.Advance(domain.StateConsentPending); err != nil {
		return nil, err
	}
	authCtx.PendingResponse = resp
	if err := s.correlations.Put(authCtx.Request.ID, authCtx); err != nil {
		return nil, domain.WrapFault(domain.KindInternal, err, "park pending response")
	}
	token, err := s.consent.Issue(authCtx.Request.ID)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInternal, err, "issue consent token")
	}
	return &BeginResponseResult{
		Response:       resp,
		Context:        authCtx,
		ConsentPending: true,
		ConsentToken:   token,
	}, nil
}

// ResumeConsent validates the consent token coming back from the browser
// and returns the parked context. Withheld attribute names are removed
// from the pending response before finalization.
func (s *Service) ResumeConsent(token string, withheld []string) (res *BeginResponseResult, err error) {
	id, verr := s.consent.Verify(token)
	if verr != nil {
		return nil, domain.WrapFault(domain.KindInvalidSession, verr, "consent token rejected")
	}
	authCtx, err := s.consumeContext(id)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = withReference(err, FaultReference{
			InResponseTo:  authCtx.Request.ID,
			Destination:   authCtx.Request.AssertionConsumerURL,
			CorrelationID: authCtx.Request.ID,
		})
	}()
	if authCtx.State != domain.StateConsentPending || authCtx.PendingResponse == nil {
		return nil, domain.NewFault(domain.KindInvalidSession,
			"no consent-pending response for reference %q", id)
	}
	resp := authCtx.PendingResponse
	for _, name := range withheld {
		if attr, ok := resp.Attributes.Get(name); ok {
			if attr.Required {
				return nil, domain.NewFault(domain.KindMandatoryAttributesMissing,
					"consent withheld for required attribute %q", name)
			}
			attr.Values = nil
			attr.ComplexValues = nil
			attr.Status = domain.StatusWithheld
			resp.Attributes.Add(attr)
		}
	}
	return &BeginResponseResult{Response: resp, Context: authCtx}, nil
}

// CompleteResponse re-checks mandatory completeness and produces the
// signed (and, when the recipient publishes an encryption certificate,
// encrypted) final response. The vocabulary direction depends on the
// role: a proxy-service answers a remote node and normalizes to the
// common vocabulary, a connector answers its own relying party and
// keeps the national names restored by BeginResponse. The correlation
// entry is cleared; the response is never persisted.
func (s *Service) CompleteResponse(ctx context.Context, result *BeginResponseResult, recipientURL string) (msg *ports.SignedMessage, err error) {
	defer func() {
		if err != nil {
			s.recordResponse(err)
		}
	}()

	resp := result.Response.Clone()
	authCtx := result.Context

	if !resp.Status.Failed() {
		// The mandatory sets are declared in the common vocabulary, so
		// completeness is always checked against the common names even
		// when the outbound message keeps the national ones.
		common, nerr := s.catalog.NormalizeToCommon(resp.Attributes)
		if nerr != nil {
			return nil, nerr
		}
		common = s.catalog.DeriveAttributes(common)
		if s.role == RoleProxyService {
			resp.Attributes = common
		}

		if s.policy.CheckMandatoryAttributes && !s.catalog.CheckMandatorySets(common) {
			return nil, domain.NewFault(domain.KindMandatoryAttributesMissing,
				"resolved attribute set does not cover the mandatory sets")
		}
	}

	recipient, err := s.remoteParty(ctx, recipientURL)
	if err != nil {
		return nil, err
	}

	resp.ID = newMessageID()
	resp.Issuer = s.issuer
	resp.InResponseTo = authCtx.Request.ID
	resp.Destination = recipient.AssertionConsumerURL
	if resp.Destination == "" {
		resp.Destination = authCtx.Request.AssertionConsumerURL
	}
	if resp.Destination == "" {
		return nil, domain.NewFault(domain.KindInvalidMetadata,
			"no assertion consumer endpoint for recipient %q", recipientURL)
	}
	resp.AudienceRestriction = recipient.EntityID

	signed, err := s.engine.MarshalResponse(resp, recipient)
	if err != nil {
		return nil, fmt.Errorf("marshal outbound response: %w", err)
	}
	signed.RelayState = authCtx.RelayState

	_ = authCtx.Advance(domain.StateFinalized)
	s.correlations.Remove(authCtx.Request.ID)

	s.log().Info("authentication response finalized",
		zap.String("role", string(s.role)),
		zap.String("in_response_to", resp.InResponseTo),
		zap.String("destination", resp.Destination),
	)
	return signed, nil
}
