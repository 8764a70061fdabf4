package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// newMessageID returns a fresh protocol message identifier. SAML IDs must
// be valid NCNames, so the leading character cannot be a digit.
func newMessageID() string {
	return "_" + uuid.NewString()
}

// BeginRequest decodes an inbound protocol interaction into an
// outbound-ready AuthenticationRequest and persists the correlation
// entry. Two shapes arrive here: an encoded SAMLRequest from a remote
// node, or the side-channel fields of the relying-party edge. In both
// shapes the requesting party must be known and authorized for the
// requested attribute set, and the claimed binding must match the actual
// HTTP method when binding validation is enabled.
func (s *Service) BeginRequest(ctx context.Context, p WireParams) (req *domain.AuthenticationRequest, err error) {
	defer func() { s.recordRequest(err) }()

	if p.SAMLRequest != "" {
		req, err = s.beginEncodedRequest(ctx, p)
	} else {
		req, err = s.beginEdgeRequest(p)
	}
	if err != nil {
		return nil, err
	}

	if err := s.checkBinding(req.Binding, p.Method); err != nil {
		return nil, err
	}
	if err := s.checkAttributeAccess(requesterID(req), req.RequestedAttributes); err != nil {
		return nil, err
	}
	if s.role == RoleProxyService && p.SAMLRequest != "" {
		// The wire between nodes speaks the common vocabulary; the
		// identity-provider side speaks the national one. Localize the
		// requested names now so the provider's response can be compared
		// against the stored request directly.
		attrs := s.catalog.DeriveAttributesBack(req.RequestedAttributes)
		req.RequestedAttributes = s.catalog.NormalizeFromCommon(attrs)
	}
	if err := s.storeContext(req, p.RelayState, p.RemoteMetadataURL, domain.StateRequestReceived); err != nil {
		return nil, domain.WrapFault(domain.KindInternal, err, "persist correlation entry")
	}

	s.log().Info("authentication request accepted",
		zap.String("role", string(s.role)),
		zap.String("request_id", req.ID),
		zap.String("citizen_country", req.CitizenCountry),
	)
	return req, nil
}

// beginEncodedRequest handles a signed SAMLRequest from a remote node.
func (s *Service) beginEncodedRequest(ctx context.Context, p WireParams) (*domain.AuthenticationRequest, error) {
	issuer, err := s.remoteParty(ctx, p.RemoteMetadataURL)
	if err != nil {
		return nil, err
	}
	req, err := s.engine.UnmarshalRequest(p.SAMLRequest, issuer)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.RelayState = p.RelayState
	return req, nil
}

// beginEdgeRequest builds a request from the relying-party edge fields.
func (s *Service) beginEdgeRequest(p WireParams) (*domain.AuthenticationRequest, error) {
	if p.SPID == "" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "missing spId parameter")
	}
	if p.SPURL == "" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "missing spUrl parameter")
	}
	if p.CitizenCountry == "" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "missing citizen country parameter")
	}

	attrs, err := domain.ParsePersonalAttributeList(p.AttributeList)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "malformed attribute list")
	}
	if attrs.Len() == 0 {
		return nil, domain.NewFault(domain.KindInvalidParameter, "empty attribute list")
	}

	loa, err := domain.ParseLevelOfAssurance(p.SPQAALevel)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "malformed spQaaLevel parameter")
	}

	binding := domain.BindingPost
	if p.Method != "" {
		if b, err := domain.ParseBinding(p.Method); err == nil {
			binding = b
		}
	}

	req := &domain.AuthenticationRequest{
		ID:                   newMessageID(),
		Issuer:               s.issuer,
		AssertionConsumerURL: p.SPURL,
		ProviderName:         p.ProviderName,
		SPID:                 p.SPID,
		SPType:               domain.SPType(p.SPType),
		CitizenCountry:       p.CitizenCountry,
		Binding:              binding,
		FormatVersion:        domain.FormatEidas,
		LevelOfAssurance:     loa,
		Comparison:           domain.ComparisonMinimum,
		RequestedAttributes:  attrs,
		RelayState:           p.RelayState,
	}
	return req, req.Validate()
}

// requesterID returns the identity the attribute-access policy is keyed
// by: the edge SP id when present, otherwise the issuing node.
func requesterID(req *domain.AuthenticationRequest) string {
	if req.SPID != "" {
		return req.SPID
	}
	return req.Issuer
}

// CompleteRequest turns an accepted request into a signed outbound
// message addressed to the remote party at remoteURL. The attribute
// vocabulary is normalized to the common one, declared derivations are
// applied, mandatory-attribute completeness is enforced when policy
// requires it, and the service-provider-type is resolved against local
// policy.
func (s *Service) CompleteRequest(ctx context.Context, req *domain.AuthenticationRequest, remoteURL string) (msg *ports.SignedMessage, err error) {
	defer func() {
		if err != nil {
			s.recordRequest(err)
		}
	}()

	remote, err := s.remoteParty(ctx, remoteURL)
	if err != nil {
		return nil, err
	}

	out := req.Clone()

	normalized, err := s.catalog.NormalizeToCommon(out.RequestedAttributes)
	if err != nil {
		return nil, err
	}
	normalized = s.catalog.DeriveAttributes(normalized)
	out.RequestedAttributes = normalized

	if s.policy.CheckMandatoryAttributes && !s.catalog.CheckMandatorySets(normalized) {
		return nil, domain.NewFault(domain.KindMandatoryAttributesMissing,
			"requested attribute set does not cover the mandatory sets")
	}

	out.SPType = s.policy.SPType.Resolve(out.SPType)
	if s.policy.SPType.Local != "" {
		// Local policy wins; the request value is cleared from the wire
		// and the remote side sees only the local one.
		s.log().Debug("service-provider-type overridden by local policy",
			zap.String("request_id", out.ID))
	}

	// The newer format withholds the consumer URL until the
	// identity-provider side resolves it from metadata.
	if out.FormatVersion == domain.FormatEidas {
		out.AssertionConsumerURL = ""
	}

	destination, ok := remote.SSOLocations[string(out.Binding)]
	if !ok || destination == "" {
		// Fall back to a published endpoint, preferring POST over
		// redirect so the choice is stable across runs.
		for _, b := range []domain.Binding{domain.BindingPost, domain.BindingRedirect} {
			if loc := remote.SSOLocations[string(b)]; loc != "" {
				out.Binding, destination = b, loc
				break
			}
		}
	}
	if destination == "" {
		return nil, domain.NewFault(domain.KindInvalidMetadata,
			"descriptor for %q publishes no usable destination endpoint", remoteURL)
	}
	out.Destination = destination
	out.Issuer = s.issuer

	signed, err := s.engine.MarshalRequest(out)
	if err != nil {
		return nil, fmt.Errorf("marshal outbound request: %w", err)
	}
	signed.RelayState = req.RelayState

	// Track dispatch in the stored context so replays of the response leg
	// can be distinguished from out-of-order arrivals.
	if authCtx, perr := s.correlations.Peek(req.ID); perr == nil && authCtx != nil {
		if aerr := authCtx.Advance(domain.StateRequestDispatched); aerr == nil {
			_ = s.correlations.Put(req.ID, authCtx)
		}
	}

	s.log().Info("authentication request dispatched",
		zap.String("role", string(s.role)),
		zap.String("request_id", out.ID),
		zap.String("destination", destination),
	)
	return signed, nil
}
