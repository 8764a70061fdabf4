package orchestrator

import (
	"errors"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// FaultReference carries what is known about the failed attempt at the
// moment of translation. A signed fault response can only be produced
// when both the reference id and the destination are known and trusted.
type FaultReference struct {
	// InResponseTo is the originating request identifier, if known.
	InResponseTo string

	// Destination is the return URL for the signed fault, if known.
	Destination string

	// CorrelationID locates the context to clear, usually equal to
	// InResponseTo.
	CorrelationID string
}

// referencedError ties a failure to the attempt it belongs to. The
// orchestrator attaches it once the in-flight context is known, so the
// translator can address a signed fault and clear the right entry even
// when the caller had nothing to pass.
type referencedError struct {
	err error
	ref FaultReference
}

func (e *referencedError) Error() string { return e.err.Error() }
func (e *referencedError) Unwrap() error { return e.err }

// withReference annotates err with the attempt's fault reference. A nil
// err stays nil.
func withReference(err error, ref FaultReference) error {
	if err == nil {
		return nil
	}
	return &referencedError{err: err, ref: ref}
}

// FaultOutcome is the translated form of an internal failure.
type FaultOutcome struct {
	// Kind is the classified fault kind.
	Kind domain.FaultKind

	// Signed is the protocol-conformant fault response, when one could be
	// produced.
	Signed *ports.SignedMessage

	// UserMessage is the localizable text for the interceptor page used
	// when no signed response exists.
	UserMessage string
}

// Translator converts internal failures into protocol-conformant fault
// responses or user-facing error pages. It is the single place deciding
// sub-status codes; raise sites only tag a kind.
type Translator struct {
	engine       ports.AssertionEngine
	correlations ports.CorrelationStore
	metrics      ports.MetricsRecorder
	logger       *zap.Logger
	issuer       string
}

// NewTranslator builds the error translator for one role instance.
func NewTranslator(issuer string, engine ports.AssertionEngine, correlations ports.CorrelationStore, metrics ports.MetricsRecorder, logger *zap.Logger) *Translator {
	return &Translator{
		engine:       engine,
		correlations: correlations,
		metrics:      metrics,
		logger:       logger,
		issuer:       issuer,
	}
}

func (t *Translator) log() *zap.Logger {
	if t.logger == nil {
		return zap.NewNop()
	}
	return t.logger
}

// Translate classifies err and produces the fault outcome. Session-level
// faults are never converted into signed responses: no trustworthy
// destination exists for them, and the stored state is left untouched so
// an unexpired entry elsewhere in the flow can still be served. All other
// fault paths clear the in-flight context.
func (t *Translator) Translate(err error, ref FaultReference) *FaultOutcome {
	// A reference attached inside the orchestrator fills whatever the
	// caller could not know.
	var re *referencedError
	if errors.As(err, &re) {
		if ref.InResponseTo == "" {
			ref.InResponseTo = re.ref.InResponseTo
		}
		if ref.Destination == "" {
			ref.Destination = re.ref.Destination
		}
		if ref.CorrelationID == "" {
			ref.CorrelationID = re.ref.CorrelationID
		}
	}

	kind := domain.KindOf(err)
	if t.metrics != nil {
		t.metrics.RecordFault(string(kind))
	}

	out := &FaultOutcome{
		Kind:        kind,
		UserMessage: domain.UserMessageFor(kind),
	}

	switch kind {
	case domain.KindInvalidSession:
		t.log().Warn("session fault", zap.Error(err),
			zap.String("in_response_to", ref.InResponseTo))
		return out

	case domain.KindInternal:
		// Unexpected failure: log at high severity, leak nothing.
		t.log().Error("internal fault", zap.Error(err),
			zap.String("in_response_to", ref.InResponseTo))
	default:
		t.log().Warn("protocol fault", zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("in_response_to", ref.InResponseTo))
	}

	if ref.CorrelationID != "" && t.correlations != nil {
		t.correlations.Remove(ref.CorrelationID)
	}

	if kind == domain.KindInternal || ref.InResponseTo == "" || ref.Destination == "" {
		return out
	}

	fault := &domain.AuthenticationResponse{
		ID:           newMessageID(),
		InResponseTo: ref.InResponseTo,
		Issuer:       t.issuer,
		Destination:  ref.Destination,
		Status: domain.ResponseStatus{
			Code:    domain.StatusResponder,
			SubCode: domain.SubStatusFor(kind),
			Message: domain.UserMessageFor(kind),
		},
	}
	signed, serr := t.engine.MarshalFault(fault)
	if serr != nil {
		t.log().Error("fault response could not be signed", zap.Error(serr))
		return out
	}
	out.Signed = signed
	return out
}
