package domain

import "time"

// FlowState is the position of one authentication attempt in the
// per-role state machine.
type FlowState string

const (
	StateIdle              FlowState = "idle"
	StateRequestReceived   FlowState = "request-received"
	StateRequestDispatched FlowState = "request-dispatched"
	StateResponseReceived  FlowState = "response-received"
	StateNormalized        FlowState = "normalized"
	StateConsentPending    FlowState = "consent-pending"
	StateFinalized         FlowState = "finalized"
	StateFault             FlowState = "fault"
)

// validTransitions lists the permitted forward moves. Any state may also
// short-circuit to StateFault.
var validTransitions = map[FlowState][]FlowState{
	StateIdle:              {StateRequestReceived},
	StateRequestReceived:   {StateRequestDispatched},
	StateRequestDispatched: {StateResponseReceived},
	StateResponseReceived:  {StateNormalized},
	StateNormalized:        {StateConsentPending, StateFinalized},
	StateConsentPending:    {StateFinalized},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to FlowState) bool {
	if to == StateFault {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the attempt.
func (s FlowState) Terminal() bool {
	return s == StateFinalized || s == StateFault
}

// AuthenticationContext is the typed in-flight state of one authentication
// attempt, stored in the correlation store under the request identifier.
// It replaces ad hoc string-keyed session maps.
type AuthenticationContext struct {
	// Request is the stored originating request.
	Request *AuthenticationRequest

	// RelayState is the opaque value echoed back to the requester.
	RelayState string

	// RemoteMetadataURL identifies the counterpart this attempt trusts.
	RemoteMetadataURL string

	// State is the current flow state.
	State FlowState

	// PendingResponse parks a normalized response while consent is pending.
	PendingResponse *AuthenticationResponse

	// CreatedAt bounds the lifetime of the attempt.
	CreatedAt time.Time
}

// Advance moves the context to the next state, failing with an
// InvalidSession fault on an illegal transition.
func (c *AuthenticationContext) Advance(to FlowState) error {
	if !CanTransition(c.State, to) {
		return NewFault(KindInvalidSession, "illegal state transition %s -> %s", c.State, to)
	}
	c.State = to
	return nil
}
