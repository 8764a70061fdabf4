// Package eidasnode implements a cross-border identity federation node.
//
// A node plays one or both of two roles: the connector receives
// authentication requests from registered relying parties and dispatches
// them to the citizen country's node; the proxy-service receives those
// requests, resolves them through a national identity handler and
// returns the signed attribute assertion. The two legs meet over a
// SAML-based wire format carried through the citizen's browser.
//
// The root package re-exports the core types; the orchestrator, the
// domain model and the adapters live under internal/.
package eidasnode

import (
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// Re-export the orchestrator surface.
type (
	Role                = orchestrator.Role
	Policy              = orchestrator.Policy
	SPTypePolicy        = orchestrator.SPTypePolicy
	WireParams          = orchestrator.WireParams
	Service             = orchestrator.Service
	Option              = orchestrator.Option
	BeginResponseResult = orchestrator.BeginResponseResult
	PluginOutcome       = orchestrator.PluginOutcome
	Translator          = orchestrator.Translator
	FaultReference      = orchestrator.FaultReference
	FaultOutcome        = orchestrator.FaultOutcome
)

const (
	RoleConnector    = orchestrator.RoleConnector
	RoleProxyService = orchestrator.RoleProxyService
)

var (
	New           = orchestrator.New
	NewTranslator = orchestrator.NewTranslator

	WithConsentTokens    = orchestrator.WithConsentTokens
	WithNationalHandlers = orchestrator.WithNationalHandlers
	WithMetrics          = orchestrator.WithMetrics
	WithLogger           = orchestrator.WithLogger
	WithClock            = orchestrator.WithClock
)

// Re-export the port interfaces extension points implement.
type (
	AssertionEngine     = ports.AssertionEngine
	TrustStore          = ports.TrustStore
	CorrelationStore    = ports.CorrelationStore
	KeyValueCache       = ports.KeyValueCache
	MetricsRecorder     = ports.MetricsRecorder
	NationalHandler     = ports.NationalHandler
	ConsentTokenService = ports.ConsentTokenService
	RemoteParty         = ports.RemoteParty
	SignedMessage       = ports.SignedMessage
)
