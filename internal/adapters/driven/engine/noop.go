package engine

import (
	"encoding/base64"
	"time"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// NoopEngine marshals and unmarshals protocol messages without signing,
// verification or encryption. It exists for tests and for local
// development setups where no key material is available. Never use it
// in production.
type NoopEngine struct{}

// NewNoopEngine creates an engine that performs no cryptography.
func NewNoopEngine() *NoopEngine {
	return &NoopEngine{}
}

func (e *NoopEngine) MarshalRequest(req *domain.AuthenticationRequest) (*ports.SignedMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doc := buildRequestDocument(req, time.Now().UTC())
	xml, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return &ports.SignedMessage{
		XML:         xml,
		Encoded:     base64.StdEncoding.EncodeToString(xml),
		Destination: req.Destination,
		Binding:     req.Binding,
		RelayState:  req.RelayState,
	}, nil
}

func (e *NoopEngine) UnmarshalRequest(encoded string, _ *ports.RemoteParty) (*domain.AuthenticationRequest, error) {
	doc, err := decodeDocument(encoded)
	if err != nil {
		return nil, err
	}
	req, err := parseRequestElement(doc.Root())
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (e *NoopEngine) MarshalResponse(resp *domain.AuthenticationResponse, _ *ports.RemoteParty) (*ports.SignedMessage, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	doc := buildResponseDocument(resp, time.Now().UTC())
	xml, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return &ports.SignedMessage{
		XML:         xml,
		Encoded:     base64.StdEncoding.EncodeToString(xml),
		Destination: resp.Destination,
		Binding:     domain.BindingPost,
	}, nil
}

func (e *NoopEngine) MarshalFault(resp *domain.AuthenticationResponse) (*ports.SignedMessage, error) {
	return e.MarshalResponse(resp, nil)
}

func (e *NoopEngine) UnmarshalResponse(encoded string, _ *ports.RemoteParty) (*domain.AuthenticationResponse, error) {
	doc, err := decodeDocument(encoded)
	if err != nil {
		return nil, err
	}
	resp, err := parseResponseElement(doc.Root(), doc.Root().FindElement("./Assertion"))
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *NoopEngine) ExtractReference(encoded string) (string, string, error) {
	return extractReference(encoded)
}

// VerifyDescriptor accepts every descriptor unchanged.
func (e *NoopEngine) VerifyDescriptor(descriptor []byte) ([]byte, error) {
	return descriptor, nil
}

// Ensure NoopEngine implements ports.AssertionEngine
var _ ports.AssertionEngine = (*NoopEngine)(nil)
