//go:build unit

package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

func testTranslator(eng *fakeEngine, corr *fakeCorrelations, metrics *fakeMetrics) *Translator {
	return NewTranslator(testIssuer, eng, corr, metrics, nil)
}

func faultRef() FaultReference {
	return FaultReference{
		InResponseTo:  "_req-1",
		Destination:   "https://sp.example.eu/acs",
		CorrelationID: "_req-1",
	}
}

func storedFaultContext(t *testing.T, corr *fakeCorrelations) {
	t.Helper()
	attrs := domain.NewPersonalAttributeList()
	attrs.Add(domain.PersonalAttribute{Name: "eIdentifier", Required: true})
	err := corr.Put("_req-1", &domain.AuthenticationContext{
		Request: &domain.AuthenticationRequest{ID: "_req-1", RequestedAttributes: attrs},
		State:   domain.StateRequestDispatched,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTranslateSignedFault(t *testing.T) {
	eng, corr, metrics := newFakeEngine(), newFakeCorrelations(), &fakeMetrics{}
	storedFaultContext(t, corr)
	tr := testTranslator(eng, corr, metrics)

	out := tr.Translate(domain.NewFault(domain.KindUnauthorized, "unknown provider"), faultRef())
	if out.Kind != domain.KindUnauthorized {
		t.Errorf("Kind = %s", out.Kind)
	}
	if out.Signed == nil {
		t.Fatal("no signed fault produced despite a known return address")
	}
	if out.UserMessage == "" {
		t.Error("no user message")
	}
	if metrics.faults != 1 {
		t.Errorf("fault metric = %d", metrics.faults)
	}

	if len(eng.faults) != 1 {
		t.Fatalf("marshaled faults = %d", len(eng.faults))
	}
	fault := eng.faults[0]
	if fault.Status.Code != domain.StatusResponder {
		t.Errorf("status code = %q", fault.Status.Code)
	}
	if fault.Status.SubCode != domain.SubStatusRequestDenied {
		t.Errorf("sub-status = %q", fault.Status.SubCode)
	}
	if fault.InResponseTo != "_req-1" || fault.Issuer != testIssuer {
		t.Errorf("fault reference = %+v", fault)
	}
	if fault.Destination != "https://sp.example.eu/acs" {
		t.Errorf("destination = %q", fault.Destination)
	}

	// The in-flight context is cleared.
	if _, err := corr.Peek("_req-1"); err == nil {
		t.Error("correlation entry survived the fault")
	}
}

func TestTranslateSubStatusByKind(t *testing.T) {
	tests := []struct {
		kind domain.FaultKind
		want string
	}{
		{domain.KindLoANotSupported, domain.SubStatusQAANotSupported},
		{domain.KindMandatoryAttributesMissing, domain.SubStatusInvalidAttrValue},
		{domain.KindInvalidAttributeList, domain.SubStatusInvalidAttrValue},
		{domain.KindAuthenticationFailed, domain.SubStatusAuthnFailed},
		{domain.KindSignatureInvalid, domain.SubStatusAuthnFailed},
		{domain.KindAttributeAccessDenied, domain.SubStatusRequestDenied},
		{domain.KindNoMetadata, domain.SubStatusRequestDenied},
	}
	for _, tt := range tests {
		eng, corr := newFakeEngine(), newFakeCorrelations()
		storedFaultContext(t, corr)
		tr := testTranslator(eng, corr, nil)

		out := tr.Translate(domain.NewFault(tt.kind, "boom"), faultRef())
		if out.Signed == nil {
			t.Errorf("%s: no signed fault", tt.kind)
			continue
		}
		if got := eng.faults[0].Status.SubCode; got != tt.want {
			t.Errorf("%s: sub-status = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestTranslateInvalidSession(t *testing.T) {
	eng, corr := newFakeEngine(), newFakeCorrelations()
	storedFaultContext(t, corr)
	tr := testTranslator(eng, corr, nil)

	out := tr.Translate(domain.NewFault(domain.KindInvalidSession, "replayed"), faultRef())
	if out.Signed != nil {
		t.Error("session fault was converted into a signed response")
	}
	// Session faults leave the stored state untouched: an unexpired entry
	// elsewhere in the flow can still be served.
	if _, err := corr.Peek("_req-1"); err != nil {
		t.Errorf("correlation entry cleared on a session fault: %v", err)
	}
}

func TestTranslateInternal(t *testing.T) {
	eng, corr := newFakeEngine(), newFakeCorrelations()
	storedFaultContext(t, corr)
	tr := testTranslator(eng, corr, nil)

	out := tr.Translate(errors.New("database exploded"), faultRef())
	if out.Kind != domain.KindInternal {
		t.Errorf("Kind = %s, want internal for an untagged error", out.Kind)
	}
	// Internal faults never leak onto the wire, but the context is cleared.
	if out.Signed != nil {
		t.Error("internal fault was converted into a signed response")
	}
	if out.UserMessage == "" {
		t.Error("no user message")
	}
	if _, err := corr.Peek("_req-1"); err == nil {
		t.Error("correlation entry survived an internal fault")
	}
}

func TestTranslateAttachedReference(t *testing.T) {
	eng, corr := newFakeEngine(), newFakeCorrelations()
	storedFaultContext(t, corr)
	tr := testTranslator(eng, corr, nil)

	// The caller knows nothing; the reference travels inside the error.
	err := withReference(domain.NewFault(domain.KindLoANotSupported, "level too low"), faultRef())
	out := tr.Translate(err, FaultReference{})
	if out.Kind != domain.KindLoANotSupported {
		t.Errorf("Kind = %s", out.Kind)
	}
	if out.Signed == nil {
		t.Fatal("no signed fault despite an attached return address")
	}
	fault := eng.faults[0]
	if fault.InResponseTo != "_req-1" || fault.Destination != "https://sp.example.eu/acs" {
		t.Errorf("fault reference = %+v", fault)
	}
	if _, perr := corr.Peek("_req-1"); perr == nil {
		t.Error("correlation entry survived the fault")
	}
}

func TestBeginResponseFaultCarriesReference(t *testing.T) {
	eng, trust, corr := newFakeEngine(), newFakeTrust(), newFakeCorrelations()
	svc := newConnector(eng, trust, corr, testPolicy())

	req := dispatch(t, svc)
	encoded := remoteResponseFor(eng, req)
	eng.responses[encoded].LevelOfAssurance = domain.LoALow

	_, err := svc.BeginResponse(context.Background(), WireParams{SAMLResponse: encoded})
	if domain.KindOf(err) != domain.KindLoANotSupported {
		t.Fatalf("error = %v, want loa_not_supported fault", err)
	}

	tr := testTranslator(eng, corr, nil)
	out := tr.Translate(err, FaultReference{})
	if out.Signed == nil {
		t.Fatal("no signed fault toward the requester")
	}
	fault := eng.faults[0]
	if fault.InResponseTo != req.ID {
		t.Errorf("InResponseTo = %q, want %q", fault.InResponseTo, req.ID)
	}
	if fault.Destination != "https://sp.example.eu/acs" {
		t.Errorf("Destination = %q", fault.Destination)
	}
}

func TestTranslateWithoutReturnAddress(t *testing.T) {
	eng, corr := newFakeEngine(), newFakeCorrelations()
	tr := testTranslator(eng, corr, nil)

	for _, ref := range []FaultReference{
		{},
		{InResponseTo: "_req-1"},
		{Destination: "https://sp.example.eu/acs"},
	} {
		out := tr.Translate(domain.NewFault(domain.KindUnauthorized, "nope"), ref)
		if out.Signed != nil {
			t.Errorf("signed fault produced without a full return address: %+v", ref)
		}
		if out.UserMessage == "" {
			t.Error("no user message for the interceptor page")
		}
	}
}

func TestTranslateSigningFailure(t *testing.T) {
	eng, corr := newFakeEngine(), newFakeCorrelations()
	eng.marshalFaultErr = errors.New("key unavailable")
	tr := testTranslator(eng, corr, nil)

	out := tr.Translate(domain.NewFault(domain.KindUnauthorized, "nope"), faultRef())
	if out.Signed != nil {
		t.Error("signed message despite marshal failure")
	}
	if out.UserMessage == "" {
		t.Error("no fallback user message")
	}
}
