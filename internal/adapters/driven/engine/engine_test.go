//go:build unit

package engine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

func sampleRequest() *domain.AuthenticationRequest {
	attrs := domain.NewPersonalAttributeList()
	attrs.Add(domain.PersonalAttribute{Name: "PersonIdentifier", Required: true})
	attrs.Add(domain.PersonalAttribute{Name: "CurrentFamilyName", Required: true})
	attrs.Add(domain.PersonalAttribute{Name: "CurrentAge", Required: false})

	return &domain.AuthenticationRequest{
		ID:                  "_req-1",
		Issuer:              "https://connector.example.eu/metadata",
		Destination:         "https://proxy.example.eu/ColleagueRequest",
		ProviderName:        "Demo SP",
		SPID:                "demo-sp",
		SPType:              domain.SPTypePublic,
		CitizenCountry:      "CB",
		OriginCountry:       "CA",
		Binding:             domain.BindingPost,
		FormatVersion:       domain.FormatEidas,
		LevelOfAssurance:    domain.LoASubstantial,
		Comparison:          domain.ComparisonMinimum,
		RequestedAttributes: attrs,
		RelayState:          "rs-1",
	}
}

func sampleResponse() *domain.AuthenticationResponse {
	attrs := domain.NewPersonalAttributeList()
	attrs.Add(domain.PersonalAttribute{
		Name:   "PersonIdentifier",
		Values: []string{"CB/CA/12345"},
		Status: domain.StatusAvailable,
	})
	attrs.Add(domain.PersonalAttribute{
		Name:          "CurrentAddress",
		ComplexValues: []map[string]string{{"PostCode": "1000", "Town": "Brussels"}},
		Status:        domain.StatusAvailable,
	})

	return &domain.AuthenticationResponse{
		ID:                  "_resp-1",
		InResponseTo:        "_req-1",
		Issuer:              "https://proxy.example.eu/metadata",
		Destination:         "https://connector.example.eu/SpecificConnectorResponse",
		IssuerCountry:       "CB",
		Status:              domain.ResponseStatus{Code: domain.StatusSuccess},
		LevelOfAssurance:    domain.LoAHigh,
		Attributes:          attrs,
		Subject:             "CB/CA/12345",
		AudienceRestriction: "https://connector.example.eu/metadata",
		NotOnOrAfter:        time.Now().UTC().Add(5 * time.Minute).Truncate(time.Second),
	}
}

func TestNoopRequestRoundTrip(t *testing.T) {
	eng := NewNoopEngine()
	want := sampleRequest()

	msg, err := eng.MarshalRequest(want)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	if msg.Destination != want.Destination || msg.Binding != want.Binding || msg.RelayState != want.RelayState {
		t.Errorf("transport fields = %+v", msg)
	}

	got, err := eng.UnmarshalRequest(msg.Encoded, nil)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if got.ID != want.ID || got.Issuer != want.Issuer || got.ProviderName != want.ProviderName {
		t.Errorf("identity fields did not survive: %+v", got)
	}
	if got.SPID != want.SPID || got.SPType != want.SPType {
		t.Errorf("sp fields did not survive: %q %q", got.SPID, got.SPType)
	}
	if got.CitizenCountry != want.CitizenCountry || got.OriginCountry != want.OriginCountry {
		t.Errorf("country fields did not survive: %q %q", got.CitizenCountry, got.OriginCountry)
	}
	if got.LevelOfAssurance != want.LevelOfAssurance || got.Comparison != want.Comparison {
		t.Errorf("assurance fields did not survive: %q %q", got.LevelOfAssurance, got.Comparison)
	}
	if got.FormatVersion != domain.FormatEidas {
		t.Errorf("FormatVersion = %q, want eidas1 when no consumer url travels", got.FormatVersion)
	}

	all := got.RequestedAttributes.All()
	if len(all) != 3 {
		t.Fatalf("attribute count = %d, want 3", len(all))
	}
	if all[0].Name != "PersonIdentifier" || !all[0].Required {
		t.Errorf("attribute[0] = %+v", all[0])
	}
	if all[2].Name != "CurrentAge" || all[2].Required {
		t.Errorf("attribute[2] = %+v", all[2])
	}
}

func TestNoopRequestLegacyFormat(t *testing.T) {
	eng := NewNoopEngine()
	req := sampleRequest()
	req.FormatVersion = domain.FormatStork
	req.AssertionConsumerURL = "https://sp.example.eu/acs"

	msg, err := eng.MarshalRequest(req)
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	got, err := eng.UnmarshalRequest(msg.Encoded, nil)
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if got.FormatVersion != domain.FormatStork {
		t.Errorf("FormatVersion = %q, want stork1 when the consumer url travels", got.FormatVersion)
	}
	if got.AssertionConsumerURL != req.AssertionConsumerURL {
		t.Errorf("AssertionConsumerURL = %q", got.AssertionConsumerURL)
	}
}

func TestNoopResponseRoundTrip(t *testing.T) {
	eng := NewNoopEngine()
	want := sampleResponse()

	msg, err := eng.MarshalResponse(want, nil)
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	got, err := eng.UnmarshalResponse(msg.Encoded, nil)
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if got.ID != want.ID || got.InResponseTo != want.InResponseTo || got.Issuer != want.Issuer {
		t.Errorf("identity fields did not survive: %+v", got)
	}
	if got.IssuerCountry != want.IssuerCountry {
		t.Errorf("IssuerCountry = %q", got.IssuerCountry)
	}
	if got.Status.Failed() {
		t.Errorf("status = %+v, want success", got.Status)
	}
	if got.LevelOfAssurance != want.LevelOfAssurance {
		t.Errorf("LevelOfAssurance = %q", got.LevelOfAssurance)
	}
	if got.Subject != want.Subject || got.AudienceRestriction != want.AudienceRestriction {
		t.Errorf("assertion fields did not survive: %q %q", got.Subject, got.AudienceRestriction)
	}
	if !got.NotOnOrAfter.Equal(want.NotOnOrAfter) {
		t.Errorf("NotOnOrAfter = %v, want %v", got.NotOnOrAfter, want.NotOnOrAfter)
	}

	pid, ok := got.Attributes.Get("PersonIdentifier")
	if !ok || len(pid.Values) != 1 || pid.Values[0] != "CB/CA/12345" {
		t.Errorf("PersonIdentifier = %+v", pid)
	}
	if pid.Status != domain.StatusAvailable {
		t.Errorf("PersonIdentifier status = %q", pid.Status)
	}
	addr, ok := got.Attributes.Get("CurrentAddress")
	if !ok || len(addr.ComplexValues) != 1 {
		t.Fatalf("CurrentAddress = %+v", addr)
	}
	if addr.ComplexValues[0]["Town"] != "Brussels" || addr.ComplexValues[0]["PostCode"] != "1000" {
		t.Errorf("CurrentAddress fields = %+v", addr.ComplexValues[0])
	}
}

func TestNoopFault(t *testing.T) {
	eng := NewNoopEngine()
	fault := &domain.AuthenticationResponse{
		ID:           "_fault-1",
		InResponseTo: "_req-1",
		Issuer:       "https://proxy.example.eu/metadata",
		Status: domain.ResponseStatus{
			Code:    domain.StatusResponder,
			SubCode: domain.SubStatusAuthnFailed,
			Message: "Authentication failed.",
		},
	}
	msg, err := eng.MarshalFault(fault)
	if err != nil {
		t.Fatalf("MarshalFault: %v", err)
	}
	got, err := eng.UnmarshalResponse(msg.Encoded, nil)
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if !got.Status.Failed() {
		t.Error("fault status reads as success")
	}
	if got.Status.SubCode != domain.SubStatusAuthnFailed || got.Status.Message != "Authentication failed." {
		t.Errorf("status = %+v", got.Status)
	}
	if got.Attributes != nil && got.Attributes.Len() != 0 {
		t.Error("fault response carries attributes")
	}
}

func TestExtractReference(t *testing.T) {
	eng := NewNoopEngine()
	msg, err := eng.MarshalResponse(sampleResponse(), nil)
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	inResponseTo, issuer, err := eng.ExtractReference(msg.Encoded)
	if err != nil {
		t.Fatalf("ExtractReference: %v", err)
	}
	if inResponseTo != "_req-1" {
		t.Errorf("inResponseTo = %q", inResponseTo)
	}
	if issuer != "https://proxy.example.eu/metadata" {
		t.Errorf("issuer = %q", issuer)
	}
}

func TestDecodeDocumentErrors(t *testing.T) {
	eng := NewNoopEngine()
	for _, encoded := range []string{
		"not base64!!",
		base64.StdEncoding.EncodeToString([]byte("<unclosed")),
	} {
		if _, err := eng.UnmarshalRequest(encoded, nil); domain.KindOf(err) != domain.KindInvalidParameter {
			t.Errorf("UnmarshalRequest(%q) error = %v, want invalid_parameter fault", encoded, err)
		}
	}
}

// testKeyPair generates a self-signed key pair for signing tests.
func testKeyPair(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-node"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return key, cert
}

func remotePartyFor(cert *x509.Certificate) *ports.RemoteParty {
	return &ports.RemoteParty{
		EntityID:            "https://connector.example.eu/metadata",
		SigningCertificates: []string{base64.StdEncoding.EncodeToString(cert.Raw)},
	}
}

func TestSignedRequestRoundTrip(t *testing.T) {
	key, cert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	msg, err := eng.MarshalRequest(sampleRequest())
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	got, err := eng.UnmarshalRequest(msg.Encoded, remotePartyFor(cert))
	if err != nil {
		t.Fatalf("UnmarshalRequest: %v", err)
	}
	if got.ID != "_req-1" || got.CitizenCountry != "CB" {
		t.Errorf("request did not survive signing: %+v", got)
	}
}

func TestSignedRequestWrongSigner(t *testing.T) {
	key, cert := testKeyPair(t)
	_, otherCert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	msg, err := eng.MarshalRequest(sampleRequest())
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	_, err = eng.UnmarshalRequest(msg.Encoded, remotePartyFor(otherCert))
	if domain.KindOf(err) != domain.KindSignatureInvalid {
		t.Errorf("error = %v, want signature_invalid fault", err)
	}
}

func TestSignedRequestNoIssuerCertificates(t *testing.T) {
	key, cert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	msg, err := eng.MarshalRequest(sampleRequest())
	if err != nil {
		t.Fatalf("MarshalRequest: %v", err)
	}
	_, err = eng.UnmarshalRequest(msg.Encoded, &ports.RemoteParty{})
	if domain.KindOf(err) != domain.KindSignatureInvalid {
		t.Errorf("error = %v, want signature_invalid fault", err)
	}
}

func TestSignedResponseRoundTrip(t *testing.T) {
	key, cert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	// A recipient without an encryption certificate gets a plain assertion.
	msg, err := eng.MarshalResponse(sampleResponse(), &ports.RemoteParty{})
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	got, err := eng.UnmarshalResponse(msg.Encoded, remotePartyFor(cert))
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if got.Subject != "CB/CA/12345" || got.Status.Failed() {
		t.Errorf("response did not survive signing: %+v", got)
	}
}

func TestEncryptedResponseRoundTrip(t *testing.T) {
	key, cert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	recipient := &ports.RemoteParty{
		EncryptionCertificates: []string{base64.StdEncoding.EncodeToString(cert.Raw)},
	}
	msg, err := eng.MarshalResponse(sampleResponse(), recipient)
	if err != nil {
		t.Fatalf("MarshalResponse: %v", err)
	}
	wire := string(msg.XML)
	if !strings.Contains(wire, "EncryptedAssertion") {
		t.Fatal("assertion left in the clear despite a published encryption certificate")
	}
	if strings.Contains(wire, "<saml2:AttributeStatement") {
		t.Fatal("attribute statement visible on the wire")
	}
	got, err := eng.UnmarshalResponse(msg.Encoded, remotePartyFor(cert))
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if got.Subject != "CB/CA/12345" {
		t.Errorf("Subject = %q after decryption", got.Subject)
	}
	pid, ok := got.Attributes.Get("PersonIdentifier")
	if !ok || pid.Values[0] != "CB/CA/12345" {
		t.Errorf("PersonIdentifier = %+v after decryption", pid)
	}
}

func TestMarshalResponseBrokenEncryptionCertificate(t *testing.T) {
	key, cert := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, nil, nil)

	recipient := &ports.RemoteParty{
		EncryptionCertificates: []string{base64.StdEncoding.EncodeToString([]byte("not a certificate"))},
	}
	_, err := eng.MarshalResponse(sampleResponse(), recipient)
	if domain.KindOf(err) != domain.KindInvalidMetadata {
		t.Errorf("error = %v, want invalid_metadata fault", err)
	}
}

func TestVerifyDescriptorUntrusted(t *testing.T) {
	key, cert := testKeyPair(t)
	_, anchor := testKeyPair(t)
	eng := NewXMLDsigEngine(key, cert, []*x509.Certificate{anchor}, nil)

	// An unsigned descriptor fails against any anchor set.
	descriptor := []byte(`<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://x.example.eu"/>`)
	if _, err := eng.VerifyDescriptor(descriptor); domain.KindOf(err) != domain.KindSignatureInvalid {
		t.Errorf("error = %v, want signature_invalid fault", err)
	}
}

func TestNormalizeBase64(t *testing.T) {
	in := "AAAA\n  BB\tBB\r\nCC=="
	if got := normalizeBase64(in); got != "AAAABBBBCC==" {
		t.Errorf("normalizeBase64 = %q", got)
	}
}
