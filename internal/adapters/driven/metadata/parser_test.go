//go:build unit

package metadata

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testSigningCert = "MIIBsigningcertdata"
const testEncryptionCert = "MIIBencryptioncertdata"

func idpDescriptor(entityID, validUntil string) []byte {
	until := ""
	if validUntil != "" {
		until = fmt.Sprintf(" validUntil=%q", validUntil)
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
    xmlns:ds="http://www.w3.org/2000/09/xmldsig#"
    xmlns:mdattr="urn:oasis:names:tc:SAML:metadata:attribute"
    xmlns:saml2="urn:oasis:names:tc:SAML:2.0:assertion"
    entityID=%q%s>
  <md:Extensions>
    <mdattr:EntityAttributes>
      <saml2:Attribute Name="http://eidas.europa.eu/LoA">
        <saml2:AttributeValue>http://eidas.europa.eu/LoA/substantial</saml2:AttributeValue>
      </saml2:Attribute>
      <saml2:Attribute Name="http://eidas.europa.eu/entity-attributes/SPType">
        <saml2:AttributeValue>public</saml2:AttributeValue>
      </saml2:Attribute>
    </mdattr:EntityAttributes>
  </md:Extensions>
  <md:IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:KeyDescriptor use="signing">
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </md:KeyDescriptor>
    <md:KeyDescriptor use="encryption">
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </md:KeyDescriptor>
    <md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
        Location="https://proxy.example.eu/ColleagueRequest"/>
    <md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
        Location="https://proxy.example.eu/ColleagueRequestRedirect"/>
  </md:IDPSSODescriptor>
</md:EntityDescriptor>`, entityID, until, testSigningCert, testEncryptionCert))
}

func spDescriptor(entityID string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
    xmlns:ds="http://www.w3.org/2000/09/xmldsig#"
    entityID=%q>
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:KeyDescriptor>
      <ds:KeyInfo><ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data></ds:KeyInfo>
    </md:KeyDescriptor>
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
        Location="https://connector.example.eu/SpecificConnectorResponse" index="0"/>
    <md:AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
        Location="https://connector.example.eu/DefaultResponse" index="1" isDefault="true"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`, entityID, testSigningCert))
}

func TestParseDescriptorIDP(t *testing.T) {
	party, entry, err := ParseDescriptor(idpDescriptor("https://proxy.example.eu/metadata", ""), testNow)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if party.EntityID != "https://proxy.example.eu/metadata" {
		t.Errorf("EntityID = %q", party.EntityID)
	}
	if got := party.SSOLocations[string(domain.BindingPost)]; got != "https://proxy.example.eu/ColleagueRequest" {
		t.Errorf("post SSO location = %q", got)
	}
	if got := party.SSOLocations[string(domain.BindingRedirect)]; got != "https://proxy.example.eu/ColleagueRequestRedirect" {
		t.Errorf("redirect SSO location = %q", got)
	}
	if len(party.SigningCertificates) != 1 || party.SigningCertificates[0] != testSigningCert {
		t.Errorf("signing certificates = %v", party.SigningCertificates)
	}
	if len(party.EncryptionCertificates) != 1 || party.EncryptionCertificates[0] != testEncryptionCert {
		t.Errorf("encryption certificates = %v", party.EncryptionCertificates)
	}
	if party.SupportedLoA != domain.LoASubstantial {
		t.Errorf("SupportedLoA = %q, want substantial", party.SupportedLoA)
	}
	if party.SPType != domain.SPTypePublic {
		t.Errorf("SPType = %q, want public", party.SPType)
	}
	if entry.URL != party.EntityID || !entry.FetchedAt.Equal(testNow) {
		t.Errorf("trust entry = %+v", entry)
	}
}

func TestParseDescriptorSP(t *testing.T) {
	party, _, err := ParseDescriptor(spDescriptor("https://connector.example.eu/metadata"), testNow)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	// The default endpoint wins over the first listed one.
	if party.AssertionConsumerURL != "https://connector.example.eu/DefaultResponse" {
		t.Errorf("AssertionConsumerURL = %q", party.AssertionConsumerURL)
	}
	// A key descriptor without a use attribute serves both purposes.
	if len(party.SigningCertificates) != 1 || len(party.EncryptionCertificates) != 1 {
		t.Errorf("certificates = %v / %v", party.SigningCertificates, party.EncryptionCertificates)
	}
}

func TestParseDescriptorExpired(t *testing.T) {
	until := testNow.Add(-time.Hour).Format(time.RFC3339)
	_, _, err := ParseDescriptor(idpDescriptor("https://proxy.example.eu/metadata", until), testNow)
	if domain.KindOf(err) != domain.KindInvalidMetadata {
		t.Errorf("error = %v, want invalid_metadata fault", err)
	}
}

func TestParseDescriptorStillValid(t *testing.T) {
	until := testNow.Add(time.Hour).Format(time.RFC3339)
	_, entry, err := ParseDescriptor(idpDescriptor("https://proxy.example.eu/metadata", until), testNow)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if entry.ValidUntil.IsZero() {
		t.Error("validUntil not carried into the trust entry")
	}
}

func TestParseDescriptorGarbage(t *testing.T) {
	for _, data := range [][]byte{
		[]byte("not xml at all"),
		[]byte("<md:EntityDescriptor"),
	} {
		_, _, err := ParseDescriptor(data, testNow)
		if domain.KindOf(err) != domain.KindInvalidMetadata {
			t.Errorf("ParseDescriptor(%q) error = %v, want invalid_metadata fault", data, err)
		}
	}
}

func collectionDescriptor(validUntil string) []byte {
	until := ""
	if validUntil != "" {
		until = fmt.Sprintf(" validUntil=%q", validUntil)
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0"?>
<md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"%s>
  %s
  %s
</md:EntitiesDescriptor>`, until,
		string(idpDescriptor("https://proxy-a.example.eu/metadata", "")),
		string(spDescriptor("https://connector-b.example.eu/metadata"))))
}

func TestParseCollection(t *testing.T) {
	members, validUntil, err := ParseCollection(collectionDescriptor(""), testNow)
	if err != nil {
		t.Fatalf("ParseCollection: %v", err)
	}
	if validUntil != nil {
		t.Errorf("validUntil = %v, want nil", validUntil)
	}
	if len(members) != 2 {
		t.Fatalf("member count = %d, want 2", len(members))
	}
	for _, entityID := range []string{
		"https://proxy-a.example.eu/metadata",
		"https://connector-b.example.eu/metadata",
	} {
		raw, ok := members[entityID]
		if !ok {
			t.Errorf("member %q missing", entityID)
			continue
		}
		party, _, err := ParseDescriptor(raw, testNow)
		if err != nil {
			t.Errorf("member %q does not re-parse: %v", entityID, err)
			continue
		}
		if party.EntityID != entityID {
			t.Errorf("member %q re-parsed as %q", entityID, party.EntityID)
		}
	}
}

func TestParseCollectionExpired(t *testing.T) {
	until := testNow.Add(-time.Minute).Format(time.RFC3339)
	_, _, err := ParseCollection(collectionDescriptor(until), testNow)
	if domain.KindOf(err) != domain.KindInvalidMetadata {
		t.Errorf("error = %v, want invalid_metadata fault", err)
	}
}

func TestParseCollectionEmpty(t *testing.T) {
	empty := []byte(`<md:EntitiesDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"/>`)
	_, _, err := ParseCollection(empty, testNow)
	var fault *domain.Fault
	if !errors.As(err, &fault) || fault.Kind != domain.KindInvalidMetadata {
		t.Errorf("error = %v, want invalid_metadata fault", err)
	}
}
