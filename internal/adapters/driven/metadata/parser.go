package metadata

import (
	"encoding/xml"
	"time"

	"github.com/crewjam/saml"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// eIDAS metadata extension URIs.
const (
	loaAttributeName    = "http://eidas.europa.eu/LoA"
	spTypeAttributeName = "http://eidas.europa.eu/entity-attributes/SPType"
)

// rawEntityAttributes extracts the mdattr:EntityAttributes extension that
// carries the published LoA and SPType; crewjam/saml does not expose it.
type rawEntityAttributes struct {
	Extensions struct {
		EntityAttributes struct {
			Attributes []struct {
				Name   string   `xml:"Name,attr"`
				Values []string `xml:"urn:oasis:names:tc:SAML:2.0:assertion AttributeValue"`
			} `xml:"urn:oasis:names:tc:SAML:2.0:assertion Attribute"`
		} `xml:"urn:oasis:names:tc:SAML:metadata:attribute EntityAttributes"`
	} `xml:"urn:oasis:names:tc:SAML:2.0:metadata Extensions"`
}

// ParseDescriptor parses a single EntityDescriptor into the view the
// orchestrator consumes. Returns an InvalidMetadata fault when the
// document is structurally invalid or past its validUntil.
func ParseDescriptor(data []byte, now time.Time) (*ports.RemoteParty, *domain.TrustEntry, error) {
	var entity saml.EntityDescriptor
	if err := xml.Unmarshal(data, &entity); err != nil {
		return nil, nil, domain.WrapFault(domain.KindInvalidMetadata, err, "unparseable descriptor")
	}
	if entity.EntityID == "" {
		return nil, nil, domain.NewFault(domain.KindInvalidMetadata, "descriptor has no entityID")
	}
	if !entity.ValidUntil.IsZero() && !now.Before(entity.ValidUntil) {
		return nil, nil, domain.NewFault(domain.KindInvalidMetadata,
			"descriptor for %q expired at %s", entity.EntityID, entity.ValidUntil)
	}

	party := &ports.RemoteParty{
		EntityID:     entity.EntityID,
		SSOLocations: map[string]string{},
	}

	for _, idp := range entity.IDPSSODescriptors {
		for _, ep := range idp.SingleSignOnServices {
			if b, err := domain.ParseBinding(ep.Binding); err == nil {
				party.SSOLocations[string(b)] = ep.Location
			}
		}
		collectCertificates(party, idp.KeyDescriptors)
	}
	for _, sp := range entity.SPSSODescriptors {
		for _, acs := range sp.AssertionConsumerServices {
			if party.AssertionConsumerURL == "" || acs.IsDefault != nil && *acs.IsDefault {
				party.AssertionConsumerURL = acs.Location
			}
		}
		collectCertificates(party, sp.KeyDescriptors)
	}

	parseEntityAttributes(data, party)

	entry := &domain.TrustEntry{
		URL:        entity.EntityID,
		Descriptor: data,
		FetchedAt:  now,
		ValidUntil: entity.ValidUntil,
	}
	return party, entry, nil
}

// collectCertificates pulls signing and encryption certificates out of
// the role descriptor's key descriptors. A key descriptor without a use
// attribute serves both purposes.
func collectCertificates(party *ports.RemoteParty, kds []saml.KeyDescriptor) {
	for _, kd := range kds {
		for _, cert := range kd.KeyInfo.X509Data.X509Certificates {
			if cert.Data == "" {
				continue
			}
			if kd.Use == "signing" || kd.Use == "" {
				party.SigningCertificates = append(party.SigningCertificates, cert.Data)
			}
			if kd.Use == "encryption" || kd.Use == "" {
				party.EncryptionCertificates = append(party.EncryptionCertificates, cert.Data)
			}
		}
	}
}

// parseEntityAttributes reads the eIDAS LoA and SPType entity attributes.
func parseEntityAttributes(data []byte, party *ports.RemoteParty) {
	var raw rawEntityAttributes
	if err := xml.Unmarshal(data, &raw); err != nil {
		return
	}
	for _, attr := range raw.Extensions.EntityAttributes.Attributes {
		if len(attr.Values) == 0 {
			continue
		}
		switch attr.Name {
		case loaAttributeName:
			if loa, err := domain.ParseLevelOfAssurance(attr.Values[0]); err == nil {
				party.SupportedLoA = loa
			}
		case spTypeAttributeName:
			party.SPType = domain.SPType(attr.Values[0])
		}
	}
}

// ParseCollection parses an EntitiesDescriptor (signed aggregate) into
// its member descriptors. The collection's validUntil bounds every
// member.
func ParseCollection(data []byte, now time.Time) (map[string][]byte, *time.Time, error) {
	var entities saml.EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err != nil {
		return nil, nil, domain.WrapFault(domain.KindInvalidMetadata, err, "unparseable descriptor collection")
	}
	if len(entities.EntityDescriptors) == 0 {
		return nil, nil, domain.NewFault(domain.KindInvalidMetadata, "descriptor collection is empty")
	}
	if entities.ValidUntil != nil && !now.Before(*entities.ValidUntil) {
		return nil, nil, domain.NewFault(domain.KindInvalidMetadata,
			"descriptor collection expired at %s", entities.ValidUntil)
	}

	members := make(map[string][]byte, len(entities.EntityDescriptors))
	for i := range entities.EntityDescriptors {
		ed := &entities.EntityDescriptors[i]
		raw, err := xml.Marshal(ed)
		if err != nil {
			return nil, nil, domain.WrapFault(domain.KindInvalidMetadata, err,
				"re-serialize member descriptor %q", ed.EntityID)
		}
		members[ed.EntityID] = raw
	}
	return members, entities.ValidUntil, nil
}
