package engine

import (
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// MarshalRequest builds and signs an authentication request document.
func (e *XMLDsigEngine) MarshalRequest(req *domain.AuthenticationRequest) (*ports.SignedMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := buildRequestDocument(req, time.Now().UTC())
	signed, err := e.sign(doc)
	if err != nil {
		return nil, err
	}

	e.log().Debug("request signed",
		zap.String("id", req.ID),
		zap.String("destination", req.Destination))

	return &ports.SignedMessage{
		XML:         signed,
		Encoded:     base64.StdEncoding.EncodeToString(signed),
		Destination: req.Destination,
		Binding:     req.Binding,
		RelayState:  req.RelayState,
	}, nil
}

// UnmarshalRequest decodes an encoded request, verifies its signature
// against the issuer's published certificates and maps it to the domain
// model. Only the validated element is parsed.
func (e *XMLDsigEngine) UnmarshalRequest(encoded string, issuer *ports.RemoteParty) (*domain.AuthenticationRequest, error) {
	doc, err := decodeDocument(encoded)
	if err != nil {
		return nil, err
	}

	certs, err := partyCertificates(issuer.SigningCertificates)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInvalidMetadata, err, "issuer certificates are unusable")
	}
	validated, err := e.verify(doc.Root(), certs)
	if err != nil {
		return nil, err
	}

	req, err := parseRequestElement(validated)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func buildRequestDocument(req *domain.AuthenticationRequest, now time.Time) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("saml2p:AuthnRequest")
	root.CreateAttr("xmlns:saml2p", nsProtocol)
	root.CreateAttr("xmlns:saml2", nsAssertion)
	root.CreateAttr("xmlns:eidas", nsExtensions)
	root.CreateAttr("ID", req.ID)
	root.CreateAttr("Version", "2.0")
	root.CreateAttr("IssueInstant", now.Format(time.RFC3339))
	root.CreateAttr("ForceAuthn", "true")
	root.CreateAttr("IsPassive", "false")
	if req.Destination != "" {
		root.CreateAttr("Destination", req.Destination)
	}
	if req.ProviderName != "" {
		root.CreateAttr("ProviderName", req.ProviderName)
	}
	if req.Binding != "" {
		root.CreateAttr("ProtocolBinding", bindingURI(req.Binding))
	}
	if req.AssertionConsumerURL != "" {
		root.CreateAttr("AssertionConsumerServiceURL", req.AssertionConsumerURL)
	}

	issuer := root.CreateElement("saml2:Issuer")
	issuer.CreateAttr("Format", nameIDFormatEntity)
	issuer.SetText(req.Issuer)

	ext := root.CreateElement("saml2p:Extensions")
	if req.SPType != "" {
		ext.CreateElement("eidas:SPType").SetText(string(req.SPType))
	}
	if req.SPID != "" {
		ext.CreateElement("eidas:RequesterID").SetText(req.SPID)
	}
	if req.OriginCountry != "" {
		ext.CreateElement("eidas:SPCountry").SetText(req.OriginCountry)
	}
	if req.CitizenCountry != "" {
		ext.CreateElement("eidas:CitizenCountryCode").SetText(req.CitizenCountry)
	}
	requested := ext.CreateElement("eidas:RequestedAttributes")
	if req.RequestedAttributes != nil {
		for _, attr := range req.RequestedAttributes.All() {
			el := requested.CreateElement("eidas:RequestedAttribute")
			el.CreateAttr("Name", attr.Name)
			if attr.FriendlyName != "" {
				el.CreateAttr("FriendlyName", attr.FriendlyName)
			}
			el.CreateAttr("NameFormat", attrNameFormatURI)
			el.CreateAttr("isRequired", boolAttr(attr.Required))
			for _, v := range attr.Values {
				el.CreateElement("eidas:AttributeValue").SetText(v)
			}
		}
	}

	nameIDPolicy := root.CreateElement("saml2p:NameIDPolicy")
	nameIDPolicy.CreateAttr("AllowCreate", "true")
	nameIDPolicy.CreateAttr("Format", nameIDFormatPersistent)

	if req.LevelOfAssurance != "" {
		authnCtx := root.CreateElement("saml2p:RequestedAuthnContext")
		comparison := req.Comparison
		if comparison == "" {
			comparison = domain.ComparisonMinimum
		}
		authnCtx.CreateAttr("Comparison", string(comparison))
		authnCtx.CreateElement("saml2:AuthnContextClassRef").SetText(string(req.LevelOfAssurance))
	}

	return doc
}

func parseRequestElement(root *etree.Element) (*domain.AuthenticationRequest, error) {
	if root.Tag != "AuthnRequest" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "message is not an authentication request")
	}

	id, err := requireAttr(root, "ID")
	if err != nil {
		return nil, err
	}

	req := &domain.AuthenticationRequest{
		ID:                   id,
		Issuer:               childText(root, "./Issuer"),
		Destination:          root.SelectAttrValue("Destination", ""),
		AssertionConsumerURL: root.SelectAttrValue("AssertionConsumerServiceURL", ""),
		ProviderName:         root.SelectAttrValue("ProviderName", ""),
		SPID:                 childText(root, "./Extensions/RequesterID"),
		OriginCountry:        childText(root, "./Extensions/SPCountry"),
		CitizenCountry:       childText(root, "./Extensions/CitizenCountryCode"),
		RequestedAttributes:  domain.NewPersonalAttributeList(),
	}

	// A request without a consumer URL travels in the current format: the
	// receiving side resolves the return URL from the issuer's metadata.
	if req.AssertionConsumerURL == "" {
		req.FormatVersion = domain.FormatEidas
	} else {
		req.FormatVersion = domain.FormatStork
	}

	if spType := childText(root, "./Extensions/SPType"); spType != "" {
		switch domain.SPType(spType) {
		case domain.SPTypePublic, domain.SPTypePrivate:
			req.SPType = domain.SPType(spType)
		default:
			return nil, domain.NewFault(domain.KindInvalidParameter, "request carries an unknown sector type")
		}
	}

	if protoBinding := root.SelectAttrValue("ProtocolBinding", ""); protoBinding != "" {
		binding, err := domain.ParseBinding(protoBinding)
		if err != nil {
			return nil, domain.WrapFault(domain.KindInvalidParameter, err, "request carries an unknown binding")
		}
		req.Binding = binding
	} else {
		req.Binding = domain.BindingPost
	}

	for _, el := range root.FindElements("./Extensions/RequestedAttributes/RequestedAttribute") {
		attr := domain.PersonalAttribute{
			Name:         el.SelectAttrValue("Name", ""),
			FriendlyName: el.SelectAttrValue("FriendlyName", ""),
			Required:     el.SelectAttrValue("isRequired", "") == "true",
		}
		if attr.Name == "" {
			return nil, domain.NewFault(domain.KindInvalidParameter, "requested attribute has no name")
		}
		for _, v := range el.FindElements("./AttributeValue") {
			attr.Values = append(attr.Values, v.Text())
		}
		req.RequestedAttributes.Add(attr)
	}

	if authnCtx := root.FindElement("./RequestedAuthnContext"); authnCtx != nil {
		if ref := childText(authnCtx, "./AuthnContextClassRef"); ref != "" {
			loa, err := domain.ParseLevelOfAssurance(ref)
			if err != nil {
				return nil, domain.WrapFault(domain.KindLoANotSupported, err, "request carries an unknown assurance level")
			}
			req.LevelOfAssurance = loa
		}
		switch comparison := authnCtx.SelectAttrValue("Comparison", ""); comparison {
		case "":
			req.Comparison = domain.ComparisonMinimum
		default:
			req.Comparison = domain.LoAComparison(comparison)
			if err := domain.ValidateLoAComparison(req.Comparison); err != nil {
				return nil, domain.WrapFault(domain.KindInvalidParameter, err, "request carries an unknown comparison")
			}
		}
	}

	return req, nil
}

func boolAttr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
