package engine

import (
	"crypto/x509"
	"encoding/base64"
	"sort"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// MarshalResponse builds, optionally encrypts and signs a response
// addressed to the recipient. The assertion is encrypted when the
// recipient publishes an encryption certificate.
func (e *XMLDsigEngine) MarshalResponse(resp *domain.AuthenticationResponse, recipient *ports.RemoteParty) (*ports.SignedMessage, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	doc := buildResponseDocument(resp, time.Now().UTC())

	if recipient != nil && len(recipient.EncryptionCertificates) > 0 && !resp.Status.Failed() {
		if err := encryptAssertion(doc, recipient.EncryptionCertificates[0]); err != nil {
			return nil, err
		}
	}

	signed, err := e.sign(doc)
	if err != nil {
		return nil, err
	}

	e.log().Debug("response signed",
		zap.String("id", resp.ID),
		zap.String("inResponseTo", resp.InResponseTo),
		zap.String("destination", resp.Destination))

	return &ports.SignedMessage{
		XML:         signed,
		Encoded:     base64.StdEncoding.EncodeToString(signed),
		Destination: resp.Destination,
		Binding:     domain.BindingPost,
	}, nil
}

// MarshalFault signs a response carrying a failure status. Fault
// responses have no assertion and are never encrypted.
func (e *XMLDsigEngine) MarshalFault(resp *domain.AuthenticationResponse) (*ports.SignedMessage, error) {
	return e.MarshalResponse(resp, nil)
}

// UnmarshalResponse decodes an encoded response, verifies its signature
// against the issuer's certificates, decrypts the assertion when
// encrypted and maps it to the domain model.
func (e *XMLDsigEngine) UnmarshalResponse(encoded string, issuer *ports.RemoteParty) (*domain.AuthenticationResponse, error) {
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

	assertion, err := e.decryptAssertion(validated)
	if err != nil {
		return nil, err
	}

	resp, err := parseResponseElement(validated, assertion)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// ExtractReference reads the correlation reference and issuer of an
// encoded response without verifying it. Nothing else from the message
// may be trusted until the stored context drives full verification.
func (e *XMLDsigEngine) ExtractReference(encoded string) (string, string, error) {
	return extractReference(encoded)
}

func extractReference(encoded string) (string, string, error) {
	doc, err := decodeDocument(encoded)
	if err != nil {
		return "", "", err
	}
	root := doc.Root()
	if root.Tag != "Response" {
		return "", "", domain.NewFault(domain.KindInvalidParameter, "message is not a response")
	}
	inResponseTo, err := requireAttr(root, "InResponseTo")
	if err != nil {
		return "", "", err
	}
	issuer := childText(root, "./Issuer")
	if issuer == "" {
		return "", "", domain.NewFault(domain.KindInvalidParameter, "response has no issuer")
	}
	return inResponseTo, issuer, nil
}

// encryptAssertion replaces the plain assertion in doc with an
// EncryptedAssertion toward the certificate holder.
func encryptAssertion(doc *etree.Document, certificate string) error {
	assertion := doc.Root().FindElement("./Assertion")
	if assertion == nil {
		return nil
	}

	der, err := base64.StdEncoding.DecodeString(normalizeBase64(certificate))
	if err != nil {
		return domain.WrapFault(domain.KindInvalidMetadata, err, "recipient encryption certificate is unusable")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return domain.WrapFault(domain.KindInvalidMetadata, err, "recipient encryption certificate is unusable")
	}

	plainDoc := etree.NewDocument()
	plainDoc.SetRoot(assertion.Copy())
	plaintext, err := plainDoc.WriteToBytes()
	if err != nil {
		return err
	}

	encryptor := xmlenc.OAEP()
	encryptor.BlockCipher = xmlenc.AES128CBC
	encryptor.DigestMethod = &xmlenc.SHA1
	encryptedData, err := encryptor.Encrypt(cert, plaintext, nil)
	if err != nil {
		return domain.WrapFault(domain.KindInternal, err, "assertion encryption failed")
	}
	encryptedData.CreateAttr("xmlns", "http://www.w3.org/2001/04/xmlenc#")

	parent := assertion.Parent()
	parent.RemoveChild(assertion)
	wrapper := parent.CreateElement("saml2:EncryptedAssertion")
	wrapper.AddChild(encryptedData)
	return nil
}

// decryptAssertion returns the assertion element of a validated response,
// decrypting it with this node's key when encrypted. Returns nil for
// responses without an assertion.
func (e *XMLDsigEngine) decryptAssertion(root *etree.Element) (*etree.Element, error) {
	if plain := root.FindElement("./Assertion"); plain != nil {
		return plain, nil
	}
	encrypted := root.FindElement("./EncryptedAssertion/EncryptedData")
	if encrypted == nil {
		return nil, nil
	}
	if e.privateKey == nil {
		return nil, domain.NewFault(domain.KindInternal, "response is encrypted but no decryption key is configured")
	}
	plaintext, err := xmlenc.Decrypt(e.privateKey, encrypted)
	if err != nil {
		return nil, domain.WrapFault(domain.KindSignatureInvalid, err, "assertion decryption failed")
	}
	assertionDoc := etree.NewDocument()
	if err := assertionDoc.ReadFromBytes(plaintext); err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "decrypted assertion is not valid XML")
	}
	if assertionDoc.Root() == nil {
		return nil, domain.NewFault(domain.KindInvalidParameter, "decrypted assertion is empty")
	}
	return assertionDoc.Root(), nil
}

func buildResponseDocument(resp *domain.AuthenticationResponse, now time.Time) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("saml2p:Response")
	root.CreateAttr("xmlns:saml2p", nsProtocol)
	root.CreateAttr("xmlns:saml2", nsAssertion)
	root.CreateAttr("xmlns:eidas", nsExtensions)
	root.CreateAttr("ID", resp.ID)
	root.CreateAttr("InResponseTo", resp.InResponseTo)
	root.CreateAttr("Version", "2.0")
	root.CreateAttr("IssueInstant", now.Format(time.RFC3339))
	if resp.Destination != "" {
		root.CreateAttr("Destination", resp.Destination)
	}
	if resp.IssuerCountry != "" {
		root.CreateAttr("eidas:IssuerCountryCode", resp.IssuerCountry)
	}

	issuer := root.CreateElement("saml2:Issuer")
	issuer.CreateAttr("Format", nameIDFormatEntity)
	issuer.SetText(resp.Issuer)

	status := root.CreateElement("saml2p:Status")
	code := status.CreateElement("saml2p:StatusCode")
	code.CreateAttr("Value", resp.Status.Code)
	if resp.Status.SubCode != "" {
		code.CreateElement("saml2p:StatusCode").CreateAttr("Value", resp.Status.SubCode)
	}
	if resp.Status.Message != "" {
		status.CreateElement("saml2p:StatusMessage").SetText(resp.Status.Message)
	}

	if resp.Status.Failed() {
		return doc
	}

	assertion := root.CreateElement("saml2:Assertion")
	assertion.CreateAttr("ID", "_"+uuid.NewString())
	assertion.CreateAttr("Version", "2.0")
	assertion.CreateAttr("IssueInstant", now.Format(time.RFC3339))
	assertion.CreateElement("saml2:Issuer").SetText(resp.Issuer)

	subject := assertion.CreateElement("saml2:Subject")
	nameID := subject.CreateElement("saml2:NameID")
	nameID.CreateAttr("Format", nameIDFormatPersistent)
	nameID.SetText(resp.Subject)
	confirmation := subject.CreateElement("saml2:SubjectConfirmation")
	confirmation.CreateAttr("Method", confirmationBearer)
	confirmationData := confirmation.CreateElement("saml2:SubjectConfirmationData")
	confirmationData.CreateAttr("InResponseTo", resp.InResponseTo)
	if resp.Destination != "" {
		confirmationData.CreateAttr("Recipient", resp.Destination)
	}
	if !resp.NotOnOrAfter.IsZero() {
		confirmationData.CreateAttr("NotOnOrAfter", resp.NotOnOrAfter.UTC().Format(time.RFC3339))
	}

	conditions := assertion.CreateElement("saml2:Conditions")
	conditions.CreateAttr("NotBefore", now.Format(time.RFC3339))
	if !resp.NotOnOrAfter.IsZero() {
		conditions.CreateAttr("NotOnOrAfter", resp.NotOnOrAfter.UTC().Format(time.RFC3339))
	}
	if resp.AudienceRestriction != "" {
		conditions.CreateElement("saml2:AudienceRestriction").
			CreateElement("saml2:Audience").SetText(resp.AudienceRestriction)
	}

	authnStatement := assertion.CreateElement("saml2:AuthnStatement")
	authnStatement.CreateAttr("AuthnInstant", now.Format(time.RFC3339))
	authnStatement.CreateElement("saml2:AuthnContext").
		CreateElement("saml2:AuthnContextClassRef").SetText(string(resp.LevelOfAssurance))

	if resp.Attributes != nil && resp.Attributes.Len() > 0 {
		statement := assertion.CreateElement("saml2:AttributeStatement")
		for _, attr := range resp.Attributes.All() {
			el := statement.CreateElement("saml2:Attribute")
			el.CreateAttr("Name", attr.Name)
			if attr.FriendlyName != "" {
				el.CreateAttr("FriendlyName", attr.FriendlyName)
			}
			el.CreateAttr("NameFormat", attrNameFormatURI)
			if attr.Status != domain.StatusNone {
				el.CreateAttr("eidas:AttributeStatus", string(attr.Status))
			}
			for _, v := range attr.Values {
				el.CreateElement("saml2:AttributeValue").SetText(v)
			}
			for _, fields := range attr.ComplexValues {
				value := el.CreateElement("saml2:AttributeValue")
				for _, key := range sortedKeys(fields) {
					value.CreateElement("eidas:" + key).SetText(fields[key])
				}
			}
		}
	}

	return doc
}

func parseResponseElement(root *etree.Element, assertion *etree.Element) (*domain.AuthenticationResponse, error) {
	if root.Tag != "Response" {
		return nil, domain.NewFault(domain.KindInvalidParameter, "message is not a response")
	}

	id, err := requireAttr(root, "ID")
	if err != nil {
		return nil, err
	}
	inResponseTo, err := requireAttr(root, "InResponseTo")
	if err != nil {
		return nil, err
	}

	resp := &domain.AuthenticationResponse{
		ID:            id,
		InResponseTo:  inResponseTo,
		Issuer:        childText(root, "./Issuer"),
		Destination:   root.SelectAttrValue("Destination", ""),
		IssuerCountry: root.SelectAttrValue("IssuerCountryCode", ""),
		Attributes:    domain.NewPersonalAttributeList(),
	}

	statusCode := root.FindElement("./Status/StatusCode")
	if statusCode == nil {
		return nil, domain.NewFault(domain.KindInvalidParameter, "response has no status")
	}
	resp.Status.Code = statusCode.SelectAttrValue("Value", "")
	if sub := statusCode.FindElement("./StatusCode"); sub != nil {
		resp.Status.SubCode = sub.SelectAttrValue("Value", "")
	}
	resp.Status.Message = childText(root, "./Status/StatusMessage")

	if assertion == nil {
		return resp, nil
	}

	resp.Subject = childText(assertion, "./Subject/NameID")
	if audience := childText(assertion, "./Conditions/AudienceRestriction/Audience"); audience != "" {
		resp.AudienceRestriction = audience
	}
	if conditions := assertion.FindElement("./Conditions"); conditions != nil {
		if raw := conditions.SelectAttrValue("NotOnOrAfter", ""); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, domain.WrapFault(domain.KindInvalidParameter, err, "assertion validity bound is unparseable")
			}
			resp.NotOnOrAfter = ts
		}
	}
	if ref := childText(assertion, "./AuthnStatement/AuthnContext/AuthnContextClassRef"); ref != "" {
		loa, err := domain.ParseLevelOfAssurance(ref)
		if err != nil {
			return nil, domain.WrapFault(domain.KindLoANotSupported, err, "response carries an unknown assurance level")
		}
		resp.LevelOfAssurance = loa
	}

	for _, el := range assertion.FindElements("./AttributeStatement/Attribute") {
		attr := domain.PersonalAttribute{
			Name:         el.SelectAttrValue("Name", ""),
			FriendlyName: el.SelectAttrValue("FriendlyName", ""),
		}
		if attr.Name == "" {
			return nil, domain.NewFault(domain.KindInvalidParameter, "asserted attribute has no name")
		}
		if raw := el.SelectAttrValue("AttributeStatus", ""); raw != "" {
			attr.Status = domain.AttributeStatus(raw)
		}
		for _, value := range el.FindElements("./AttributeValue") {
			children := value.ChildElements()
			if len(children) == 0 {
				attr.Values = append(attr.Values, value.Text())
				continue
			}
			fields := make(map[string]string, len(children))
			for _, child := range children {
				fields[child.Tag] = child.Text()
			}
			attr.ComplexValues = append(attr.ComplexValues, fields)
		}
		if attr.Status == domain.StatusNone {
			if attr.IsEmpty() {
				attr.Status = domain.StatusNotAvailable
			} else {
				attr.Status = domain.StatusAvailable
			}
		}
		resp.Attributes.Add(attr)
	}

	return resp, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
