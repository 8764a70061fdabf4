package engine

import (
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

// XML namespaces of the protocol messages.
const (
	nsProtocol   = "urn:oasis:names:tc:SAML:2.0:protocol"
	nsAssertion  = "urn:oasis:names:tc:SAML:2.0:assertion"
	nsExtensions = "http://eidas.europa.eu/saml-extensions"
)

const (
	bindingURIRedirect = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	bindingURIPost     = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"

	nameIDFormatEntity     = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	nameIDFormatPersistent = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	attrNameFormatURI      = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
	confirmationBearer     = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
)

func bindingURI(b domain.Binding) string {
	if b == domain.BindingRedirect {
		return bindingURIRedirect
	}
	return bindingURIPost
}

// decodeDocument parses the base64 form of a wire message.
func decodeDocument(encoded string) (*etree.Document, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "message is not valid base64")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, domain.WrapFault(domain.KindInvalidParameter, err, "message is not valid XML")
	}
	if doc.Root() == nil {
		return nil, domain.NewFault(domain.KindInvalidParameter, "message document is empty")
	}
	return doc, nil
}

// childText returns the text of the first matching child element.
func childText(el *etree.Element, path string) string {
	child := el.FindElement(path)
	if child == nil {
		return ""
	}
	return child.Text()
}

// requireAttr reads a mandatory attribute from a protocol element.
func requireAttr(el *etree.Element, name string) (string, error) {
	v := el.SelectAttrValue(name, "")
	if v == "" {
		return "", domain.NewFault(domain.KindInvalidParameter, fmt.Sprintf("message is missing the %s attribute", name))
	}
	return v, nil
}
