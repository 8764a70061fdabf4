// Package engine provides the default assertion engine: enveloped XMLDSig
// signing and verification of eIDAS protocol messages and metadata
// descriptors, plus assertion encryption toward recipients that publish
// an encryption certificate. The engine sits behind a port so an
// HSM-backed implementation can replace it without touching the core.
package engine

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

// XMLDsigEngine signs outbound messages with this node's key pair and
// verifies inbound messages against the issuer's published certificates.
// Metadata descriptors are verified against the configured trust anchors.
type XMLDsigEngine struct {
	privateKey   *rsa.PrivateKey
	certificate  *x509.Certificate
	trustAnchors []*x509.Certificate
	logger       *zap.Logger
}

// NewXMLDsigEngine creates an engine with the node's key pair and the
// trust anchors metadata signatures are validated against.
func NewXMLDsigEngine(privateKey *rsa.PrivateKey, certificate *x509.Certificate, trustAnchors []*x509.Certificate, logger *zap.Logger) *XMLDsigEngine {
	return &XMLDsigEngine{
		privateKey:   privateKey,
		certificate:  certificate,
		trustAnchors: trustAnchors,
		logger:       logger,
	}
}

func (e *XMLDsigEngine) log() *zap.Logger {
	if e.logger == nil {
		return zap.NewNop()
	}
	return e.logger
}

// sign adds an enveloped signature to root and returns the whole
// document serialized.
func (e *XMLDsigEngine) sign(doc *etree.Document) ([]byte, error) {
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty document")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{e.certificate.Raw},
		PrivateKey:  e.privateKey,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	signedDoc := etree.NewDocument()
	signedDoc.SetRoot(signedRoot)
	return signedDoc.WriteToBytes()
}

// verify validates the enveloped signature on root against certs and
// returns the validated element. The validated element, not the input,
// must be used for further parsing to prevent signature wrapping.
func (e *XMLDsigEngine) verify(root *etree.Element, certs []*x509.Certificate) (*etree.Element, error) {
	if len(certs) == 0 {
		return nil, domain.NewFault(domain.KindSignatureInvalid, "issuer publishes no signing certificate")
	}
	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: certs})
	validated, err := ctx.Validate(root)
	if err != nil {
		return nil, domain.WrapFault(domain.KindSignatureInvalid, err, "message signature verification failed")
	}
	return validated, nil
}

// VerifyDescriptor validates a metadata descriptor's enveloped signature
// against the trust anchors and returns the validated bytes.
func (e *XMLDsigEngine) VerifyDescriptor(descriptor []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(descriptor); err != nil {
		return nil, domain.WrapFault(domain.KindInvalidMetadata, err, "unparseable descriptor")
	}
	root := doc.Root()
	if root == nil {
		return nil, domain.NewFault(domain.KindInvalidMetadata, "empty descriptor document")
	}

	validated, err := e.verify(root, e.trustAnchors)
	if err != nil {
		return nil, err
	}

	validatedDoc := etree.NewDocument()
	validatedDoc.SetRoot(validated)
	out, err := validatedDoc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize validated descriptor: %w", err)
	}
	e.log().Debug("descriptor signature verified")
	return out, nil
}

// partyCertificates decodes the base64 DER certificates a remote party
// publishes in its descriptor.
func partyCertificates(encoded []string) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, raw := range encoded {
		der, err := base64.StdEncoding.DecodeString(normalizeBase64(raw))
		if err != nil {
			return nil, fmt.Errorf("decode metadata certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse metadata certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// normalizeBase64 strips the whitespace metadata documents commonly wrap
// certificate data in.
func normalizeBase64(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

// LoadPrivateKey loads an RSA private key from a PEM file. PKCS8 is tried
// first, then the legacy PKCS1 format.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return rsaKey, nil
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not RSA")
	}
	return rsaKey, nil
}

// LoadCertificate loads an X.509 certificate from a PEM file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}

// Ensure XMLDsigEngine implements ports.AssertionEngine
var _ ports.AssertionEngine = (*XMLDsigEngine)(nil)
