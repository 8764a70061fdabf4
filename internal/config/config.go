// Package config defines the YAML configuration surface of the node and
// its validation. The file maps one to one onto the orchestrator policy
// and the adapter options; wiring happens in the command layer.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/orchestrator"
)

const (
	DefaultListenAddr      = ":8443"
	DefaultRequestTTL      = 5 * time.Minute
	DefaultConsentTokenTTL = 10 * time.Minute
	DefaultMetadataTTL     = time.Hour
)

// Config is the root of the node configuration file.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Roles   RolesConfig   `yaml:"roles"`
	Keys    KeysConfig    `yaml:"keys"`
	Trust   TrustConfig   `yaml:"trust"`
	Policy  PolicyConfig  `yaml:"policy"`
	Routes  RoutesConfig  `yaml:"routes"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Consent ConsentConfig `yaml:"consent"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	// Country is this node's country code.
	Country string `yaml:"country"`

	// Issuer is the metadata URL this node publishes about itself. It is
	// the issuer value of every outbound message.
	Issuer string `yaml:"issuer"`

	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// MetadataFile is the signed descriptor this node publishes about
	// itself. Optional; the metadata endpoint returns 404 without it.
	MetadataFile string `yaml:"metadata_file"`
}

// RolesConfig selects which roles this process runs.
type RolesConfig struct {
	Connector    bool `yaml:"connector"`
	ProxyService bool `yaml:"proxy_service"`
}

// KeysConfig locates the node's key material.
type KeysConfig struct {
	// SigningKey is the PEM file with the message signing key.
	SigningKey string `yaml:"signing_key"`

	// SigningCertificate is the PEM file with the signing certificate.
	SigningCertificate string `yaml:"signing_certificate"`

	// ConsentKey signs consent tokens. Defaults to the signing key.
	ConsentKey string `yaml:"consent_key"`
}

// TrustConfig controls the metadata trust store.
type TrustConfig struct {
	// Anchors are PEM files with the certificates metadata signatures are
	// validated against.
	Anchors []string `yaml:"anchors"`

	// MetadataDir holds statically trusted descriptor files loaded at
	// startup.
	MetadataDir string `yaml:"metadata_dir"`

	// FetchEnabled allows fetching descriptors over the network.
	FetchEnabled *bool `yaml:"fetch_enabled"`

	// HTTPSOnly refuses plain-http metadata sources.
	HTTPSOnly *bool `yaml:"https_only"`

	// SignatureCheck validates descriptor signatures. Disabling it is a
	// development switch only.
	SignatureCheck *bool `yaml:"signature_check"`

	// TrustedExceptions lists metadata URLs exempt from signature
	// validation.
	TrustedExceptions []string `yaml:"trusted_exceptions"`

	// CacheTTL bounds how long a fetched descriptor is reused.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// ServiceProviderConfig registers one relying party at the connector edge.
type ServiceProviderConfig struct {
	// MetadataURL is where the provider publishes its descriptor.
	MetadataURL string `yaml:"metadata_url"`

	// Attributes are the attribute names the provider may request.
	Attributes []string `yaml:"attributes"`
}

// PolicyConfig is the orchestrator policy surface.
type PolicyConfig struct {
	CheckMandatoryAttributes bool `yaml:"check_mandatory_attributes"`
	ValidateBinding          bool `yaml:"validate_binding"`
	ConsentEnabled           bool `yaml:"consent_enabled"`

	// SPTypeLocal, when set, overrides the sector type of every request.
	SPTypeLocal string `yaml:"sp_type_local"`

	// SPTypeDefault fills the sector type of requests that carry none.
	SPTypeDefault string `yaml:"sp_type_default"`

	// RequestTTL bounds the lifetime of an in-flight request.
	RequestTTL Duration `yaml:"request_ttl"`

	// DisabledCountries lists country codes whose national handler is
	// switched off.
	DisabledCountries []string `yaml:"disabled_countries"`

	// ServiceProviders registers the relying parties and their permitted
	// attribute sets.
	ServiceProviders map[string]ServiceProviderConfig `yaml:"service_providers"`
}

// RoutesConfig maps counterpart countries to their node metadata URLs.
type RoutesConfig struct {
	Counterparts map[string]string `yaml:"counterparts"`
}

// ProxyConfig configures the proxy-service's identity-provider hand-off.
type ProxyConfig struct {
	// IDPURL is where citizens are sent to authenticate. The correlation
	// identifier is appended as a query parameter.
	IDPURL string `yaml:"idp_url"`
}

// ConsentConfig controls the consent token round-trip.
type ConsentConfig struct {
	TokenTTL Duration `yaml:"token_ttl"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CheckAndSetDefaults validates the configuration and fills defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Node.Country == "" {
		return fmt.Errorf("node.country is required")
	}
	if c.Node.Issuer == "" {
		return fmt.Errorf("node.issuer is required")
	}
	if c.Node.Listen == "" {
		c.Node.Listen = DefaultListenAddr
	}
	if !c.Roles.Connector && !c.Roles.ProxyService {
		return fmt.Errorf("at least one of roles.connector and roles.proxy_service must be enabled")
	}
	if c.Keys.SigningKey == "" || c.Keys.SigningCertificate == "" {
		return fmt.Errorf("keys.signing_key and keys.signing_certificate are required")
	}
	if c.Keys.ConsentKey == "" {
		c.Keys.ConsentKey = c.Keys.SigningKey
	}
	if c.Policy.RequestTTL <= 0 {
		c.Policy.RequestTTL = Duration(DefaultRequestTTL)
	}
	if c.Trust.CacheTTL <= 0 {
		c.Trust.CacheTTL = Duration(DefaultMetadataTTL)
	}
	if c.Consent.TokenTTL <= 0 {
		c.Consent.TokenTTL = Duration(DefaultConsentTokenTTL)
	}

	for _, v := range []string{c.Policy.SPTypeLocal, c.Policy.SPTypeDefault} {
		switch domain.SPType(v) {
		case "", domain.SPTypePublic, domain.SPTypePrivate:
		default:
			return fmt.Errorf("unknown service-provider type %q", v)
		}
	}

	if c.Roles.Connector && len(c.Routes.Counterparts) == 0 {
		return fmt.Errorf("routes.counterparts is required for the connector role")
	}
	if c.Roles.ProxyService && c.Proxy.IDPURL == "" {
		return fmt.Errorf("proxy.idp_url is required for the proxy-service role")
	}
	return nil
}

// OrchestratorPolicy maps the policy section onto the orchestrator's
// policy type.
func (c *Config) OrchestratorPolicy() orchestrator.Policy {
	permissions := make(map[string][]string, len(c.Policy.ServiceProviders))
	for id, sp := range c.Policy.ServiceProviders {
		permissions[id] = append([]string(nil), sp.Attributes...)
	}

	disabled := make(map[string]bool, len(c.Policy.DisabledCountries))
	for _, country := range c.Policy.DisabledCountries {
		disabled[country] = true
	}

	return orchestrator.Policy{
		AttributePermissions:     permissions,
		CheckMandatoryAttributes: c.Policy.CheckMandatoryAttributes,
		ValidateBinding:          c.Policy.ValidateBinding,
		SPType: orchestrator.SPTypePolicy{
			Local:   domain.SPType(c.Policy.SPTypeLocal),
			Default: domain.SPType(c.Policy.SPTypeDefault),
		},
		ConsentEnabled:           c.Policy.ConsentEnabled,
		DisabledHandlerCountries: disabled,
		RequestTTL:               c.Policy.RequestTTL.Std(),
	}
}

// ServiceProviderMetadataURLs returns the provider-id to metadata-URL map
// for the edge routes.
func (c *Config) ServiceProviderMetadataURLs() map[string]string {
	urls := make(map[string]string, len(c.Policy.ServiceProviders))
	for id, sp := range c.Policy.ServiceProviders {
		if sp.MetadataURL != "" {
			urls[id] = sp.MetadataURL
		}
	}
	return urls
}

// TrustFetchEnabled resolves the fetch switch with its default.
func (c *Config) TrustFetchEnabled() bool { return boolOr(c.Trust.FetchEnabled, true) }

// TrustHTTPSOnly resolves the https-only switch with its default.
func (c *Config) TrustHTTPSOnly() bool { return boolOr(c.Trust.HTTPSOnly, true) }

// TrustSignatureCheck resolves the signature-check switch with its default.
func (c *Config) TrustSignatureCheck() bool { return boolOr(c.Trust.SignatureCheck, true) }

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
