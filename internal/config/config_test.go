//go:build unit

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
)

const minimalYAML = `
node:
  country: CA
  issuer: https://node.example.eu/metadata
roles:
  proxy_service: true
keys:
  signing_key: /etc/node/sign.key
  signing_certificate: /etc/node/sign.crt
proxy:
  idp_url: https://idp.example.ca/auth
`

const fullYAML = `
node:
  country: CA
  issuer: https://node.example.eu/metadata
  listen: ":9443"
  metadata_file: /etc/node/metadata.xml
roles:
  connector: true
  proxy_service: true
keys:
  signing_key: /etc/node/sign.key
  signing_certificate: /etc/node/sign.crt
  consent_key: /etc/node/consent.key
trust:
  anchors:
    - /etc/node/anchor.pem
  metadata_dir: /etc/node/metadata
  fetch_enabled: false
  https_only: false
  signature_check: false
  trusted_exceptions:
    - https://dev.example.eu/metadata
  cache_ttl: 30m
policy:
  check_mandatory_attributes: true
  validate_binding: true
  consent_enabled: true
  sp_type_local: private
  sp_type_default: public
  request_ttl: 90
  disabled_countries: [CB, CC]
  service_providers:
    demo-sp:
      metadata_url: https://sp.example.eu/metadata
      attributes: [eIdentifier, surname]
    legacy-sp:
      attributes: [eIdentifier]
routes:
  counterparts:
    CB: https://proxy-cb.example.eu/metadata
proxy:
  idp_url: https://idp.example.ca/auth
consent:
  token_ttl: 20m
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Node.Listen != DefaultListenAddr {
		t.Errorf("Listen = %q", cfg.Node.Listen)
	}
	if cfg.Policy.RequestTTL.Std() != DefaultRequestTTL {
		t.Errorf("RequestTTL = %v", cfg.Policy.RequestTTL.Std())
	}
	if cfg.Trust.CacheTTL.Std() != DefaultMetadataTTL {
		t.Errorf("CacheTTL = %v", cfg.Trust.CacheTTL.Std())
	}
	if cfg.Consent.TokenTTL.Std() != DefaultConsentTokenTTL {
		t.Errorf("TokenTTL = %v", cfg.Consent.TokenTTL.Std())
	}
	if cfg.Keys.ConsentKey != cfg.Keys.SigningKey {
		t.Errorf("ConsentKey = %q, want the signing key", cfg.Keys.ConsentKey)
	}
	if !cfg.TrustFetchEnabled() || !cfg.TrustHTTPSOnly() || !cfg.TrustSignatureCheck() {
		t.Error("trust switches default to enabled")
	}
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Node.Listen != ":9443" || cfg.Node.MetadataFile != "/etc/node/metadata.xml" {
		t.Errorf("node = %+v", cfg.Node)
	}
	if !cfg.Roles.Connector || !cfg.Roles.ProxyService {
		t.Errorf("roles = %+v", cfg.Roles)
	}
	if cfg.Keys.ConsentKey != "/etc/node/consent.key" {
		t.Errorf("ConsentKey = %q", cfg.Keys.ConsentKey)
	}
	if cfg.TrustFetchEnabled() || cfg.TrustHTTPSOnly() || cfg.TrustSignatureCheck() {
		t.Error("explicit false trust switches were not honoured")
	}
	if cfg.Trust.CacheTTL.Std() != 30*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.Trust.CacheTTL.Std())
	}
	// A bare integer duration counts seconds.
	if cfg.Policy.RequestTTL.Std() != 90*time.Second {
		t.Errorf("RequestTTL = %v", cfg.Policy.RequestTTL.Std())
	}
	if cfg.Consent.TokenTTL.Std() != 20*time.Minute {
		t.Errorf("TokenTTL = %v", cfg.Consent.TokenTTL.Std())
	}
	if got := cfg.Routes.Counterparts["CB"]; got != "https://proxy-cb.example.eu/metadata" {
		t.Errorf("counterpart = %q", got)
	}
	if cfg.Proxy.IDPURL != "https://idp.example.ca/auth" {
		t.Errorf("IDPURL = %q", cfg.Proxy.IDPURL)
	}
}

func TestOrchestratorPolicy(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	policy := cfg.OrchestratorPolicy()

	if !policy.CheckMandatoryAttributes || !policy.ValidateBinding || !policy.ConsentEnabled {
		t.Errorf("switches = %+v", policy)
	}
	if policy.SPType.Local != domain.SPTypePrivate || policy.SPType.Default != domain.SPTypePublic {
		t.Errorf("sp type = %+v", policy.SPType)
	}
	if policy.RequestTTL != 90*time.Second {
		t.Errorf("RequestTTL = %v", policy.RequestTTL)
	}
	if !reflect.DeepEqual(policy.AttributePermissions["demo-sp"], []string{"eIdentifier", "surname"}) {
		t.Errorf("permissions = %v", policy.AttributePermissions["demo-sp"])
	}
	if !policy.DisabledHandlerCountries["CB"] || !policy.DisabledHandlerCountries["CC"] {
		t.Errorf("disabled countries = %v", policy.DisabledHandlerCountries)
	}
	if policy.DisabledHandlerCountries["CA"] {
		t.Error("own country is not disabled")
	}
}

func TestServiceProviderMetadataURLs(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	urls := cfg.ServiceProviderMetadataURLs()
	want := map[string]string{"demo-sp": "https://sp.example.eu/metadata"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("urls = %v, want %v (providers without a url are skipped)", urls, want)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{
			name:    "missing country",
			mangle:  func(s string) string { return strings.Replace(s, "country: CA", "country: \"\"", 1) },
			wantErr: "node.country",
		},
		{
			name: "missing issuer",
			mangle: func(s string) string {
				return strings.Replace(s, "issuer: https://node.example.eu/metadata", "issuer: \"\"", 1)
			},
			wantErr: "node.issuer",
		},
		{
			name:    "no role",
			mangle:  func(s string) string { return strings.Replace(s, "proxy_service: true", "proxy_service: false", 1) },
			wantErr: "at least one",
		},
		{
			name: "missing signing key",
			mangle: func(s string) string {
				return strings.Replace(s, "signing_key: /etc/node/sign.key", "signing_key: \"\"", 1)
			},
			wantErr: "signing_key",
		},
		{
			name: "proxy without idp url",
			mangle: func(s string) string {
				return strings.Replace(s, "idp_url: https://idp.example.ca/auth", "idp_url: \"\"", 1)
			},
			wantErr: "proxy.idp_url",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.mangle(minimalYAML)))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseRejectsConnectorWithoutCounterparts(t *testing.T) {
	yml := strings.Replace(minimalYAML, "proxy_service: true", "connector: true", 1)
	_, err := Parse([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "routes.counterparts") {
		t.Errorf("err = %v", err)
	}
}

func TestParseRejectsUnknownSPType(t *testing.T) {
	yml := minimalYAML + "policy:\n  sp_type_local: governmental\n"
	_, err := Parse([]byte(yml))
	if err == nil || !strings.Contains(err.Error(), "service-provider type") {
		t.Errorf("err = %v", err)
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	yml := minimalYAML + "policy:\n  request_ttl: soon\n"
	if _, err := Parse([]byte(yml)); err == nil {
		t.Error("malformed duration accepted")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Country != "CA" {
		t.Errorf("Country = %q", cfg.Node.Country)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
