package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bootstrap describes the genesis state loaded once at cold start: the
// standing pacts and ASC issuers that exist before any commit has ever
// been appended.
type Bootstrap struct {
	GenesisPacts       []BootstrapPact        `yaml:"genesis_pacts"`
	GenesisASCIssuers  []BootstrapASCIssuer   `yaml:"genesis_asc_issuers"`
}

// BootstrapPact mirrors the wire shape of a pact record for YAML
// authoring; internal/pact.Pact is constructed from it at load time.
type BootstrapPact struct {
	PactID        string   `yaml:"pact_id"`
	ScopeType     string   `yaml:"scope_type"`
	ScopeValue    string   `yaml:"scope_value"`
	IntentClasses []string `yaml:"intent_classes"`
	Threshold     int      `yaml:"threshold"`
	Signers       []string `yaml:"signers"`
	SignatureScheme string `yaml:"signature_scheme"`
}

// BootstrapASCIssuer names a public key trusted to issue ASCs at genesis.
type BootstrapASCIssuer struct {
	IssuerID  string `yaml:"issuer_id"`
	PublicKey string `yaml:"public_key"`
}

// LoadBootstrap reads and parses a bootstrap YAML file. It is optional:
// callers only invoke this when BootstrapPath is non-empty.
func LoadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read bootstrap file: %w", err)
	}
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("config: parse bootstrap file: %w", err)
	}
	return &b, nil
}
