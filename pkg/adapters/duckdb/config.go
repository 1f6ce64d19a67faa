package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "parquet", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication, used when datasets are
	// views over remote files
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// setupStatements renders the session setup executed right after connect.
// Order: extensions, settings, secrets.
func (p *Params) setupStatements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, fmt.Sprintf("INSTALL %s", ext), fmt.Sprintf("LOAD %s", ext))
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quoteLiteral(p.Settings[k])))
	}

	for i, s := range p.Secrets {
		stmts = append(stmts, s.createStatement(i))
	}
	return stmts
}

func (s SecretConfig) createStatement(i int) string {
	opts := []string{"TYPE " + s.Type}
	add := func(key, val string) {
		if val != "" {
			opts = append(opts, fmt.Sprintf("%s %s", key, quoteLiteral(val)))
		}
	}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	add("REGION", s.Region)
	add("KEY_ID", s.KeyID)
	add("SECRET", s.Secret)
	add("ENDPOINT", s.Endpoint)
	add("URL_STYLE", s.URLStyle)
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	var scopes []string
	switch scope := s.Scope.(type) {
	case string:
		scopes = []string{scope}
	case []string:
		scopes = scope
	case []any:
		for _, v := range scope {
			if str, ok := v.(string); ok {
				scopes = append(scopes, str)
			}
		}
	}
	switch len(scopes) {
	case 0:
	case 1:
		add("SCOPE", scopes[0])
	default:
		quoted := make([]string, len(scopes))
		for i, sc := range scopes {
			quoted[i] = quoteLiteral(sc)
		}
		opts = append(opts, "SCOPE ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET secret_%d (%s)", i, strings.Join(opts, ", "))
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
