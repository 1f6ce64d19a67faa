package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name: "extensions only",
			input: map[string]any{
				"extensions": []any{"httpfs", "json"},
			},
			want: &Params{Extensions: []string{"httpfs", "json"}},
		},
		{
			name: "settings are weakly typed",
			input: map[string]any{
				"settings": map[string]any{
					"memory_limit": "4GB",
					"threads":      4,
				},
			},
			want: &Params{Settings: map[string]string{"memory_limit": "4GB", "threads": "4"}},
		},
		{
			name: "secrets",
			input: map[string]any{
				"secrets": []any{
					map[string]any{"type": "s3", "provider": "credential_chain", "region": "us-west-2"},
				},
			},
			want: &Params{Secrets: []SecretConfig{{Type: "s3", Provider: "credential_chain", Region: "us-west-2"}}},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"extension": []any{"json"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Extensions, got.Extensions)
			assert.Equal(t, tt.want.Settings, got.Settings)
			assert.Equal(t, tt.want.Secrets, got.Secrets)
		})
	}
}

func TestSetupStatements(t *testing.T) {
	useSSL := false
	p := &Params{
		Extensions: []string{"httpfs"},
		Settings:   map[string]string{"threads": "2", "memory_limit": "1GB"},
		Secrets: []SecretConfig{{
			Type:     "s3",
			Provider: "config",
			KeyID:    "minio",
			Secret:   "it's",
			Endpoint: "localhost:9000",
			URLStyle: "path",
			UseSSL:   &useSSL,
			Scope:    []any{"s3://a", "s3://b"},
		}},
	}

	assert.Equal(t, []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		"SET memory_limit = '1GB'",
		"SET threads = '2'",
		"CREATE OR REPLACE SECRET secret_0 (TYPE s3, PROVIDER config, KEY_ID 'minio', SECRET 'it''s', ENDPOINT 'localhost:9000', URL_STYLE 'path', USE_SSL false, SCOPE ('s3://a', 's3://b'))",
	}, p.setupStatements())
}
