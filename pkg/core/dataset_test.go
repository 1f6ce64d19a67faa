package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatasetID(t *testing.T) {
	tests := []struct {
		input       string
		wantErr     bool
		wantTarget  string
		wantDataset string
	}{
		{input: "physionet-data:mimiciv_3_1_icu", wantTarget: "physionet-data", wantDataset: "mimiciv_3_1_icu"},
		{input: " local:main ", wantTarget: "local", wantDataset: "main"},
		{input: "no-separator", wantErr: true},
		{input: ":dataset", wantErr: true},
		{input: "target:", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, err := ParseDatasetID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDatasetID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTarget, id.Target())
			assert.Equal(t, tt.wantDataset, id.Dataset())
		})
	}
}
