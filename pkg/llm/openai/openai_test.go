package openai

import (
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "rate_limited", in: &openai.Error{StatusCode: 429}, wantTransient: true},
		{name: "server_error", in: &openai.Error{StatusCode: 502}, wantTransient: true},
		{name: "plain", in: errors.New("boom"), wantTransient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTransient, llm.IsTransient(classifyErr(tt.in)))
		})
	}
}

func TestNew_DefaultModel(t *testing.T) {
	c, err := New(llm.Config{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.model)

	c, err = New(llm.Config{APIKey: "sk-test", Model: " gpt-4.1 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", c.model)
}

func TestRegistered(t *testing.T) {
	assert.True(t, llm.IsRegistered("openai"))
}
