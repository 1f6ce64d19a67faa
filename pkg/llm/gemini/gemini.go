// Package gemini registers the "gemini" llm provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

func init() {
	llm.Register("gemini", func(ctx context.Context, cfg llm.Config, logger *slog.Logger) (llm.Completer, error) {
		return New(ctx, cfg, logger)
	})
}

// Client talks to the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New creates a Client.
func New(ctx context.Context, cfg llm.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model, logger: logger}, nil
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, &genai.GenerateContentConfig{CandidateCount: 1})
}

// CompleteJSON implements llm.StructuredCompleter.
func (c *Client) CompleteJSON(ctx context.Context, prompt, _ string, schema map[string]any) (string, error) {
	return c.generate(ctx, prompt, &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   ToSchema(schema),
	})
}

func (c *Client) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", classifyErr(err)
	}
	out := resp.Text()
	c.logger.Debug("gemini completion",
		slog.String("model", c.model),
		slog.Int("chars", len(out)))
	return out, nil
}

// ToSchema converts a JSON schema document (as produced by
// llm.GenerateSchema) into the Gemini schema subset.
func ToSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = ToSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = ToSchema(items)
	}
	return s
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &llm.TransientError{Err: err}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &llm.TransientError{Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
