// Package openai registers the "openai" llm provider backed by the
// Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

func init() {
	llm.Register("openai", func(_ context.Context, cfg llm.Config, logger *slog.Logger) (llm.Completer, error) {
		return New(cfg, logger)
	})
}

// Client talks to the OpenAI Responses API.
type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// New creates a Client. An empty APIKey falls back to OPENAI_API_KEY, which
// the SDK reads itself.
func New(cfg llm.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var opts []option.RequestOption
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	client := openai.NewClient(opts...)
	return &Client{client: &client, model: model, logger: logger}, nil
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, c.params(prompt))
}

// CompleteJSON implements llm.StructuredCompleter.
func (c *Client) CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error) {
	params := c.params(prompt)
	params.Text = responses.ResponseTextConfigParam{
		Format: responses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
				Name:        name,
				Schema:      schema,
				Strict:      openai.Bool(true),
				Description: openai.String(name + " reply"),
				Type:        "json_schema",
			},
		},
	}
	return c.send(ctx, params)
}

func (c *Client) params(prompt string) responses.ResponseNewParams {
	return responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
}

func (c *Client) send(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyErr(err)
	}
	out := resp.OutputText()
	c.logger.Debug("openai completion",
		slog.String("model", c.model),
		slog.Int("chars", len(out)))
	return out, nil
}

func classifyErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode/100 == 5 {
			return &llm.TransientError{Err: err}
		}
		return fmt.Errorf("openai: %w", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &llm.TransientError{Err: err}
	}
	return fmt.Errorf("openai: %w", err)
}
