// Package chart turns query results and a chart intent into a chart
// artifact: a provider writes a Starlark snippet, and the sandboxed renderer
// executes it and normalizes the result.
package chart

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"unicode"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

//go:embed prompt.tmpl
var promptText string

var promptTmpl = template.Must(template.New("chart").Parse(promptText))

// Snippet is generated chart code plus the intent it was written for.
// OK is false when no chart should be drawn.
type Snippet struct {
	Code      string
	Library   string
	ChartType string
	OK        bool
}

// Synthesizer asks a text-completion provider for chart code.
type Synthesizer struct {
	llm    llm.Completer
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(completer llm.Completer, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{llm: completer, logger: logger}
}

// Synthesize returns a snippet with OK=false when the intent names no
// library or there are no rows to plot.
func (s *Synthesizer) Synthesize(ctx context.Context, rows core.RowSet, intent core.ChartIntent, question string) (Snippet, error) {
	library := strings.ToLower(strings.TrimSpace(intent.Library))
	chartType := strings.ToLower(strings.TrimSpace(intent.ChartType))
	if library == "" || library == core.LibraryNone || rows.Empty() {
		return Snippet{}, nil
	}

	prompt, err := Prompt(rows, library, chartType, question)
	if err != nil {
		return Snippet{}, err
	}
	out, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return Snippet{}, fmt.Errorf("synthesize chart code: %w", err)
	}

	code := Clean(out)
	s.logger.Debug("generated chart code", slog.String("library", library), slog.String("code", code))
	return Snippet{Code: code, Library: library, ChartType: chartType, OK: true}, nil
}

// Prompt renders the code generation prompt.
func Prompt(rows core.RowSet, library, chartType, question string) (string, error) {
	data, err := json.MarshalIndent(rows.Rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	if question == "" {
		question = "Generate a visualization"
	}

	var buf bytes.Buffer
	err = promptTmpl.Execute(&buf, struct {
		Question  string
		ChartType string
		Library   string
		Data      string
	}{question, chartType, library, string(data)})
	if err != nil {
		return "", fmt.Errorf("render chart prompt: %w", err)
	}
	return buf.String(), nil
}

// Clean extracts the first fenced block if there is one and drops import
// and load lines.
func Clean(reply string) string {
	code := strings.TrimSpace(reply)
	if i := strings.Index(code, "```"); i >= 0 {
		body := code[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && isInfoString(body[:nl]) {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		code = strings.TrimSpace(body)
	}

	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") || strings.HasPrefix(trimmed, "load(") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isInfoString reports whether s looks like a fence language tag such as
// "python" or "starlark".
func isInfoString(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '+' {
			return false
		}
	}
	return true
}
