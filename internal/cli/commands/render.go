package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"golang.org/x/term"
)

var (
	narrationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	chartStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// eventPrinter writes pipeline events for a terminal or a pipe. It
// implements stream.Sink.
type eventPrinter struct {
	w        io.Writer
	styled   bool
	jsonMode bool
	// outDir receives chart files when set.
	outDir string
	charts int
}

func newEventPrinter(w io.Writer, jsonMode bool, outDir string) *eventPrinter {
	return &eventPrinter{w: w, styled: isTerminal(w), jsonMode: jsonMode, outDir: outDir}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}

func (p *eventPrinter) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Emit implements stream.Sink.
func (p *eventPrinter) Emit(_ context.Context, ev core.Event) error {
	if p.jsonMode {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", b)
		return err
	}

	switch ev.Kind {
	case core.EventMessage:
		_, err := fmt.Fprintln(p.w, p.style(narrationStyle, "· "+ev.Content))
		return err
	case core.EventError:
		_, err := fmt.Fprintln(p.w, p.style(errorStyle, "✗ "+ev.Message))
		return err
	case core.EventGraph:
		return p.printChart(ev.Chart)
	}
	return nil
}

func (p *eventPrinter) printChart(a *core.ChartArtifact) error {
	header := fmt.Sprintf("▣ %s [%s]", a.Description, a.Format)
	if _, err := fmt.Fprintln(p.w, p.style(chartStyle, header)); err != nil {
		return err
	}
	if p.outDir == "" {
		return nil
	}
	p.charts++
	path, err := writeChart(p.outDir, p.charts, a)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, "  saved "+p.style(pathStyle, path))
	return err
}

// writeChart stores an image chart as PNG and anything else as JSON.
func writeChart(dir string, n int, a *core.ChartArtifact) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("chart-%s-%d", time.Now().Format("20060102-150405"), n))

	if src, ok := a.Payload["src"].(string); ok {
		if data, ok := strings.CutPrefix(src, "data:image/png;base64,"); ok {
			png, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return "", fmt.Errorf("decode chart image: %w", err)
			}
			path := base + ".png"
			return path, os.WriteFile(path, png, 0o600)
		}
	}

	b, err := json.MarshalIndent(map[string]any{
		"description": a.Description,
		"graphType":   a.Format,
		"graphData":   a.Payload,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	path := base + ".json"
	return path, os.WriteFile(path, b, 0o600)
}
