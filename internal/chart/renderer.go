package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sandbox "github.com/leapstack-labs/dataexplorer/internal/starlark"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"go.starlark.net/starlark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatImage is the graph format of embedded PNG charts.
const FormatImage = "image"

const defaultChartType = "line chart"

var errEmptyResult = errors.New("chart result is empty")

// Renderer executes chart snippets in the Starlark sandbox.
type Renderer struct {
	timeout  time.Duration
	maxSteps uint64
	logger   *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTimeout bounds a single render.
func WithTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) { r.timeout = d }
}

// WithMaxSteps bounds the interpreter steps of a single render.
func WithMaxSteps(n uint64) RendererOption {
	return func(r *Renderer) { r.maxSteps = n }
}

// WithLogger sets the renderer logger.
func WithLogger(l *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		timeout:  sandbox.DefaultTimeout,
		maxSteps: sandbox.DefaultMaxSteps,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render executes the snippet against rows and returns the normalized chart.
// It never fails: any error yields Fallback().
func (r *Renderer) Render(ctx context.Context, snippet Snippet, rows core.RowSet) (artifact core.ChartArtifact) {
	canvas := NewCanvas()
	defer canvas.Release()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("chart render panicked", slog.Any("panic", p))
			artifact = Fallback()
		}
	}()

	a, err := r.render(ctx, snippet, rows, canvas)
	if err != nil {
		r.logger.Warn("chart render failed, using fallback chart",
			slog.String("library", snippet.Library),
			slog.String("error", err.Error()))
		var evalErr *sandbox.EvalError
		if errors.As(err, &evalErr) && evalErr.Backtrace != "" {
			r.logger.Debug("chart snippet backtrace", slog.String("backtrace", evalErr.Backtrace))
		}
		return Fallback()
	}
	return a
}

func (r *Renderer) render(ctx context.Context, snippet Snippet, rows core.RowSet, canvas *Canvas) (core.ChartArtifact, error) {
	if strings.TrimSpace(snippet.Code) == "" {
		return core.ChartArtifact{}, errors.New("empty chart code")
	}
	data, err := sandbox.RowsToStarlark(rows)
	if err != nil {
		return core.ChartArtifact{}, fmt.Errorf("convert rows: %w", err)
	}

	globals := sandbox.Predeclared(starlark.StringDict{
		"data":           data,
		"plotly":         plotlyModule(),
		"go":             goModule(),
		"chartjs":        chartjsModule(),
		"plt":            pltModule(canvas),
		"plotly_to_dict": plotlyToDict,
	})
	result, err := sandbox.Result(ctx, "chart.star", snippet.Code, "result", globals, sandbox.Options{
		Timeout:  r.timeout,
		MaxSteps: r.maxSteps,
		Logger:   r.logger,
	})
	if err != nil {
		return core.ChartArtifact{}, err
	}

	format, payload, err := Normalize(result, snippet.Library)
	if err != nil {
		return core.ChartArtifact{}, err
	}
	return core.GraphArtifact(format, Description(snippet.ChartType, snippet.Library), payload), nil
}

// Normalize maps a snippet result onto a graph format and payload.
// Figures become {data, layout}, images {src, alt}, and dicts keep their
// fields with graphType (default library) split out.
func Normalize(v starlark.Value, library string) (string, map[string]any, error) {
	switch t := v.(type) {
	case *Figure:
		return library, FigureDict(t), nil

	case *Image:
		return FormatImage, ImagePayload(t.PNG, t.Alt), nil

	case *starlark.Dict:
		g, err := sandbox.ToGo(t)
		if err != nil {
			return "", nil, fmt.Errorf("convert result: %w", err)
		}
		m := g.(map[string]any)
		if len(m) == 0 {
			return "", nil, errEmptyResult
		}
		format := library
		if gt, ok := m["graphType"].(string); ok && gt != "" {
			format = gt
		}
		delete(m, "graphType")
		return format, m, nil

	default:
		return "", nil, fmt.Errorf("unsupported chart result type %s", v.Type())
	}
}

// Description is the human readable summary of a generated chart.
func Description(chartType, library string) string {
	chartType = strings.ToLower(strings.TrimSpace(chartType))
	if chartType == "" {
		chartType = defaultChartType
	}
	return cases.Title(language.English).String(chartType) + " chart generated using " + library
}
