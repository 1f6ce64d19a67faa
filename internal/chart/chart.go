package chart

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Builder runs synthesis and rendering as one stage.
type Builder struct {
	synth    *Synthesizer
	renderer *Renderer
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(synth *Synthesizer, renderer *Renderer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{synth: synth, renderer: renderer, logger: logger}
}

// Build returns the chart for rows, or ok=false when no chart applies.
// Synthesis failures degrade to the fallback chart.
func (b *Builder) Build(ctx context.Context, rows core.RowSet, intent core.ChartIntent, question string) (core.ChartArtifact, bool) {
	snippet, err := b.synth.Synthesize(ctx, rows, intent, question)
	if err != nil {
		b.logger.Warn("chart synthesis failed, using fallback chart", slog.String("error", err.Error()))
		return Fallback(), true
	}
	if !snippet.OK {
		return core.ChartArtifact{}, false
	}
	return b.renderer.Render(ctx, snippet, rows), true
}
