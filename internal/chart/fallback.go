package chart

import (
	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Fallback chart texts.
const (
	FallbackDescription = "Fallback chart due to code generation error"
	FallbackAlt         = "Fallback statistical plot"
	FallbackFailed      = "Failed to generate chart visualization"
)

// Fallback draws the fixed chart used whenever synthesis or rendering fails.
// If even that cannot be drawn it returns an error artifact.
func Fallback() core.ChartArtifact {
	c := NewCanvas()
	c.SetTitle("Fallback Chart - Code Generation Error")
	c.SetXLabel("X Values")
	c.SetYLabel("Y Values")
	c.SetGrid(true)
	if err := c.Line([]float64{1, 2, 3, 4}, []float64{1, 4, 2, 3}, "", true); err != nil {
		return core.ErrorArtifact(FallbackFailed)
	}

	png, err := c.PNG()
	if err != nil {
		return core.ErrorArtifact(FallbackFailed)
	}
	a := core.GraphArtifact(FormatImage, FallbackDescription, ImagePayload(png, FallbackAlt))
	a.Fallback = true
	return a
}
