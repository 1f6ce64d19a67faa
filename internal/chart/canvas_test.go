package chart

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestCanvas_PNG(t *testing.T) {
	c := NewCanvas()
	c.Reset(3, 2)
	c.SetTitle("t")
	c.SetGrid(true)
	c.ShowLegend()
	require.NoError(t, c.Line([]float64{0, 1, 2}, []float64{1, 3, 2}, "line", true))
	require.NoError(t, c.Scatter([]float64{0, 1}, []float64{2, 2}, "pts"))
	require.NoError(t, c.Bar([]string{"a", "b", "c"}, []float64{1, 2, 3}, "bars"))

	png, err := c.PNG()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestCanvas_Errors(t *testing.T) {
	c := NewCanvas()
	_, err := c.PNG()
	assert.ErrorIs(t, err, errEmptyCanvas)

	assert.Error(t, c.Line([]float64{1}, []float64{1, 2}, "", false))
	assert.Error(t, c.Scatter(nil, nil, ""))
	assert.Error(t, c.Bar([]string{"a"}, []float64{1, 2}, ""))
	assert.Error(t, c.Bar(nil, nil, ""))

	require.NoError(t, c.Line([]float64{1}, []float64{1}, "", false))
	c.Release()
	_, err = c.PNG()
	assert.ErrorIs(t, err, errEmptyCanvas)
}

func TestFallback(t *testing.T) {
	a := Fallback()
	require.Equal(t, core.ArtifactGraph, a.Kind)
	assert.True(t, a.Fallback)
	assert.Equal(t, FormatImage, a.Format)
	assert.Equal(t, FallbackDescription, a.Description)
	assert.Equal(t, FallbackAlt, a.Payload["alt"])

	src := a.Payload["src"].(string)
	require.True(t, strings.HasPrefix(src, "data:image/png;base64,"))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(src, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}
