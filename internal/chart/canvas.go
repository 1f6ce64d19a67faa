package chart

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Default figure size in inches.
const (
	defaultWidth  = 10
	defaultHeight = 6
)

// DefaultAlt is the alt text of an image when the snippet gives none.
const DefaultAlt = "Generated chart"

var errEmptyCanvas = errors.New("canvas has nothing to draw")

type seriesKind int

const (
	seriesLine seriesKind = iota
	seriesScatter
	seriesBar
)

type series struct {
	kind   seriesKind
	xs     []float64
	ys     []float64
	label  string
	marker bool
}

// Canvas accumulates matplotlib-style drawing calls for one render and
// draws them with gonum/plot on savefig.
type Canvas struct {
	title  string
	xlabel string
	ylabel string
	grid   bool
	legend bool
	width  float64
	height float64
	xticks []string
	series []series
}

// NewCanvas returns an empty canvas of the default size.
func NewCanvas() *Canvas {
	return &Canvas{width: defaultWidth, height: defaultHeight}
}

// Release drops everything drawn so far.
func (c *Canvas) Release() {
	c.series = nil
	c.xticks = nil
}

// Reset clears the canvas and sets its size in inches. Non-positive sizes
// keep the default.
func (c *Canvas) Reset(width, height float64) {
	*c = *NewCanvas()
	if width > 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
}

// Line adds a line series, with point markers when marker is set.
func (c *Canvas) Line(xs, ys []float64, label string, marker bool) error {
	if err := checkLengths(len(xs), len(ys)); err != nil {
		return err
	}
	c.series = append(c.series, series{kind: seriesLine, xs: xs, ys: ys, label: label, marker: marker})
	return nil
}

// Scatter adds a scatter series.
func (c *Canvas) Scatter(xs, ys []float64, label string) error {
	if err := checkLengths(len(xs), len(ys)); err != nil {
		return err
	}
	c.series = append(c.series, series{kind: seriesScatter, xs: xs, ys: ys, label: label})
	return nil
}

// Bar adds a bar series. Labels name the categories on the x axis and may be nil.
func (c *Canvas) Bar(labels []string, heights []float64, label string) error {
	if labels != nil {
		if err := checkLengths(len(labels), len(heights)); err != nil {
			return err
		}
	}
	if len(heights) == 0 {
		return errors.New("bar: no values")
	}
	if labels != nil {
		c.xticks = labels
	}
	c.series = append(c.series, series{kind: seriesBar, ys: heights, label: label})
	return nil
}

// SetXTicks names the integer x positions 0..n-1.
func (c *Canvas) SetXTicks(labels []string) { c.xticks = labels }

func (c *Canvas) SetTitle(s string)  { c.title = s }
func (c *Canvas) SetXLabel(s string) { c.xlabel = s }
func (c *Canvas) SetYLabel(s string) { c.ylabel = s }
func (c *Canvas) SetGrid(on bool)    { c.grid = on }
func (c *Canvas) ShowLegend()        { c.legend = true }

func checkLengths(nx, ny int) error {
	if nx != ny {
		return fmt.Errorf("x and y must have same length, got %d and %d", nx, ny)
	}
	if nx == 0 {
		return errors.New("no data points")
	}
	return nil
}

// PNG draws the canvas.
func (c *Canvas) PNG() ([]byte, error) {
	if len(c.series) == 0 {
		return nil, errEmptyCanvas
	}

	p := plot.New()
	p.Title.Text = c.title
	p.X.Label.Text = c.xlabel
	p.Y.Label.Text = c.ylabel
	if c.grid {
		p.Add(plotter.NewGrid())
	}

	bars := 0
	for _, s := range c.series {
		if s.kind == seriesBar {
			bars++
		}
	}
	barWidth := vg.Points(40 / float64(max(bars, 1)))

	barIdx := 0
	for i, s := range c.series {
		col := plotutil.Color(i)
		switch s.kind {
		case seriesLine:
			xys := toXYs(s.xs, s.ys)
			if s.marker {
				l, pts, err := plotter.NewLinePoints(xys)
				if err != nil {
					return nil, err
				}
				l.Color = col
				pts.Color = col
				p.Add(l, pts)
				c.addLegend(p, s.label, l, pts)
				continue
			}
			l, err := plotter.NewLine(xys)
			if err != nil {
				return nil, err
			}
			l.Color = col
			p.Add(l)
			c.addLegend(p, s.label, l)

		case seriesScatter:
			sc, err := plotter.NewScatter(toXYs(s.xs, s.ys))
			if err != nil {
				return nil, err
			}
			sc.Color = col
			p.Add(sc)
			c.addLegend(p, s.label, sc)

		case seriesBar:
			b, err := plotter.NewBarChart(plotter.Values(s.ys), barWidth)
			if err != nil {
				return nil, err
			}
			b.Color = col
			b.LineStyle.Width = vg.Length(0)
			b.Offset = vg.Length(float64(barIdx)-float64(bars-1)/2) * barWidth
			barIdx++
			p.Add(b)
			c.addLegend(p, s.label, b)
		}
	}
	if len(c.xticks) > 0 {
		p.NominalX(c.xticks...)
	}

	wt, err := p.WriterTo(vg.Length(c.width)*vg.Inch, vg.Length(c.height)*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("draw png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Canvas) addLegend(p *plot.Plot, label string, thumbs ...plot.Thumbnailer) {
	if c.legend && label != "" {
		p.Legend.Add(label, thumbs...)
	}
}

func toXYs(xs, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, len(xs))
	for i := range xs {
		xys[i].X = xs[i]
		xys[i].Y = ys[i]
	}
	return xys
}

// ImagePayload is the graph payload of an embedded PNG.
func ImagePayload(png []byte, alt string) map[string]any {
	if alt == "" {
		alt = DefaultAlt
	}
	return map[string]any{
		"src": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"alt": alt,
	}
}
