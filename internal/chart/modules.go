package chart

import (
	"fmt"
	"strconv"

	sandbox "github.com/leapstack-labs/dataexplorer/internal/starlark"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// args is the loosely unpacked argument list of a module function. Unknown
// keyword arguments are kept so styling options the sandbox does not model
// can be passed through or ignored.
type args struct {
	fn     string
	named  map[string]starlark.Value
	order  []string
	extras []string
}

func unpack(fn string, positional starlark.Tuple, kwargs []starlark.Tuple, names ...string) (*args, error) {
	if len(positional) > len(names) {
		return nil, fmt.Errorf("%s: got %d positional arguments, want at most %d", fn, len(positional), len(names))
	}
	a := &args{fn: fn, named: make(map[string]starlark.Value, len(names)+len(kwargs))}
	for i, v := range positional {
		a.named[names[i]] = v
		a.order = append(a.order, names[i])
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	for _, kv := range kwargs {
		k := string(kv[0].(starlark.String))
		if _, dup := a.named[k]; dup {
			return nil, fmt.Errorf("%s: got multiple values for %s", fn, k)
		}
		a.named[k] = kv[1]
		if known[k] {
			a.order = append(a.order, k)
		} else {
			a.extras = append(a.extras, k)
		}
	}
	return a, nil
}

func (a *args) get(name string) (starlark.Value, bool) {
	v, ok := a.named[name]
	if !ok || v == starlark.None {
		return nil, false
	}
	return v, true
}

func (a *args) require(name string) (starlark.Value, error) {
	v, ok := a.get(name)
	if !ok {
		return nil, fmt.Errorf("%s: missing argument %s", a.fn, name)
	}
	return v, nil
}

func (a *args) str(name string) string {
	v, ok := a.get(name)
	if !ok {
		return ""
	}
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// dict copies every named argument, known ones first, into a new dict.
func (a *args) dict() *starlark.Dict {
	d := starlark.NewDict(len(a.named))
	for _, k := range append(append([]string{}, a.order...), a.extras...) {
		_ = d.SetKey(starlark.String(k), a.named[k])
	}
	return d
}

func builtin(name string, fn func(*args) (starlark.Value, error), params ...string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, positional starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		a, err := unpack(b.Name(), positional, kwargs, params...)
		if err != nil {
			return nil, err
		}
		return fn(a)
	})
}

// plotly

// Figure is a plotly figure under construction.
type Figure struct {
	traces *starlark.List
	layout *starlark.Dict
}

var (
	_ starlark.HasAttrs = (*Figure)(nil)
	_ sandbox.GoValuer  = (*Figure)(nil)
)

func newFigure() *Figure {
	return &Figure{traces: starlark.NewList(nil), layout: starlark.NewDict(0)}
}

func (f *Figure) String() string        { return fmt.Sprintf("plotly.Figure(%d traces)", f.traces.Len()) }
func (f *Figure) Type() string          { return "plotly.Figure" }
func (f *Figure) Freeze()               { f.traces.Freeze(); f.layout.Freeze() }
func (f *Figure) Truth() starlark.Bool  { return starlark.True }
func (f *Figure) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", f.Type()) }

func (f *Figure) AttrNames() []string {
	return []string{"add_trace", "data", "layout", "to_dict", "update_layout"}
}

func (f *Figure) Attr(name string) (starlark.Value, error) {
	switch name {
	case "data":
		return f.traces, nil
	case "layout":
		return f.layout, nil
	case "add_trace":
		return builtin("add_trace", func(a *args) (starlark.Value, error) {
			t, err := a.require("trace")
			if err != nil {
				return nil, err
			}
			return starlark.None, f.traces.Append(t)
		}, "trace"), nil
	case "update_layout":
		return builtin("update_layout", func(a *args) (starlark.Value, error) {
			if v, ok := a.get("dict1"); ok {
				if err := mergeInto(f.layout, v); err != nil {
					return nil, fmt.Errorf("update_layout: %w", err)
				}
			}
			for _, k := range a.extras {
				if err := f.layout.SetKey(starlark.String(k), a.named[k]); err != nil {
					return nil, err
				}
			}
			return starlark.None, nil
		}, "dict1"), nil
	case "to_dict":
		return builtin("to_dict", func(*args) (starlark.Value, error) {
			m, err := f.ToGo()
			if err != nil {
				return nil, err
			}
			return sandbox.GoToStarlark(m)
		}), nil
	}
	return nil, nil
}

// ToGo converts the figure with the generic value conversion.
func (f *Figure) ToGo() (any, error) {
	data, err := sandbox.ToGo(f.traces)
	if err != nil {
		return nil, fmt.Errorf("figure data: %w", err)
	}
	layout, err := sandbox.ToGo(f.layout)
	if err != nil {
		return nil, fmt.Errorf("figure layout: %w", err)
	}
	if data == nil {
		data = []any{}
	}
	return map[string]any{"data": data, "layout": layout}, nil
}

// manualDict converts the figure field by field, dropping any field that
// cannot be represented.
func (f *Figure) manualDict() map[string]any {
	data := make([]any, 0, f.traces.Len())
	for i := 0; i < f.traces.Len(); i++ {
		d, ok := f.traces.Index(i).(*starlark.Dict)
		if !ok {
			continue
		}
		data = append(data, lenientDict(d))
	}
	return map[string]any{"data": data, "layout": lenientDict(f.layout)}
}

func lenientDict(d *starlark.Dict) map[string]any {
	out := make(map[string]any, d.Len())
	for _, kv := range d.Items() {
		k, ok := starlark.AsString(kv[0])
		if !ok {
			continue
		}
		if v, err := sandbox.ToGo(kv[1]); err == nil {
			out[k] = v
		}
	}
	return out
}

// FigureDict returns {data, layout} for a figure.
func FigureDict(f *Figure) map[string]any {
	m, err := f.ToGo()
	if err != nil {
		return f.manualDict()
	}
	return m.(map[string]any)
}

func mergeInto(dst *starlark.Dict, src starlark.Value) error {
	d, ok := src.(*starlark.Dict)
	if !ok {
		return fmt.Errorf("got %s, want dict", src.Type())
	}
	for _, kv := range d.Items() {
		if err := dst.SetKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func traceBuiltin(name, typ string, defaults map[string]string, params ...string) *starlark.Builtin {
	return builtin(name, func(a *args) (starlark.Value, error) {
		d := starlark.NewDict(len(a.named) + 1 + len(defaults))
		_ = d.SetKey(starlark.String("type"), starlark.String(typ))
		for k, v := range defaults {
			if _, ok := a.named[k]; !ok {
				_ = d.SetKey(starlark.String(k), starlark.String(v))
			}
		}
		for _, kv := range a.dict().Items() {
			if err := d.SetKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}, params...)
}

func figureBuiltin(name string) *starlark.Builtin {
	return builtin(name, func(a *args) (starlark.Value, error) {
		f := newFigure()
		if v, ok := a.get("data"); ok {
			switch t := v.(type) {
			case *starlark.Dict:
				_ = f.traces.Append(t)
			case starlark.Iterable:
				iter := t.Iterate()
				defer iter.Done()
				var x starlark.Value
				for iter.Next(&x) {
					_ = f.traces.Append(x)
				}
			default:
				return nil, fmt.Errorf("%s: data must be a trace or a list of traces", name)
			}
		}
		if v, ok := a.get("layout"); ok {
			if err := mergeInto(f.layout, v); err != nil {
				return nil, fmt.Errorf("%s: layout: %w", name, err)
			}
		}
		return f, nil
	}, "data", "layout")
}

func plotlyModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "plotly",
		Members: starlark.StringDict{
			"figure":  figureBuiltin("figure"),
			"bar":     traceBuiltin("bar", "bar", nil, "x", "y"),
			"scatter": traceBuiltin("scatter", "scatter", map[string]string{"mode": "markers"}, "x", "y"),
			"line":    traceBuiltin("line", "scatter", map[string]string{"mode": "lines"}, "x", "y"),
			"pie":     traceBuiltin("pie", "pie", nil, "labels", "values"),
		},
	}
}

// goModule mirrors plotly.graph_objects naming for snippets written that way.
func goModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "go",
		Members: starlark.StringDict{
			"Figure":  figureBuiltin("Figure"),
			"Bar":     traceBuiltin("Bar", "bar", nil, "x", "y"),
			"Scatter": traceBuiltin("Scatter", "scatter", nil, "x", "y"),
			"Pie":     traceBuiltin("Pie", "pie", nil, "labels", "values"),
		},
	}
}

var plotlyToDict = builtin("plotly_to_dict", func(a *args) (starlark.Value, error) {
	v, err := a.require("fig")
	if err != nil {
		return nil, err
	}
	f, ok := v.(*Figure)
	if !ok {
		return nil, fmt.Errorf("plotly_to_dict: got %s, want plotly.Figure", v.Type())
	}
	return sandbox.GoToStarlark(FigureDict(f))
}, "fig")

// chartjs

func chartjsModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "chartjs",
		Members: starlark.StringDict{
			"dataset": builtin("dataset", func(a *args) (starlark.Value, error) {
				return a.dict(), nil
			}, "label", "data"),
			"config": builtin("config", func(a *args) (starlark.Value, error) {
				typ := a.str("type")
				if typ == "" {
					typ = "bar"
				}
				data := starlark.NewDict(2)
				labels, ok := a.get("labels")
				if !ok {
					labels = starlark.NewList(nil)
				}
				datasets, ok := a.get("datasets")
				if !ok {
					datasets = starlark.NewList(nil)
				}
				_ = data.SetKey(starlark.String("labels"), labels)
				_ = data.SetKey(starlark.String("datasets"), datasets)

				options, ok := a.get("options")
				if !ok {
					options = starlark.NewDict(0)
				}
				cfg := starlark.NewDict(3)
				_ = cfg.SetKey(starlark.String("type"), starlark.String(typ))
				_ = cfg.SetKey(starlark.String("data"), data)
				_ = cfg.SetKey(starlark.String("options"), options)
				return cfg, nil
			}, "type", "labels", "datasets", "options"),
		},
	}
}

// plt

// Image is the PNG produced by plt.savefig.
type Image struct {
	PNG []byte
	Alt string
}

var _ sandbox.GoValuer = (*Image)(nil)

func (i *Image) String() string        { return fmt.Sprintf("plt.Image(%d bytes)", len(i.PNG)) }
func (i *Image) Type() string          { return "plt.Image" }
func (i *Image) Freeze()               {}
func (i *Image) Truth() starlark.Bool  { return len(i.PNG) > 0 }
func (i *Image) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", i.Type()) }

// ToGo returns the {src, alt} image payload.
func (i *Image) ToGo() (any, error) {
	return ImagePayload(i.PNG, i.Alt), nil
}

func pltModule(c *Canvas) *starlarkstruct.Module {
	text := func(name string, set func(string)) *starlark.Builtin {
		return builtin(name, func(a *args) (starlark.Value, error) {
			set(a.str("s"))
			return starlark.None, nil
		}, "s")
	}
	noop := func(name string) *starlark.Builtin {
		return builtin(name, func(*args) (starlark.Value, error) { return starlark.None, nil })
	}

	return &starlarkstruct.Module{
		Name: "plt",
		Members: starlark.StringDict{
			"figure": builtin("figure", func(a *args) (starlark.Value, error) {
				var w, h float64
				if v, ok := a.get("figsize"); ok {
					size, _, err := floats(v)
					if err != nil || len(size) != 2 {
						return nil, fmt.Errorf("figure: figsize must be a (width, height) pair")
					}
					w, h = size[0], size[1]
				}
				c.Reset(w, h)
				return starlark.None, nil
			}, "num", "figsize"),

			"plot": builtin("plot", func(a *args) (starlark.Value, error) {
				xs, ys, labels, err := xy(a, "x", "y")
				if err != nil {
					return nil, err
				}
				if labels != nil {
					c.SetXTicks(labels)
				}
				_, marker := a.get("marker")
				if f, ok := a.get("fmt"); ok {
					if s, ok := starlark.AsString(f); ok && s != "" && s != "-" {
						marker = true
					}
				}
				return starlark.None, c.Line(xs, ys, a.str("label"), marker)
			}, "x", "y", "fmt"),

			"scatter": builtin("scatter", func(a *args) (starlark.Value, error) {
				xs, ys, labels, err := xy(a, "x", "y")
				if err != nil {
					return nil, err
				}
				if labels != nil {
					c.SetXTicks(labels)
				}
				return starlark.None, c.Scatter(xs, ys, a.str("label"))
			}, "x", "y"),

			"bar": builtin("bar", func(a *args) (starlark.Value, error) {
				xv, err := a.require("x")
				if err != nil {
					return nil, err
				}
				hv, err := a.require("height")
				if err != nil {
					return nil, err
				}
				heights, _, err := floats(hv)
				if err != nil {
					return nil, fmt.Errorf("bar: height: %w", err)
				}
				return starlark.None, c.Bar(tickLabels(xv), heights, a.str("label"))
			}, "x", "height"),

			"title":  text("title", c.SetTitle),
			"xlabel": text("xlabel", c.SetXLabel),
			"ylabel": text("ylabel", c.SetYLabel),
			"grid": builtin("grid", func(a *args) (starlark.Value, error) {
				on := true
				if v, ok := a.get("visible"); ok {
					on = bool(v.Truth())
				}
				c.SetGrid(on)
				return starlark.None, nil
			}, "visible"),
			"legend": builtin("legend", func(*args) (starlark.Value, error) {
				c.ShowLegend()
				return starlark.None, nil
			}),
			"savefig": builtin("savefig", func(a *args) (starlark.Value, error) {
				png, err := c.PNG()
				if err != nil {
					return nil, fmt.Errorf("savefig: %w", err)
				}
				return &Image{PNG: png, Alt: a.str("alt")}, nil
			}, "fname"),

			"tight_layout": noop("tight_layout"),
			"xticks":       noop("xticks"),
			"yticks":       noop("yticks"),
			"show":         noop("show"),
			"close":        noop("close"),
		},
	}
}

// xy reads the x and y arguments of plot and scatter. A lone sequence is
// taken as y against 0..n-1. Non-numeric x values become tick labels.
func xy(a *args, xname, yname string) (xs, ys []float64, labels []string, err error) {
	xv, err := a.require(xname)
	if err != nil {
		return nil, nil, nil, err
	}
	yv, ok := a.get(yname)
	if !ok {
		ys, _, err = floats(xv)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s: %w", a.fn, err)
		}
		return positions(len(ys)), ys, nil, nil
	}

	ys, _, err = floats(yv)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: y: %w", a.fn, err)
	}
	xs, labels, err = floats(xv)
	if err == nil {
		return xs, ys, nil, nil
	}
	labels = tickLabels(xv)
	if labels == nil {
		return nil, nil, nil, fmt.Errorf("%s: x: %w", a.fn, err)
	}
	return positions(len(labels)), ys, labels, nil
}

func positions(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// floats converts a sequence of numbers (or numeric strings) to float64.
// The second result holds the values' string forms.
func floats(v starlark.Value) ([]float64, []string, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, nil, fmt.Errorf("got %s, want a sequence", v.Type())
	}
	var out []float64
	var strs []string
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		f, err := number(x)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, f)
		strs = append(strs, label(x))
	}
	return out, strs, nil
}

func number(v starlark.Value) (float64, error) {
	switch t := v.(type) {
	case starlark.Int:
		return float64(t.Float()), nil
	case starlark.Float:
		return float64(t), nil
	case starlark.Bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case starlark.String:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", string(t))
		}
		return f, nil
	}
	return 0, fmt.Errorf("got %s, want a number", v.Type())
}

func label(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// tickLabels returns the string form of each element of a sequence, or nil
// when v is not a sequence.
func tickLabels(v starlark.Value) []string {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil
	}
	labels := []string{}
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		labels = append(labels, label(x))
	}
	return labels
}
