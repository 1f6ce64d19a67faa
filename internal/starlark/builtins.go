package starlark

import (
	"fmt"
	"math"

	"go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Builtins returns the helpers predeclared for every snippet on top of the
// Starlark universe (which already provides abs, min, max, sorted and
// friends). Nothing here performs I/O.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"sum":   starlark.NewBuiltin("sum", sum),
		"round": starlark.NewBuiltin("round", round),
		"json":  json.Module,
		"math":  starmath.Module,
	}
}

// Predeclared merges the builtins with extra globals. Extra globals win.
func Predeclared(extra starlark.StringDict) starlark.StringDict {
	globals := Builtins()
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func sum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}

	total := start
	iter := iterable.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		if x == starlark.None {
			continue
		}
		v, err := starlark.Binary(syntax.PLUS, total, x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		total = v
	}
	return total, nil
}

func round(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var ndigits starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}

	var f float64
	switch v := x.(type) {
	case starlark.Int:
		if ndigits == starlark.None {
			return v, nil
		}
		f = float64(v.Float())
	case starlark.Float:
		f = float64(v)
	default:
		return nil, fmt.Errorf("%s: got %s, want int or float", b.Name(), x.Type())
	}

	if ndigits == starlark.None {
		return starlark.MakeInt64(int64(math.RoundToEven(f))), nil
	}
	n, err := starlark.AsInt32(ndigits)
	if err != nil {
		return nil, fmt.Errorf("%s: ndigits: %w", b.Name(), err)
	}
	p := math.Pow(10, float64(n))
	return starlark.Float(math.RoundToEven(f*p) / p), nil
}
