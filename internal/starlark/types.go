// Package starlark runs untrusted chart snippets in a go.starlark.net
// interpreter and converts values between Go and Starlark.
package starlark

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// GoValuer is implemented by sandbox values that know their own Go form,
// such as the plotting modules' figure and config objects.
type GoValuer interface {
	ToGo() (any, error)
}

// GoToStarlark converts a Go value to a Starlark value.
// Map keys are inserted in sorted order so dict iteration is deterministic.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case []byte:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil
	case int8:
		return starlark.MakeInt(int(val)), nil
	case int16:
		return starlark.MakeInt(int(val)), nil
	case int32:
		return starlark.MakeInt(int(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint:
		return starlark.MakeUint(val), nil
	case uint8:
		return starlark.MakeUint(uint(val)), nil
	case uint16:
		return starlark.MakeUint(uint(val)), nil
	case uint32:
		return starlark.MakeUint(uint(val)), nil
	case uint64:
		return starlark.MakeUint64(val), nil

	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case time.Time:
		return starlark.String(val.Format(time.RFC3339)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []float64:
		list := make([]starlark.Value, len(val))
		for i, f := range val {
			list[i] = starlark.Float(f)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case []map[string]any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case []core.Record:
		list := make([]starlark.Value, len(val))
		for i, rec := range val {
			sv, err := GoToStarlark(map[string]any(rec))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case core.Record:
		return GoToStarlark(map[string]any(val))

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// RowsToStarlark converts a result set into a list of dicts, one per row.
func RowsToStarlark(rows core.RowSet) (*starlark.List, error) {
	v, err := GoToStarlark(rows.Rows)
	if err != nil {
		return nil, err
	}
	return v.(*starlark.List), nil
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil.
// Non-finite floats become nil so the result is always JSON encodable.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil

	case GoValuer:
		return val.ToGo()

	case starlark.String:
		return string(val), nil

	case starlark.Bytes:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return f, nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key := dictKey(item[0])
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[key] = gv
		}
		return result, nil

	case *starlarkstruct.Struct:
		d := make(starlark.StringDict)
		val.ToStringDict(d)
		result := make(map[string]any, len(d))
		for k, item := range d {
			gv, err := ToGo(item)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			result[k] = gv
		}
		return result, nil

	case starlark.Indexable:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case starlark.Iterable:
		var result []any
		iter := val.Iterate()
		defer iter.Done()
		var item starlark.Value
		for iter.Next(&item) {
			gv, err := ToGo(item)
			if err != nil {
				return nil, err
			}
			result = append(result, gv)
		}
		return result, nil

	case starlark.Callable:
		return nil, fmt.Errorf("cannot convert %s %q", val.Type(), val.Name())

	default:
		return val.String(), nil
	}
}

func dictKey(k starlark.Value) string {
	if s, ok := k.(starlark.String); ok {
		return string(s)
	}
	return k.String()
}
