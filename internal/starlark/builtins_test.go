package starlark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, expr string) any {
	t.Helper()
	v, err := Result(context.Background(), "expr.star", "result = "+expr, "result", Predeclared(nil), Options{})
	require.NoError(t, err)
	got, err := ToGo(v)
	require.NoError(t, err)
	return got
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{expr: "sum([1, 2, 3])", want: int64(6)},
		{expr: "sum([1.5, 2])", want: 3.5},
		{expr: "sum([], 10)", want: int64(10)},
		{expr: "sum([1, None, 2])", want: int64(3)},
		{expr: "abs(-4)", want: int64(4)},
		{expr: "round(2.5)", want: int64(2)},
		{expr: "round(3.7)", want: int64(4)},
		{expr: "round(3.14159, 2)", want: 3.14},
		{expr: "round(7)", want: int64(7)},
		{expr: `json.encode({"a": [1, 2]})`, want: `{"a":[1,2]}`},
		{expr: `json.decode('{"k": "v"}')["k"]`, want: "v"},
		{expr: "math.floor(2.7)", want: int64(2)},
		{expr: "sorted([3, 1, 2], reverse=True)", want: []any{int64(3), int64(2), int64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, tt.expr))
		})
	}
}

func TestBuiltins_Errors(t *testing.T) {
	for _, expr := range []string{`sum(["a", 1])`, `round("x")`, `sum(5)`} {
		t.Run(expr, func(t *testing.T) {
			_, err := Result(context.Background(), "expr.star", "result = "+expr, "result", Predeclared(nil), Options{})
			assert.Error(t, err)
		})
	}
}
