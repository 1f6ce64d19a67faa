package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dataexplorer/internal/testutil"
	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  core.ChartIntent
	}{
		{
			name:  "library and chart",
			reply: "LIBRARY: plotly\nCHART: bar chart",
			want:  core.ChartIntent{WantsChart: true, Library: "plotly", ChartType: "bar chart"},
		},
		{
			name:  "case-insensitive library",
			reply: "Sure.\nLIBRARY: ChartJS\nCHART: line graph\n",
			want:  core.ChartIntent{WantsChart: true, Library: "chartjs", ChartType: "line graph"},
		},
		{
			name:  "markdown decoration",
			reply: "**LIBRARY:** [matplotlib]\n**CHART:** \"scatter plot\"",
			want:  core.ChartIntent{WantsChart: true, Library: "matplotlib", ChartType: "scatter plot"},
		},
		{
			name:  "none",
			reply: "LIBRARY: NONE\nCHART: NONE",
			want:  core.NoChart(),
		},
		{
			name:  "no good options",
			reply: "LIBRARY: NONE\nCHART: No good options",
			want:  core.ChartIntent{Library: core.LibraryNone, ChartType: core.ChartNoGoodOptions},
		},
		{
			name:  "missing library label",
			reply: "CHART: bar chart",
			want:  core.ChartIntent{Library: core.LibraryNone, ChartType: "bar chart"},
		},
		{
			name:  "unknown library",
			reply: "LIBRARY: d3\nCHART: bar chart",
			want:  core.ChartIntent{Library: core.LibraryNone, ChartType: "bar chart"},
		},
		{
			name:  "empty reply",
			reply: "",
			want:  core.NoChart(),
		},
		{
			name:  "first labelled line wins",
			reply: "LIBRARY: seaborn\nLIBRARY: plotly\nCHART: heatmap",
			want:  core.ChartIntent{WantsChart: true, Library: "seaborn", ChartType: "heatmap"},
		},
		{
			name:  "dotless i before label",
			reply: "ı LIBRARY: plotly\nCHART: bar chart",
			want:  core.ChartIntent{WantsChart: true, Library: "plotly", ChartType: "bar chart"},
		},
		{
			name:  "runes that grow when upper-cased",
			reply: "ɐɐɐɐɐɐɐɐɐɐLIBRARY: plotly\nſ CHART: pie chart",
			want:  core.ChartIntent{WantsChart: true, Library: "plotly", ChartType: "pie chart"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.reply, DefaultLibraries))
		})
	}
}

func TestClassify_LineGrammar(t *testing.T) {
	fake := testutil.NewCompleter().On("Available chart libraries", "LIBRARY: plotly\nCHART: bar chart")
	c := New(fake, nil, testutil.NewTestLogger(t))

	got := c.Classify(context.Background(), "show me average heart rate by day as a bar chart")
	assert.Equal(t, core.ChartIntent{WantsChart: true, Library: "plotly", ChartType: "bar chart"}, got)

	prompts := fake.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "plotly, chartjs, matplotlib, seaborn")
	assert.Contains(t, prompts[0], "average heart rate")
}

func TestClassify_ProviderFailureIsNeutral(t *testing.T) {
	fake := testutil.NewCompleter().OnError("Available chart libraries", errors.New("timeout"))
	c := New(fake, nil, nil)

	assert.Equal(t, core.NoChart(), c.Classify(context.Background(), "plot it"))
}

func TestClassify_ConfiguredLibraries(t *testing.T) {
	fake := testutil.NewCompleter().On("Available chart libraries: plotly", "LIBRARY: seaborn\nCHART: bar chart")
	c := New(fake, []string{"plotly"}, nil)

	got := c.Classify(context.Background(), "bar chart please")
	assert.False(t, got.WantsChart, "seaborn is not configured")
}

type structuredFake struct {
	json    string
	jsonErr error
	text    string
	calls   int
}

func (s *structuredFake) Complete(context.Context, string) (string, error) {
	s.calls++
	return s.text, nil
}

func (s *structuredFake) CompleteJSON(_ context.Context, _, name string, schema map[string]any) (string, error) {
	s.calls++
	if name != "chart_intent" || schema["type"] != "object" {
		return "", errors.New("unexpected schema")
	}
	return s.json, s.jsonErr
}

func TestClassify_Structured(t *testing.T) {
	fake := &structuredFake{json: `{"library":"Plotly","chart":"pie chart"}`}
	c := New(fake, nil, nil)

	got := c.Classify(context.Background(), "pie chart of wards")
	assert.Equal(t, core.ChartIntent{WantsChart: true, Library: "plotly", ChartType: "pie chart"}, got)
	assert.Equal(t, 1, fake.calls)
}

func TestClassify_StructuredFallsBackToLines(t *testing.T) {
	fake := &structuredFake{jsonErr: errors.New("unsupported"), text: "LIBRARY: chartjs\nCHART: line chart"}
	c := New(fake, nil, nil)

	got := c.Classify(context.Background(), "trend line")
	assert.Equal(t, "chartjs", got.Library)
	assert.Equal(t, 2, fake.calls)
}
