// Package intent decides whether a question asks for a chart and, if so,
// which library and chart type to use.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
	"github.com/leapstack-labs/dataexplorer/pkg/llm"
)

// DefaultLibraries is the library set offered when none is configured.
var DefaultLibraries = []string{"plotly", "chartjs", "matplotlib", "seaborn"}

// Classifier asks a text-completion provider for a chart intent.
type Classifier struct {
	llm       llm.Completer
	libraries []string
	logger    *slog.Logger
}

// New creates a Classifier. An empty library list uses DefaultLibraries.
func New(completer llm.Completer, libraries []string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(libraries) == 0 {
		libraries = DefaultLibraries
	}
	return &Classifier{llm: completer, libraries: libraries, logger: logger}
}

// Libraries returns the configured library set.
func (c *Classifier) Libraries() []string {
	return c.libraries
}

// Classify never fails: any provider or parsing problem yields core.NoChart().
func (c *Classifier) Classify(ctx context.Context, message string) core.ChartIntent {
	prompt := c.Prompt(message)

	if sc, ok := structured(c.llm); ok {
		out, err := sc.CompleteJSON(ctx, prompt, "chart_intent", replySchema)
		if err == nil {
			var r reply
			if err := json.Unmarshal([]byte(out), &r); err == nil {
				return Normalize(r.Library, r.Chart, c.libraries)
			}
			c.logger.Debug("structured intent reply unparsable, using line grammar", slog.String("reply", out))
		} else {
			c.logger.Debug("structured intent request failed, using line grammar", slog.String("error", err.Error()))
		}
	}

	out, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		c.logger.Warn("chart intent classification failed", slog.String("error", err.Error()))
		return core.NoChart()
	}
	intent := Parse(out, c.libraries)
	c.logger.Debug("chart intent",
		slog.Bool("wants_chart", intent.WantsChart),
		slog.String("library", intent.Library),
		slog.String("chart", intent.ChartType))
	return intent
}

// Prompt renders the classification prompt.
func (c *Classifier) Prompt(message string) string {
	return fmt.Sprintf(`Analyze the following user message to determine if they are requesting any kind of chart, graph, or visualization.

User Message: %q

Available chart libraries: %s

Instructions:
1. If the user is requesting a chart, graph, plot, or any visualization, choose the most appropriate library from the available options
2. Also specify what type of chart would be best (e.g., "bar chart", "line graph", "scatter plot", "pie chart", etc.)
3. If no visualization is requested, return "NONE" for both library and chart
4. If a visualization is requested but none of the available libraries are suitable, return "NONE" for library and "No good options" for chart

Respond in this exact format:
LIBRARY: [library name or NONE]
CHART: [chart type or NONE or "No good options"]
`, message, strings.Join(c.libraries, ", "))
}

type reply struct {
	Library string `json:"library" jsonschema:"description=One of the available chart libraries or NONE"`
	Chart   string `json:"chart" jsonschema:"description=Chart type such as bar chart or NONE or No good options"`
}

var replySchema = llm.GenerateSchema[reply]()

// structured reports whether c can produce schema-constrained replies.
func structured(c llm.Completer) (llm.StructuredCompleter, bool) {
	sc, ok := c.(llm.StructuredCompleter)
	if !ok {
		return nil, false
	}
	if s, ok := c.(interface{ SupportsStructured() bool }); ok && !s.SupportsStructured() {
		return nil, false
	}
	return sc, true
}

// Parse reads a "LIBRARY: x" / "CHART: y" reply. The first line carrying
// each label wins; a missing label means none.
func Parse(reply string, libraries []string) core.ChartIntent {
	return Normalize(labelValue(reply, libraryLabel), labelValue(reply, chartLabel), libraries)
}

// Normalize maps raw library and chart values onto a ChartIntent. Unknown
// libraries become none.
func Normalize(library, chart string, libraries []string) core.ChartIntent {
	library = clean(library)
	chart = clean(chart)

	lib := core.LibraryNone
	for _, l := range libraries {
		if strings.EqualFold(l, library) {
			lib = l
			break
		}
	}

	switch {
	case chart == "" || strings.EqualFold(chart, "none"):
		chart = core.ChartNone
	case strings.EqualFold(chart, core.ChartNoGoodOptions):
		chart = core.ChartNoGoodOptions
	}

	return core.ChartIntent{
		WantsChart: lib != core.LibraryNone,
		Library:    lib,
		ChartType:  chart,
	}
}

var (
	libraryLabel = regexp.MustCompile(`(?i)LIBRARY:(.*)`)
	chartLabel   = regexp.MustCompile(`(?i)CHART:(.*)`)
)

// labelValue returns the rest of the first line carrying label.
func labelValue(reply string, label *regexp.Regexp) string {
	if m := label.FindStringSubmatch(reply); m != nil {
		return m[1]
	}
	return ""
}

// clean strips whitespace and the decoration models like to add around
// values ("**plotly**", "[bar chart]", "\"No good options\"").
func clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), " \t*[]\"'`")
}
