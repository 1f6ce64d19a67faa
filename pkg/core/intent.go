package core

// Sentinel values used by ChartIntent.
const (
	LibraryNone        = "none"
	ChartNone          = "none"
	ChartNoGoodOptions = "no good options"
)

// ChartIntent is the classified decision of whether and how to visualize a request.
type ChartIntent struct {
	WantsChart bool   `json:"wants_chart"`
	Library    string `json:"library"`
	ChartType  string `json:"chart_type"`
}

// NoChart is the neutral intent used whenever classification fails.
func NoChart() ChartIntent {
	return ChartIntent{Library: LibraryNone, ChartType: ChartNone}
}

// HasOptions reports whether a chart was requested and a usable chart type exists.
func (c ChartIntent) HasOptions() bool {
	return c.WantsChart && c.ChartType != ChartNoGoodOptions
}
