package stream

import (
	"fmt"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// Narration texts.
const (
	MsgCheckingVisualization = "Checking for visualization options..."
	MsgNoVisualization       = "No visualization requested."
	MsgNoSuitableOptions     = "Visualization requested but no suitable options available."
	MsgAnalyzingSchemas      = "Analyzing schemas to determine best dataset..."
	MsgRunningQuery          = "Running dynamically generated query"
	MsgRepairingQuery        = "Query failed, asking for a corrected query..."
	MsgBuildingChart         = "Converting the data and building the chart...."
	MsgComplete              = "Processing complete!"
)

// WorkingMessages are the acknowledgements one of which opens every stream.
var WorkingMessages = []string{
	"Give me a few minutes, I'm analyzing your request...",
	"Please hold on while I process your message...",
	"I'm working on your request, this will take just a moment...",
	"Analyzing your input, please wait a few seconds...",
	"Processing your message now, hang tight...",
	"I'm carefully reviewing your request, please be patient it may take a moment...",
	"Give me a moment to examine your message thoroughly...",
	"Working on your query, I'll have an answer shortly...",
	"Let me analyze this for you, it'll just take a minute...",
	"I'm processing your request, please wait while I work on it...",
}

// IntentMessage narrates a classified chart intent.
func IntentMessage(intent core.ChartIntent) string {
	switch {
	case intent.ChartType == core.ChartNoGoodOptions:
		return MsgNoSuitableOptions
	case intent.Library == core.LibraryNone || intent.Library == "":
		return MsgNoVisualization
	default:
		return fmt.Sprintf("I picked a chart type: %s using %s", intent.ChartType, intent.Library)
	}
}

// ErrorMessage formats the terminal error text.
func ErrorMessage(err error) string {
	return "Error: " + err.Error()
}
