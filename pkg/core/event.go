package core

import (
	"encoding/json"
	"fmt"
)

// Event kinds.
const (
	EventMessage = "message"
	EventGraph   = "graph"
	EventError   = "error"
)

// Event is one unit of the ordered, append-only narration/result sequence.
type Event struct {
	Kind    string
	Content string
	Message string
	Chart   *ChartArtifact
}

// MessageEvent builds a narration event.
func MessageEvent(content string) Event {
	return Event{Kind: EventMessage, Content: content}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}

// ChartEvent converts a chart artifact into an event. Error artifacts become
// error events.
func ChartEvent(a ChartArtifact) Event {
	if a.Kind == ArtifactError {
		return ErrorEvent(a.Message)
	}
	return Event{Kind: EventGraph, Chart: &a}
}

type messageWire struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type errorWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type graphWire struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	GraphType   string         `json:"graphType"`
	GraphData   map[string]any `json:"graphData"`
}

// MarshalJSON encodes the event in the stream wire format.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventMessage:
		return json.Marshal(messageWire{Type: EventMessage, Content: e.Content})
	case EventError:
		return json.Marshal(errorWire{Type: EventError, Message: e.Message})
	case EventGraph:
		if e.Chart == nil {
			return nil, fmt.Errorf("graph event without chart")
		}
		data := e.Chart.Payload
		if data == nil {
			data = map[string]any{}
		}
		return json.Marshal(graphWire{
			Type:        EventGraph,
			Description: e.Chart.Description,
			GraphType:   e.Chart.Format,
			GraphData:   data,
		})
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
