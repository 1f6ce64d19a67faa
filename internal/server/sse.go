package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/leapstack-labs/dataexplorer/pkg/core"
)

// eventStream writes events as server-sent event frames of the form
// "data: <json>\n\n", flushing after each one.
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	es := &eventStream{w: w, rc: http.NewResponseController(w)}
	if err := es.rc.Flush(); err != nil {
		return nil, fmt.Errorf("flush headers: %w", err)
	}
	return es, nil
}

// Emit implements stream.Sink.
func (es *eventStream) Emit(ctx context.Context, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	if _, err := fmt.Fprintf(es.w, "data: %s\n\n", b); err != nil {
		return err
	}
	return es.rc.Flush()
}
