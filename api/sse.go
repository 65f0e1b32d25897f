package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// SSE event payloads carried in data-only frames. The JSON "type" field is
// authoritative; no SSE event: lines are written.
const (
	sseTypeDone  = "done"
	sseTypeError = "error"
)

// sseWriter streams data-only Server-Sent Events, flushing after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for SSE streaming.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable proxy buffering
	return &sseWriter{w: w, flusher: flusher}, nil
}

// send writes one event as "data: <json>\n\n" and flushes.
func (s *sseWriter) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding SSE event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// sendError emits a terminal error event; write failures are ignored, the
// stream is already broken.
func (s *sseWriter) sendError(message string) {
	s.send(map[string]string{"type": sseTypeError, "message": message})
}

// sendDone emits the terminal done event.
func (s *sseWriter) sendDone() {
	s.send(map[string]string{"type": sseTypeDone})
}
