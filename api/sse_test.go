package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/murshid-ai/murshid/internal/testutil"
)

func TestSSEWriter_Headers(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	if err != nil {
		t.Fatalf("newSSEWriter() error: %v", err)
	}
	if err := sse.send(map[string]string{"type": "text_chunk", "content": "hi"}); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if !rec.Flushed {
		t.Error("send should flush the response")
	}
}

func TestSSEWriter_FrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	sse.send(map[string]string{"type": "text_chunk", "content": "one"})
	sse.sendDone()

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Type != "message" {
			t.Errorf("event type = %q, want data-only frames", ev.Type)
		}
	}

	var payload struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(events[1].Data), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != sseTypeDone {
		t.Errorf("terminal payload type = %q, want done", payload.Type)
	}
}

func TestSSEWriter_ErrorEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	sse.sendError("model unavailable")

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	var payload struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(events[0].Data), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != sseTypeError || payload.Message != "model unavailable" {
		t.Errorf("payload = %+v", payload)
	}
}
