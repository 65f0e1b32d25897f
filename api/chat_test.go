package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/murshid-ai/murshid/internal/testutil"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func readSSE(t *testing.T, resp *http.Response) []testutil.SSEEvent {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return testutil.ParseSSEEvents(t, string(body))
}

// chatEvent is the decoded JSON payload of one stream frame.
type chatEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Message string `json:"message"`
}

func decodeChatEvents(t *testing.T, events []testutil.SSEEvent) []chatEvent {
	t.Helper()
	decoded := make([]chatEvent, 0, len(events))
	for _, ev := range events {
		var ce chatEvent
		if err := json.Unmarshal([]byte(ev.Data), &ce); err != nil {
			t.Fatalf("invalid event payload %q: %v", ev.Data, err)
		}
		decoded = append(decoded, ce)
	}
	return decoded
}

func TestChat_StreamsAnswerAndDone(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("rephrase the follow-up question", "photosynthesis",
		"What is photosynthesis?")
	mock.AddSystemResponse("ai tutor", "photosynthesis",
		"Plants convert sunlight into chemical energy.")
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/chat",
		`{"session_id": "sess-1", "query": "what is photosynthesis?"}`)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := decodeChatEvents(t, readSSE(t, resp))
	if len(events) < 2 {
		t.Fatalf("events = %+v, want at least one chunk and done", events)
	}

	var text strings.Builder
	for _, ev := range events[:len(events)-1] {
		if ev.Type != "text_chunk" {
			t.Errorf("event type = %q, want text_chunk", ev.Type)
		}
		text.WriteString(ev.Content)
	}
	if !strings.Contains(text.String(), "chemical energy") {
		t.Errorf("streamed text = %q", text.String())
	}
	if last := events[len(events)-1]; last.Type != "done" {
		t.Errorf("last event = %+v, want done", last)
	}
}

func TestChat_SecondTurnReusesSession(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	// The "more" rule must come first so the follow-up beats the generic one.
	mock.AddSystemResponse("rephrase the follow-up question", "more", "Tell me more about gravity.")
	mock.AddSystemResponse("rephrase the follow-up question", "gravity", "Explain gravity.")
	mock.AddSystemResponse("ai tutor", "gravity", "Gravity pulls masses together.")
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/chat", `{"session_id": "sess-2", "query": "explain gravity"}`)
	readSSE(t, resp)

	resp = postJSON(t, ts.URL+"/api/chat", `{"session_id": "sess-2", "query": "tell me more"}`)
	readSSE(t, resp)

	// The follow-up rewrite must see the first turn's answer in its history,
	// which only happens when both requests land on the same session.
	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "rephrase the follow-up question") &&
			strings.Contains(call.UserMessage, "Gravity pulls masses together.") {
			found = true
		}
	}
	if !found {
		t.Error("second turn should carry the first turn's history into the rewrite")
	}
}

func TestChat_WebSearchDefaultsToEnabled(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("ai tutor", "hello", "Hi there!")
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/chat", `{"session_id": "sess-3", "query": "hello"}`)
	readSSE(t, resp)

	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Web Search**: ENABLED") {
			found = true
		}
	}
	if !found {
		t.Error("omitted web_search_enabled should default to enabled")
	}
}

func TestChat_StudentContextReachesPrompt(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("ai tutor", "hello", "Hello Amira!")
	ts := newTestServer(t, mock, nil)

	resp := postJSON(t, ts.URL+"/api/chat", `{
		"session_id": "sess-4",
		"query": "hello",
		"student_data": {
			"name": "Amira",
			"grade": "8",
			"learning_stats": {"completionRate": "72%"}
		}
	}`)
	readSSE(t, resp)

	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Name: Amira") &&
			strings.Contains(call.System, "Completion Rate: 72%") {
			found = true
		}
	}
	if !found {
		t.Error("student data should be rendered into the system prompt")
	}
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing session", `{"query": "hi"}`},
		{"missing query", `{"session_id": "s"}`},
		{"blank query", `{"session_id": "s", "query": "   "}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/chat", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
		})
	}
}
