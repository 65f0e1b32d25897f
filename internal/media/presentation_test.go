package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/murshid-ai/murshid/internal/log"
)

func newSlidesServer(t *testing.T, statuses []string, url string) *httptest.Server {
	t.Helper()
	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /presentation/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-key") != "test-key" {
			t.Errorf("missing API key header")
		}
		var req PresentationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding submit body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-123"})
	})
	mux.HandleFunc("GET /task_status/task-123", func(w http.ResponseWriter, r *http.Request) {
		i := int(polls.Add(1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		resp := slideTaskResponse{TaskID: "task-123", TaskStatus: statuses[i]}
		if statuses[i] == TaskStatusSuccess {
			resp.TaskResult.URL = url
		}
		if statuses[i] == TaskStatusFailure {
			resp.TaskResult.Error = "rendering crashed"
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSlidesClient(t *testing.T, baseURL string) *SlidesClient {
	t.Helper()
	client, err := NewSlidesClient(SlidesConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
		Logger:       log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSlidesClient() error: %v", err)
	}
	return client
}

func TestSlidesGenerate_PollsUntilSuccess(t *testing.T) {
	srv := newSlidesServer(t,
		[]string{TaskStatusPending, TaskStatusPending, TaskStatusSuccess},
		"https://slides.example/deck.pptx")
	client := newSlidesClient(t, srv.URL)

	result, err := client.Generate(context.Background(), PresentationRequest{
		PlainText: "Introduction to Machine Learning",
		Length:    10,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.TaskStatus != TaskStatusSuccess {
		t.Errorf("status = %q", result.TaskStatus)
	}
	if result.URL != "https://slides.example/deck.pptx" {
		t.Errorf("url = %q", result.URL)
	}
}

func TestSlidesGenerate_Failure(t *testing.T) {
	srv := newSlidesServer(t, []string{TaskStatusFailure}, "")
	client := newSlidesClient(t, srv.URL)

	_, err := client.Generate(context.Background(), PresentationRequest{
		PlainText: "Anything",
		Length:    5,
	})
	if !errors.Is(err, ErrSlideTaskFailed) {
		t.Fatalf("Generate() error = %v, want task failure", err)
	}
}

func TestSlidesGenerate_Timeout(t *testing.T) {
	srv := newSlidesServer(t, []string{TaskStatusPending}, "")
	client, err := NewSlidesClient(SlidesConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		PollTimeout:  20 * time.Millisecond,
		Logger:       log.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Generate(context.Background(), PresentationRequest{
		PlainText: "Anything",
		Length:    5,
	})
	if !errors.Is(err, ErrSlideTaskTimeout) {
		t.Fatalf("Generate() error = %v, want timeout", err)
	}
}

func TestSlidesGenerate_InvalidRequest(t *testing.T) {
	client := newSlidesClient(t, "http://unused.invalid")

	tests := []struct {
		name string
		req  PresentationRequest
	}{
		{"empty topic", PresentationRequest{Length: 10}},
		{"zero slides", PresentationRequest{PlainText: "x"}},
		{"too many slides", PresentationRequest{PlainText: "x", Length: 51}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Generate(context.Background(), tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewSlidesClient_NoKey(t *testing.T) {
	_, err := NewSlidesClient(SlidesConfig{Logger: log.NewNop()})
	if !errors.Is(err, ErrSlidesDisabled) {
		t.Fatalf("error = %v, want slides disabled", err)
	}
}
