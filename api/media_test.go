package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/murshid-ai/murshid/internal/media"
	"github.com/murshid-ai/murshid/internal/testutil"
	"github.com/murshid-ai/murshid/internal/tools"
)

type stubAssessments struct {
	content string
	err     error
	got     media.AssessmentRequest
}

func (s *stubAssessments) Generate(_ context.Context, req media.AssessmentRequest) (string, error) {
	s.got = req
	return s.content, s.err
}

type stubTeaching struct {
	content string
	err     error
}

func (s *stubTeaching) Generate(context.Context, media.TeachingRequest) (string, error) {
	return s.content, s.err
}

type stubSlides struct {
	result *media.PresentationResult
	err    error
}

func (s *stubSlides) Generate(context.Context, media.PresentationRequest) (*media.PresentationResult, error) {
	return s.result, s.err
}

type stubImages struct {
	b64     string
	err     error
	prompts []string
}

func (s *stubImages) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.b64, s.err
}

type stubComics struct {
	events []media.ComicEvent
	err    error
}

func (s *stubComics) Stream(ctx context.Context, _ media.ComicsRequest, emit media.ComicEmitFunc) error {
	for _, ev := range s.events {
		if err := emit(ctx, ev); err != nil {
			return err
		}
	}
	return s.err
}

type stubSearcher struct {
	answer *tools.Answer
	err    error
}

func (s *stubSearcher) Search(context.Context, string) (*tools.Answer, error) {
	return s.answer, s.err
}

func TestAssessmentEndpoint(t *testing.T) {
	gen := &stubAssessments{content: "1. What is 2+2?\n---\n**Solutions**\n1. 4"}
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Assessments = gen
	})

	resp := postJSON(t, ts.URL+"/api/assessment", `{
		"subject": "math",
		"topic": "addition",
		"grade_level": "3",
		"number_of_questions": 1
	}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out["assessment"], "**Solutions**") {
		t.Errorf("assessment = %q", out["assessment"])
	}
	if gen.got.Topic != "addition" {
		t.Errorf("request topic = %q, want addition", gen.got.Topic)
	}
}

func TestAssessmentEndpoint_DistributionMismatch(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Assessments = &stubAssessments{err: media.ErrDistributionMismatch}
	})

	resp := postJSON(t, ts.URL+"/api/assessment", `{"topic": "x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTeachingContentEndpoint(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Teaching = &stubTeaching{content: "# Lesson Plan: Fractions"}
	})

	resp := postJSON(t, ts.URL+"/api/teaching-content",
		`{"content_type": "lesson plan", "lesson_topic": "fractions"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["generated_content"] != "# Lesson Plan: Fractions" {
		t.Errorf("generated_content = %q", out["generated_content"])
	}
}

func TestTeachingContentEndpoint_InvalidType(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Teaching = &stubTeaching{err: media.ErrInvalidContentType}
	})

	resp := postJSON(t, ts.URL+"/api/teaching-content", `{"content_type": "hologram"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPresentationEndpoint(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Slides = &stubSlides{result: &media.PresentationResult{
			TaskID:     "task-9",
			TaskStatus: media.TaskStatusSuccess,
			URL:        "https://slides.example/deck.pptx",
		}}
	})

	resp := postJSON(t, ts.URL+"/api/presentation",
		`{"plain_text": "photosynthesis", "length": 5}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Presentation media.PresentationResult `json:"presentation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Presentation.URL != "https://slides.example/deck.pptx" {
		t.Errorf("presentation = %+v", out.Presentation)
	}
}

func TestPresentationEndpoint_Failure(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Slides = &stubSlides{err: errors.New("render farm on fire")}
	})

	resp := postJSON(t, ts.URL+"/api/presentation", `{"plain_text": "x"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestImageEndpoint(t *testing.T) {
	gen := &stubImages{b64: "aW1hZ2U="}
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Images = gen
	})

	resp := postJSON(t, ts.URL+"/api/image", `{
		"topic": "the water cycle",
		"grade_level": "middle school",
		"preferred_visual_type": "diagram",
		"subject": "earth science"
	}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["image_url"] != "data:image/png;base64,aW1hZ2U=" {
		t.Errorf("image_url = %q", out["image_url"])
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "the water cycle") {
		t.Errorf("prompts = %v", gen.prompts)
	}
}

func TestImageEndpoint_MissingTopic(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Images = &stubImages{b64: "x"}
	})

	resp := postJSON(t, ts.URL+"/api/image", `{"subject": "math"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Searcher = &stubSearcher{answer: &tools.Answer{
			Text:      "Khan Academy has a unit on cells.",
			Citations: []tools.Citation{{URL: "https://khanacademy.org/cells"}},
		}}
	})

	resp := postJSON(t, ts.URL+"/api/web-search", `{
		"topic": "cell biology",
		"grade_level": "9",
		"subject": "biology",
		"content_type": "videos"
	}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out["query"], "cell biology") {
		t.Errorf("query = %q", out["query"])
	}
	if !strings.Contains(out["content"], "Khan Academy") {
		t.Errorf("content = %q", out["content"])
	}
}

func TestComicsEndpoint_StreamsEvents(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Comics = &stubComics{events: []media.ComicEvent{
			{Type: media.ComicEventStoryPrompts, Content: "Once upon a time..."},
			{Type: media.ComicEventPanelPrompt, Index: 1, Prompt: "A curious robot"},
			{Type: media.ComicEventPanelImage, Index: 1, URL: "data:image/png;base64,cGFuZWw="},
			{Type: media.ComicEventDone},
		}}
	})

	resp := postJSON(t, ts.URL+"/api/comics",
		`{"instructions": "a robot learns fractions", "num_panels": 1}`)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readSSE(t, resp)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	var first media.ComicEvent
	if err := json.Unmarshal([]byte(events[0].Data), &first); err != nil {
		t.Fatal(err)
	}
	if first.Type != media.ComicEventStoryPrompts || first.Content == "" {
		t.Errorf("first event = %+v", first)
	}

	var last media.ComicEvent
	if err := json.Unmarshal([]byte(events[len(events)-1].Data), &last); err != nil {
		t.Fatal(err)
	}
	if last.Type != media.ComicEventDone {
		t.Errorf("last event = %+v, want done", last)
	}
}

func TestComicsEndpoint_ErrorBecomesEvent(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), func(cfg *Config) {
		cfg.Comics = &stubComics{err: errors.New("story model unavailable")}
	})

	resp := postJSON(t, ts.URL+"/api/comics", `{"instructions": "x", "num_panels": 1}`)
	events := decodeChatEvents(t, readSSE(t, resp))
	if len(events) != 1 || events[0].Type != "error" {
		t.Fatalf("events = %+v, want a single error event", events)
	}
	if !strings.Contains(events[0].Message, "story model unavailable") {
		t.Errorf("error message = %q", events[0].Message)
	}
}
