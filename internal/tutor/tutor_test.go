package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/testutil"
	"github.com/murshid-ai/murshid/internal/tools"
	"github.com/murshid-ai/murshid/internal/vectorstore"
)

// nopDB satisfies vectorstore.Querier for tests that never touch storage.
type nopDB struct{}

func (nopDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (nopDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (nopDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// emptyRows is a pgx.Rows over zero rows.
type emptyRows struct{}

func (emptyRows) Close()                                       {}
func (emptyRows) Err() error                                   { return nil }
func (emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (emptyRows) Next() bool                                   { return false }
func (emptyRows) Scan(...any) error                            { return nil }
func (emptyRows) Values() ([]any, error)                       { return nil, nil }
func (emptyRows) RawValues() [][]byte                          { return nil }
func (emptyRows) Conn() *pgx.Conn                              { return nil }

// listDB answers every query with zero rows, enough for the ingestion and
// retrieval plumbing to run.
type listDB struct{ nopDB }

func (listDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return emptyRows{}, nil
}

type fakeImageGen struct {
	b64     string
	err     error
	prompts []string
}

func (f *fakeImageGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.b64, f.err
}

func newTestTutor(t *testing.T, mock *testutil.MockLLM, imageGen ImageGenerator) *Tutor {
	return newTestTutorWithDB(t, mock, imageGen, nopDB{})
}

func newTestTutorWithDB(t *testing.T, mock *testutil.MockLLM, imageGen ImageGenerator, db vectorstore.Querier) *Tutor {
	t.Helper()
	g := genkit.Init(context.Background())
	mock.RegisterModel(g)
	embedder := testutil.NewMockEmbedder(vectorstore.VectorDimension).RegisterEmbedder(g)

	manager, err := vectorstore.NewManager(vectorstore.Config{
		DB:         db,
		Embedder:   embedder,
		Collection: vectorstore.CollectionName(time.Now()),
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	if err := manager.InitializeCollection(context.Background()); err != nil {
		t.Fatalf("InitializeCollection() error: %v", err)
	}

	tut, err := New(Config{
		Genkit:     g,
		Manager:    manager,
		Registry:   tools.NewRegistry(tools.DefineSearchDocuments(g, log.NewNop())),
		ImageGen:   imageGen,
		ModelName:  "mock/tutor-model",
		RetrievalK: 5,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return tut
}

func collectEvents(events *[]Event) StreamFunc {
	return func(_ context.Context, ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestChat_FillerPassthrough(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddSystemResponse("intelligent router", "thanks", "use_llm_with_tools")
	mock.AddSystemResponse("ai tutor", "thanks", "You're welcome! Keep the questions coming.")
	tut := newTestTutor(t, mock, nil)

	var events []Event
	err := tut.Chat(context.Background(), ChatRequest{Query: "thanks"}, collectEvents(&events))
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	// The filler must bypass the rewriter model call entirely.
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "rephrase the follow-up question") {
			t.Error("filler query should not reach the rewrite model")
		}
	}

	history := tut.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Content != "thanks" || history[1].Role != RoleAssistant {
		t.Errorf("history = %+v", history)
	}
}

func TestChat_FirstTurnUsesGreetingPrompt(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("rephrase the follow-up question", "gravity", "Explain gravity.")
	mock.AddSystemResponse("ai tutor", "gravity", "Gravity pulls objects together.")
	tut := newTestTutor(t, mock, nil)

	var events []Event
	if err := tut.Chat(context.Background(), ChatRequest{
		Query:       "explain gravity",
		ContextData: "Name: Amira\nGrade: 8",
	}, collectEvents(&events)); err != nil {
		t.Fatal(err)
	}

	var agentSystems []string
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "AI Tutor") {
			agentSystems = append(agentSystems, call.System)
		}
	}
	if len(agentSystems) == 0 {
		t.Fatal("no agent model calls recorded")
	}
	first := agentSystems[0]
	if !strings.Contains(first, "First Message Only") {
		t.Error("first turn should use the greeting prompt variant")
	}
	if !strings.Contains(first, "Name: Amira") {
		t.Error("context data missing from the system prompt")
	}
	if !strings.Contains(first, "Knowledge Base**: NOT AVAILABLE") {
		t.Error("session status notes missing from the system prompt")
	}

	// Second turn switches to the follow-up variant.
	mock.Reset()
	if err := tut.Chat(context.Background(), ChatRequest{Query: "tell me more about gravity"},
		collectEvents(&events)); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Get Straight to the Point") {
			found = true
		}
	}
	if !found {
		t.Error("follow-up turn should use the follow-up prompt variant")
	}
}

func TestChat_ImageResponseExcludedFromHistory(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("intelligent router", "diagram",
		`{"action": "generate_image", "parameters": {"topic": "the water cycle", "grade_level": "middle school", "preferred_visual_type": "diagram", "subject": "earth science"}}`)
	gen := &fakeImageGen{b64: "aW1hZ2VkYXRh"}
	tut := newTestTutor(t, mock, gen)

	var events []Event
	err := tut.Chat(context.Background(),
		ChatRequest{Query: "draw a diagram of the water cycle"}, collectEvents(&events))
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %+v, want notice + image", events)
	}
	if events[0].Type != EventTextChunk || events[0].Content != GeneratingImageNotice {
		t.Errorf("first event = %+v, want the generating notice", events[0])
	}
	if events[1].Type != EventImageResponse || events[1].Content != "aW1hZ2VkYXRh" {
		t.Errorf("second event = %+v, want the image payload", events[1])
	}

	if history := tut.History(); len(history) != 0 {
		t.Errorf("image turns must be excluded from history, got %+v", history)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "the water cycle") {
		t.Errorf("generation prompts = %v", gen.prompts)
	}
}

func TestChat_ImageFailureDegradesToNotice(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("intelligent router", "diagram",
		`{"action": "generate_image", "parameters": {"topic": "cells", "grade_level": "high school", "preferred_visual_type": "diagram", "subject": "biology"}}`)
	tut := newTestTutor(t, mock, &fakeImageGen{err: errors.New("quota exhausted")})

	var events []Event
	err := tut.Chat(context.Background(),
		ChatRequest{Query: "draw a diagram of a cell"}, collectEvents(&events))
	if err != nil {
		t.Fatalf("image failure must not fail the turn: %v", err)
	}

	last := events[len(events)-1]
	if last.Type != EventTextChunk || last.Content != ImageFailedNotice {
		t.Errorf("last event = %+v, want the failure notice", last)
	}

	history := tut.History()
	if len(history) != 2 || history[1].Content != ImageFailedNotice {
		t.Errorf("failed image turn should be recorded normally, got %+v", history)
	}
}

func TestChat_VisualFollowUpRoutesToImage(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	// Rewrite rules: the diagram follow-up must match before the generic one.
	mock.AddSystemResponse("rephrase the follow-up question", "diagram",
		"Generate a diagram that explains the water cycle.")
	mock.AddSystemResponse("rephrase the follow-up question", "water cycle",
		"What is the water cycle?")
	mock.AddSystemResponse("ai tutor", "water cycle",
		"The water cycle moves water through evaporation, condensation, and precipitation.")
	mock.AddSystemResponse("intelligent router", "generate a diagram",
		`{"action": "generate_image", "parameters": {"topic": "the water cycle", "grade_level": "middle school", "preferred_visual_type": "diagram", "subject": "earth science"}}`)
	gen := &fakeImageGen{b64: "ZGlhZ3JhbQ=="}
	tut := newTestTutor(t, mock, gen)

	ctx := context.Background()
	var events []Event
	if err := tut.Chat(ctx, ChatRequest{Query: "What is the water cycle?"},
		collectEvents(&events)); err != nil {
		t.Fatal(err)
	}
	if len(tut.History()) != 2 {
		t.Fatalf("first turn should be recorded, history = %+v", tut.History())
	}

	events = nil
	if err := tut.Chat(ctx, ChatRequest{Query: "can you explain it with a diagram?"},
		collectEvents(&events)); err != nil {
		t.Fatal(err)
	}

	var gotImage bool
	for _, ev := range events {
		if ev.Type == EventImageResponse {
			gotImage = true
		}
	}
	if !gotImage {
		t.Errorf("visual follow-up should produce an image event, got %+v", events)
	}
}

func TestChat_EmptyQuery(t *testing.T) {
	tut := newTestTutor(t, testutil.NewMockLLM("x"), nil)
	if err := tut.Chat(context.Background(), ChatRequest{}, collectEvents(&[]Event{})); err == nil {
		t.Fatal("empty query should error")
	}
}

func TestClearKnowledgeBase_RestoresFreshState(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("rephrase the follow-up question", "osmosis", "What is osmosis?")
	mock.AddSystemToolResponse("ai tutor", "osmosis", []*ai.ToolRequest{
		{Name: tools.SearchDocumentsName, Input: map[string]any{"query": "osmosis"}},
	}, "")
	mock.AddSystemResponse("ai tutor", "osmosis", "Water moves across the membrane.")
	tut := newTestTutorWithDB(t, mock, nil, listDB{})

	ctx := context.Background()
	if err := tut.Ingest(ctx, []vectorstore.Document{
		{Content: "Osmosis moves water across membranes.", Source: "notes.txt", Type: "text"},
	}); err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if !tut.KnowledgeBaseReady() {
		t.Fatal("knowledge base should be ready after ingestion")
	}

	if err := tut.ClearKnowledgeBase(ctx); err != nil {
		t.Fatalf("ClearKnowledgeBase() error: %v", err)
	}
	if tut.KnowledgeBaseReady() {
		t.Error("cleared knowledge base should not report ready")
	}

	var events []Event
	if err := tut.Chat(ctx, ChatRequest{Query: "what is osmosis?"},
		collectEvents(&events)); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	// The turn after clearing must behave like a never-ingested session:
	// search_documents yields the no-knowledge-base notice, never old rows.
	var outputs []string
	for _, call := range mock.Calls() {
		outputs = append(outputs, call.ToolResponses...)
	}
	if len(outputs) == 0 {
		t.Fatal("the turn should have executed search_documents")
	}
	for _, out := range outputs {
		if out != tools.NoKnowledgeBaseMessage {
			t.Errorf("tool output = %q, want the no-knowledge-base notice", out)
		}
	}

	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Knowledge Base**: NOT AVAILABLE") {
			found = true
		}
	}
	if !found {
		t.Error("cleared session should advertise no knowledge base")
	}
}

func TestKnowledgeBaseReady_InitiallyFalse(t *testing.T) {
	tut := newTestTutor(t, testutil.NewMockLLM("x"), nil)
	if tut.KnowledgeBaseReady() {
		t.Error("fresh session should have no knowledge base")
	}
}

func TestSetWebSearch(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("ai tutor", "hello", "Hi!")
	tut := newTestTutor(t, mock, nil)
	tut.SetWebSearch(true)

	var events []Event
	if err := tut.Chat(context.Background(), ChatRequest{Query: "hello"},
		collectEvents(&events)); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Web Search**: ENABLED") {
			found = true
		}
	}
	if !found {
		t.Error("enabled web search should appear in the session status notes")
	}
}
