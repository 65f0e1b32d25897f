package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic model responses for testing. It matches the
// last user message against registered patterns and returns the corresponding
// response, optionally with tool requests.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	calls     []MockCall
}

type mockRule struct {
	pattern       string            // substring match in user message, lower-cased
	systemPattern string            // optional substring match in system message, lower-cased
	response      string            // text response
	tools         []*ai.ToolRequest // tool calls to request (nil = text only)
	consumed      bool              // tool rules fire once, then fall through
}

func (r *mockRule) matches(userText, systemText string) bool {
	if r.consumed || !strings.Contains(userText, r.pattern) {
		return false
	}
	return r.systemPattern == "" || strings.Contains(systemText, r.systemPattern)
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage   string
	System        string
	Response      string
	ToolResponses []string // outputs of tool-role messages in the request
}

// NewMockLLM creates a mock model with the given fallback response, returned
// when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns are checked in
// registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// AddSystemResponse registers a response matched against both the system
// message and the user message. Useful when the same user text flows through
// several model roles (rewriter, router, agent) that differ only in their
// system prompts.
func (m *MockLLM) AddSystemResponse(systemPattern, userPattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:       strings.ToLower(userPattern),
		systemPattern: strings.ToLower(systemPattern),
		response:      response,
	})
}

// AddSystemToolResponse registers tool requests matched against both the
// system message and the user message.
func (m *MockLLM) AddSystemToolResponse(systemPattern, userPattern string, toolReqs []*ai.ToolRequest, textResponse string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:       strings.ToLower(userPattern),
		systemPattern: strings.ToLower(systemPattern),
		response:      textResponse,
		tools:         toolReqs,
	})
}

// AddToolResponse registers a pattern that triggers tool requests.
func (m *MockLLM) AddToolResponse(pattern string, tools []*ai.ToolRequest, textResponse string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: textResponse,
		tools:    tools,
	})
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls and re-arms consumed tool rules, keeping
// registered responses.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	for i := range m.responses {
		m.responses[i].consumed = false
	}
}

// RegisterModel registers the mock as a Genkit model named "mock/tutor-model".
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/tutor-model", &ai.ModelOptions{
		Label: "Mock Tutor Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText, systemText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser && userText == "" {
			userText = req.Messages[i].Text()
		}
		if req.Messages[i].Role == ai.RoleSystem && systemText == "" {
			systemText = req.Messages[i].Text()
		}
	}

	var toolResponses []string
	for _, msg := range req.Messages {
		if msg.Role != ai.RoleTool {
			continue
		}
		for _, part := range msg.Content {
			if part.ToolResponse != nil {
				toolResponses = append(toolResponses, fmt.Sprint(part.ToolResponse.Output))
			}
		}
	}

	m.mu.Lock()
	var matched *mockRule
	lowerUser := strings.ToLower(userText)
	lowerSystem := strings.ToLower(systemText)
	for i := range m.responses {
		if m.responses[i].matches(lowerUser, lowerSystem) {
			matched = &m.responses[i]
			break
		}
	}

	responseText := m.fallback
	if matched != nil {
		responseText = matched.response
		if len(matched.tools) > 0 {
			// A tool-requesting rule fires once so the follow-up call after
			// the tool loop gets a plain text answer.
			matched.consumed = true
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage:   userText,
		System:        systemText,
		Response:      responseText,
		ToolResponses: toolResponses,
	})
	m.mu.Unlock()

	if cb != nil {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		})
	}

	var parts []*ai.Part
	if matched != nil && len(matched.tools) > 0 {
		for _, tr := range matched.tools {
			parts = append(parts, &ai.Part{
				Kind:        ai.PartToolRequest,
				ToolRequest: tr,
			})
		}
	}
	parts = append(parts, ai.NewTextPart(responseText))

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: parts,
		},
	}, nil
}

// MockEmbedder provides deterministic embedding vectors for testing. By
// default vectors are derived from content via SHA-256; explicit mappings can
// be registered for precise similarity control.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
}

// NewMockEmbedder creates a mock embedder producing dim-wide vectors.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a content string.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// RegisterEmbedder registers the mock as a Genkit embedder named
// "mock/tutor-embedder".
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/tutor-embedder", &ai.EmbedderOptions{
		Label:      "Mock Tutor Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{
			Embedding: e.vectorFor(documentText(doc)),
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()
	return deterministicVector(content, e.dim)
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
