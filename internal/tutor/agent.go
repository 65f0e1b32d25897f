package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/tools"
)

// fallbackResponseMessage is returned when the model produces an empty
// response with no tool requests.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// StreamCallback receives each text chunk of a streamed answer.
type StreamCallback func(ctx context.Context, chunk string) error

// ExecutorConfig contains the parameters for an Executor.
type ExecutorConfig struct {
	Genkit      *genkit.Genkit
	Registry    *tools.Registry
	ModelName   string
	Temperature float64
	MaxTokens   int
	RateLimiter *rate.Limiter // optional
	Logger      log.Logger
}

func (cfg ExecutorConfig) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Executor runs one tool-enabled conversational turn. It asks the model for
// tool requests without executing them, resolves each request through the
// registry, then streams the final answer from a second model call.
type Executor struct {
	g           *genkit.Genkit
	registry    *tools.Registry
	modelName   string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	logger      log.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Executor{
		g:           cfg.Genkit,
		registry:    cfg.Registry,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     limiter,
		logger:      cfg.Logger,
	}, nil
}

// TurnInput is one turn's input to the executor.
type TurnInput struct {
	Query              string
	History            []Message
	SystemPrompt       string
	KnowledgeBaseReady bool
	WebSearchEnabled   bool
}

// Stream runs the turn and returns the complete answer text. Each chunk of
// the final answer is forwarded to cb as it is generated.
func (e *Executor) Stream(ctx context.Context, in TurnInput, cb StreamCallback) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	system := in.SystemPrompt + "\n\n**Current Session Status:**\n" +
		sessionStatusNotes(in.KnowledgeBaseReady, in.WebSearchEnabled)

	messages := toModelMessages(in.History)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(in.Query)))

	// First call: let the model decide on tools but return the requests
	// instead of executing them.
	opts := []ai.GenerateOption{
		ai.WithModelName(e.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithConfig(e.generationConfig()),
	}
	if refs := e.boundRefs(in.WebSearchEnabled); len(refs) > 0 {
		opts = append(opts,
			ai.WithTools(refs...),
			ai.WithReturnToolRequests(true),
		)
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return "", fmt.Errorf("agent model call: %w", err)
	}

	toolRequests := resp.ToolRequests()
	if len(toolRequests) == 0 {
		// Direct answer: re-invoke in streaming mode so the client always
		// receives a consistent streamed response.
		e.logger.Debug("no tool requests, streaming direct answer")
		return e.streamFinal(ctx, system, messages, cb)
	}

	messages = append(messages, resp.Message)
	for _, req := range toolRequests {
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil,
			ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: e.runTool(ctx, req, in.WebSearchEnabled),
			})))
	}

	return e.streamFinal(ctx, system, messages, cb)
}

// boundRefs returns the tools bound to the model call for this turn.
// web_search is withheld when the session has it disabled.
func (e *Executor) boundRefs(webSearch bool) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, e.registry.Len())
	for _, name := range e.registry.Names() {
		if name == tools.WebSearchName && !webSearch {
			continue
		}
		if tool, ok := e.registry.Lookup(name); ok {
			refs = append(refs, tool)
		}
	}
	return refs
}

// runTool executes one tool request. Unknown names, disabled web search, and
// tool failures become inline error outputs for the model to recover from;
// they never abort the turn.
func (e *Executor) runTool(ctx context.Context, req *ai.ToolRequest, webSearch bool) any {
	if req.Name == tools.WebSearchName && !webSearch {
		e.logger.Warn("model requested web_search while disabled")
		return "Error: Web search is disabled for this session."
	}

	tool, ok := e.registry.Lookup(req.Name)
	if !ok {
		e.logger.Warn("model requested unknown tool", "tool", req.Name)
		return fmt.Sprintf("Error: Tool '%s' not found.", req.Name)
	}

	e.logger.Info("executing tool", "tool", req.Name)
	output, err := tool.RunRaw(ctx, req.Input)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
		return fmt.Sprintf("Error: Tool '%s' failed: %v", req.Name, err)
	}
	return output
}

// streamFinal makes the answer-producing model call with streaming enabled.
func (e *Executor) streamFinal(ctx context.Context, system string, messages []*ai.Message, cb StreamCallback) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(e.modelName),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithConfig(e.generationConfig()),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return cb(ctx, text)
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return "", fmt.Errorf("streaming final answer: %w", err)
	}

	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		e.logger.Warn("model returned empty final answer")
		answer = fallbackResponseMessage
		if cb != nil {
			if err := cb(ctx, answer); err != nil {
				return "", err
			}
		}
	}
	return answer, nil
}

func (e *Executor) generationConfig() *ai.GenerationCommonConfig {
	cfg := &ai.GenerationCommonConfig{Temperature: e.temperature}
	if e.maxTokens > 0 {
		cfg.MaxOutputTokens = e.maxTokens
	}
	return cfg
}

// sessionStatusNotes renders the availability block appended to the system
// prompt each turn.
func sessionStatusNotes(kbReady, webSearch bool) string {
	var notes []string
	if kbReady {
		notes = append(notes, "- **Knowledge Base**: AVAILABLE. Prioritize the 'search_documents' tool for questions about uploaded documents.")
	} else {
		notes = append(notes, "- **Knowledge Base**: NOT AVAILABLE. Do not use the 'search_documents' tool.")
	}
	if webSearch {
		notes = append(notes, "- **Web Search**: ENABLED. You can use the 'web_search' tool for web searches.")
	} else {
		notes = append(notes, "- **Web Search**: DISABLED.")
	}
	return strings.Join(notes, "\n")
}

// toModelMessages converts stored history into model messages.
func toModelMessages(history []Message) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == RoleAssistant {
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		} else {
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		}
	}
	return messages
}
