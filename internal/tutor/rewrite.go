package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
)

// fillers are short conversational turns that bypass rewriting entirely.
// Matched after trimming and lower-casing.
var fillers = map[string]struct{}{
	"ok": {}, "okay": {}, "thanks": {}, "thank you": {}, "great": {},
	"good": {}, "cool": {}, "hello": {}, "hi": {}, "hey": {},
	"greetings": {}, "yo": {}, "sup": {}, "good morning": {},
	"good afternoon": {}, "good evening": {},
}

// historyWindow is how many trailing turns feed the rewrite prompt.
const historyWindow = 4

const rephraseInstructions = `Given a chat history and a follow-up question, rephrase the follow-up question into a clear, standalone instruction.

**Instructions:**
1.  **Handle Conversational Fillers First:** If the Follow-up Question is a simple, common conversational phrase (e.g., "okay", "great", "thanks"), your most important task is to return it **UNCHANGED**. This rule overrides all others.

2.  **Handle Visual Follow-ups:** If the Follow-up Question is a request for a visual representation (e.g., "explain with a diagram," "can you draw that?," "show me a chart", "generate an image"), you MUST combine it with the main topic from the Chat History to create a complete, actionable command for an image generator.
    - **Example 1:**
        - Chat History: User: "What is the water cycle?"
        - Follow-up Question: "Can you explain it with a diagram?"
        - Standalone Question: "Generate a diagram that explains the water cycle."
    - **Example 2:**
        - Chat History: AI: "Let's focus on helping you strengthen your understanding of linear equations in two variables..."
        - Follow-up Question: "generate an image"
        - Standalone Question: "Generate an image that explains linear equations in two variables for a 10th-grade student."

3.  **Handle Uploaded Files:** If the question is NOT a filler or a visual follow-up AND the Chat History contains a System Note listing uploaded files, you MUST rewrite the Follow-up Question to be specifically about those files, including the filename(s).
    - **Example for documents:**
        - System Note: The user has just uploaded 'homework_chapter_3.pdf'.
        - Follow-up Question: can you explain this?
        - Standalone Question: Can you explain the content of the document 'homework_chapter_3.pdf'?

4.  **General Rephrasing:** If the question is not covered by the rules above, use the chat history to create a clear, standalone question. If the original question is already perfectly standalone, return it as is.`

// Rewriter turns follow-up questions into standalone instructions using the
// recent chat history.
type Rewriter struct {
	g           *genkit.Genkit
	model       string
	temperature float64
	logger      log.Logger
}

// NewRewriter creates a Rewriter for the given provider-qualified model.
func NewRewriter(g *genkit.Genkit, model string, temperature float64, logger log.Logger) *Rewriter {
	return &Rewriter{g: g, model: model, temperature: temperature, logger: logger}
}

// IsFiller reports whether the query is a conversational filler that must
// pass through unchanged.
func IsFiller(query string) bool {
	_, ok := fillers[strings.ToLower(strings.TrimSpace(query))]
	return ok
}

// Rewrite returns the standalone form of query. Fillers return unchanged
// without a model call; everything else goes through one rewrite call fed
// with the trailing history window and any freshly uploaded filenames.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []Message, uploadedFiles []string) (string, error) {
	if IsFiller(query) {
		return query, nil
	}

	prompt := fmt.Sprintf("Chat History:\n%s\n\nFollow-up Question: %s\n\nStandalone Question:",
		buildHistoryContext(history, uploadedFiles), query)

	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.model),
		ai.WithSystem(rephraseInstructions),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: r.temperature}),
	)
	if err != nil {
		return "", fmt.Errorf("rewriting query: %w", err)
	}

	rewritten := strings.TrimSpace(resp.Text())
	if rewritten == "" {
		return query, nil
	}
	r.logger.Info("query rewritten", "from", query, "to", rewritten)
	return rewritten, nil
}

// buildHistoryContext renders the System Note for uploaded files followed by
// the last historyWindow turns.
func buildHistoryContext(history []Message, uploadedFiles []string) string {
	var sb strings.Builder
	if len(uploadedFiles) > 0 {
		sb.WriteString(fmt.Sprintf(
			"System Note: The user has just uploaded the following file(s): '%s'. The follow-up question likely refers to these files.\n\n",
			strings.Join(uploadedFiles, "', '")))
	}

	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	for i, msg := range history[start:] {
		if i > 0 {
			sb.WriteString("\n")
		}
		role := "User"
		if msg.Role == RoleAssistant {
			role = "AI"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}
