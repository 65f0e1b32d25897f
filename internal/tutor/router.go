package tutor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
)

// Action is the router's classification of a query.
type Action string

const (
	// ActionUseTools routes the query to the tool-enabled agent executor.
	ActionUseTools Action = "use_llm_with_tools"

	// ActionGenerateImage routes the query to the image generation path.
	ActionGenerateImage Action = "generate_image"
)

const routerInstructions = `You are an intelligent router that determines which action to take based on user input.

ONLY respond with one of the following options:
1. "use_llm_with_tools" - Use this when the user is asking a question that can be answered with standard tools like knowledge base retrieval, web search, or conversation.
2. "generate_image" - Use this ONLY when the user explicitly asks to generate or create an image, diagram, chart, or visual representation.

For image generation requests, you MUST extract and return the following parameters:
- topic: The main subject of the image
- grade_level: Educational level (e.g., "elementary", "middle school", "high school")
- preferred_visual_type: Type of visual (e.g., "diagram", "chart", "infographic")
- subject: Academic subject (e.g., "biology", "physics")
- language: Language for text (default to "English" if not specified)
- instructions: Specific requirements for the image
- difficulty_flag: Set to "true" for advanced visuals, "false" for simpler ones (default to "false")

IMPORTANT: For image generation requests, return your decision as a valid JSON object with two keys:
1. "action": "generate_image"
2. "parameters": { all the extracted parameters as described above }

For regular queries that don't need image generation, simply respond with "use_llm_with_tools".`

// ImageParams carries the extracted parameters for an image generation
// request.
type ImageParams struct {
	Topic               string `json:"topic"`
	GradeLevel          string `json:"grade_level"`
	PreferredVisualType string `json:"preferred_visual_type"`
	Subject             string `json:"subject"`
	Language            string `json:"language"`
	Instructions        string `json:"instructions"`
	DifficultyFlag      string `json:"difficulty_flag"`
}

// Decision is the router's output for one query.
type Decision struct {
	Action Action
	Params ImageParams // populated only for ActionGenerateImage
}

// Field extraction patterns for the degraded non-JSON fallback path.
var (
	topicPattern      = regexp.MustCompile(`topic["\s:]+([^",\n]+)`)
	gradePattern      = regexp.MustCompile(`grade_level["\s:]+([^",\n]+)`)
	visualPattern     = regexp.MustCompile(`preferred_visual_type["\s:]+([^",\n]+)`)
	subjectPattern    = regexp.MustCompile(`subject["\s:]+([^",\n]+)`)
	languagePattern   = regexp.MustCompile(`language["\s:]+([^",\n]+)`)
	instrPattern      = regexp.MustCompile(`instructions["\s:]+([^",\n]+)`)
	difficultyPattern = regexp.MustCompile(`difficulty_flag["\s:]+([^",\n]+)`)
)

// Router classifies queries as standard tool-enabled turns or image
// generation requests.
type Router struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// NewRouter creates a Router for the given provider-qualified model.
func NewRouter(g *genkit.Genkit, model string, logger log.Logger) *Router {
	return &Router{g: g, model: model, logger: logger}
}

// Route classifies the query. It never returns an error: any model failure,
// malformed output, or incomplete extraction falls back to ActionUseTools.
func (r *Router) Route(ctx context.Context, query string) Decision {
	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.model),
		ai.WithSystem(routerInstructions),
		ai.WithPrompt(query),
	)
	if err != nil {
		r.logger.Warn("router model call failed, defaulting to tools", "error", err)
		return Decision{Action: ActionUseTools}
	}

	raw := stripCodeFence(resp.Text())
	r.logger.Debug("router response", "raw", raw)

	if decision, ok := parseJSONDecision(raw, query); ok {
		return decision
	}

	if strings.Contains(strings.ToLower(raw), string(ActionGenerateImage)) {
		if decision, ok := extractWithPatterns(raw, query); ok {
			r.logger.Warn("router output was not valid JSON, recovered via pattern extraction",
				"raw", raw)
			return decision
		}
	}

	return Decision{Action: ActionUseTools}
}

// parseJSONDecision is the primary path: a well-formed JSON object with
// action and parameters.
func parseJSONDecision(raw, query string) (Decision, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Decision{}, false
	}

	var parsed struct {
		Action     string      `json:"action"`
		Parameters ImageParams `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return Decision{}, false
	}
	if parsed.Action != string(ActionGenerateImage) {
		return Decision{}, false
	}

	params := parsed.Parameters
	applyDefaults(&params, query)
	return Decision{Action: ActionGenerateImage, Params: params}, true
}

// extractWithPatterns recovers parameters from malformed router output. All
// of topic, grade_level, preferred_visual_type and subject must be present;
// language, instructions and difficulty_flag fall back to defaults.
func extractWithPatterns(raw, query string) (Decision, bool) {
	params := ImageParams{
		Topic:               firstGroup(topicPattern, raw),
		GradeLevel:          firstGroup(gradePattern, raw),
		PreferredVisualType: firstGroup(visualPattern, raw),
		Subject:             firstGroup(subjectPattern, raw),
		Language:            firstGroup(languagePattern, raw),
		Instructions:        firstGroup(instrPattern, raw),
		DifficultyFlag:      firstGroup(difficultyPattern, raw),
	}
	applyDefaults(&params, query)

	if params.Topic == "" || params.GradeLevel == "" ||
		params.PreferredVisualType == "" || params.Subject == "" {
		return Decision{}, false
	}
	return Decision{Action: ActionGenerateImage, Params: params}, true
}

func applyDefaults(p *ImageParams, query string) {
	if p.Language == "" {
		p.Language = "English"
	}
	if p.DifficultyFlag == "" {
		p.DifficultyFlag = "false"
	}
	if p.Instructions == "" {
		p.Instructions = query
	}
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
