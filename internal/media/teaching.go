package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
)

// Content types accepted by the teaching content generator.
const (
	ContentLessonPlan   = "lesson plan"
	ContentWorksheet    = "worksheet"
	ContentPresentation = "presentation"
	ContentQuiz         = "quiz"
)

// ErrInvalidContentType indicates an unsupported teaching content type.
var ErrInvalidContentType = errors.New("invalid content type")

const teachingInstructions = `You are an expert instructional designer creating classroom-ready teaching materials. Produce complete, well-structured content that a teacher can use directly without further editing.

Guidelines:
- Structure the material with clear Markdown headings and sections.
- For a lesson plan: include learning objectives, required materials, a timed sequence of activities, differentiation notes, and a closing assessment idea.
- For a worksheet: include a short introduction, a progression of exercises from guided to independent, and space cues for written answers.
- For a presentation: produce a slide-by-slide outline with a title and 3-5 bullet points per slide.
- For a quiz: produce numbered questions with an answer key at the end.
- Match the depth, vocabulary, and pacing to the stated grade level.
- Write the entire output in the requested language.`

// TeachingRequest describes the teaching material to generate.
type TeachingRequest struct {
	ContentType            string   `json:"content_type"` // lesson plan, worksheet, presentation, quiz
	Subject                string   `json:"subject"`
	LessonTopic            string   `json:"lesson_topic"`
	Grade                  string   `json:"grade"`
	LearningObjective      string   `json:"learning_objective,omitempty"`
	EmotionalConsideration string   `json:"emotional_consideration,omitempty"`
	InstructionalDepth     string   `json:"instructional_depth,omitempty"` // basic, standard, advanced
	ContentVersion         string   `json:"content_version,omitempty"`     // simplified, standard, enriched
	WebSearchEnabled       bool     `json:"web_search_enabled,omitempty"`
	AdditionalAIOptions    []string `json:"additional_ai_options,omitempty"`
	Language               string   `json:"language,omitempty"`
}

func (r *TeachingRequest) validate() error {
	switch strings.ToLower(r.ContentType) {
	case ContentLessonPlan, ContentWorksheet, ContentPresentation, ContentQuiz:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidContentType, r.ContentType)
	}
	if strings.TrimSpace(r.LessonTopic) == "" {
		return errors.New("lesson topic is required")
	}
	if r.LearningObjective == "" {
		r.LearningObjective = "Not specified"
	}
	if r.InstructionalDepth == "" {
		r.InstructionalDepth = "standard"
	}
	if r.ContentVersion == "" {
		r.ContentVersion = "standard"
	}
	if r.Language == "" {
		r.Language = "English"
	}
	return nil
}

// TeachingConfig holds the dependencies for a TeachingGenerator.
type TeachingConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Searcher  Searcher // optional, enables web-enriched content
	Logger    log.Logger
}

func (c TeachingConfig) validate() error {
	if c.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if c.ModelName == "" {
		return errors.New("model name is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// TeachingGenerator produces lesson plans, worksheets, presentation
// outlines, and quizzes, optionally enriched with fresh web material.
type TeachingGenerator struct {
	g        *genkit.Genkit
	model    string
	searcher Searcher
	logger   log.Logger
}

// NewTeachingGenerator creates a TeachingGenerator.
func NewTeachingGenerator(cfg TeachingConfig) (*TeachingGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &TeachingGenerator{
		g:        cfg.Genkit,
		model:    cfg.ModelName,
		searcher: cfg.Searcher,
		logger:   cfg.Logger,
	}, nil
}

// Generate produces the requested teaching material. Web search failures
// degrade to generation without the enrichment context.
func (t *TeachingGenerator) Generate(ctx context.Context, req TeachingRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	prompt := teachingSchemaPrompt(req)
	if req.WebSearchEnabled && t.searcher != nil {
		if enrichment := t.searchContext(ctx, req); enrichment != "" {
			prompt += "\n\n**Up-to-date reference material (from web search):**\n" + enrichment
		}
	}

	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.model),
		ai.WithSystem(teachingInstructions),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating teaching content: %w", err)
	}
	content := resp.Text()
	if content == "" {
		return "", errors.New("teaching content generation returned empty content")
	}

	t.logger.Info("teaching content generated",
		"content_type", req.ContentType, "topic", req.LessonTopic, "length", len(content))
	return content, nil
}

func (t *TeachingGenerator) searchContext(ctx context.Context, req TeachingRequest) string {
	query := fmt.Sprintf("Current teaching resources and factual updates about %q for a grade %s %s class.",
		req.LessonTopic, req.Grade, req.Subject)
	answer, err := t.searcher.Search(ctx, query)
	if err != nil {
		t.logger.Warn("teaching content web enrichment failed",
			"topic", req.LessonTopic, "error", err)
		return ""
	}
	return answer.Text
}

func teachingSchemaPrompt(req TeachingRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a %s.\n\n", strings.ToLower(req.ContentType))
	fmt.Fprintf(&sb, "- **Subject:** %s\n", req.Subject)
	fmt.Fprintf(&sb, "- **Lesson Topic:** %s\n", req.LessonTopic)
	fmt.Fprintf(&sb, "- **Grade:** %s\n", req.Grade)
	fmt.Fprintf(&sb, "- **Learning Objective:** %s\n", req.LearningObjective)
	if req.EmotionalConsideration != "" && req.EmotionalConsideration != "None" {
		fmt.Fprintf(&sb, "- **Emotional Considerations:** %s\n", req.EmotionalConsideration)
	}
	fmt.Fprintf(&sb, "- **Instructional Depth:** %s\n", req.InstructionalDepth)
	fmt.Fprintf(&sb, "- **Content Version:** %s\n", req.ContentVersion)
	fmt.Fprintf(&sb, "- **Language:** %s\n", req.Language)
	for _, opt := range req.AdditionalAIOptions {
		switch strings.ToLower(opt) {
		case "adaptive difficulty":
			sb.WriteString("- Include tiered variants of the core activities for below-level, on-level, and above-level students.\n")
		case "include assessment":
			sb.WriteString("- Append a short formative assessment with an answer key.\n")
		case "multimedia suggestion":
			sb.WriteString("- Suggest relevant multimedia resources (videos, interactives, images) per section.\n")
		case "generate slides":
			sb.WriteString("- Append a slide-by-slide outline suitable for a slide deck.\n")
		}
	}
	return sb.String()
}
