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

// Comic stream event types, in emission order.
const (
	ComicEventStoryPrompts = "story_prompts"
	ComicEventPanelPrompt  = "panel_prompt"
	ComicEventPanelImage   = "panel_image"
	ComicEventDone         = "done"
)

// panelPromptMarker labels each panel's drawing prompt in the story output.
const panelPromptMarker = "Panel_Prompt:"

const comicsInstructions = `You are a comic writer creating short educational comic strips for school students. Given a topic, a grade level, and a panel count, write a light, funny story that teaches the topic accurately.

Output format, strictly:
- First, a one-paragraph story summary.
- Then one line per panel, each starting with exactly "Panel_Prompt:" followed by a complete, self-contained image generation prompt for that panel. Each prompt must describe the scene, the characters, their expressions, and any speech bubbles with their exact text in the requested language.
- Produce exactly the requested number of Panel_Prompt lines, in story order.
- Keep every panel appropriate for the stated grade level.`

var (
	// ErrNoStory indicates the story model returned nothing.
	ErrNoStory = errors.New("failed to generate story prompts")

	// ErrNoPanels indicates the story output carried no parseable panel
	// prompts.
	ErrNoPanels = errors.New("no panel prompts parsed")
)

// ComicsRequest describes the comic strip to generate.
type ComicsRequest struct {
	Instructions string `json:"instructions"` // educational story or topic
	GradeLevel   string `json:"grade_level"`
	NumPanels    int    `json:"num_panels"`
	Language     string `json:"language,omitempty"`
}

func (r *ComicsRequest) validate() error {
	if strings.TrimSpace(r.Instructions) == "" {
		return errors.New("instructions are required")
	}
	if r.NumPanels <= 0 || r.NumPanels > 20 {
		return fmt.Errorf("panel count %d out of range [1, 20]", r.NumPanels)
	}
	if r.Language == "" {
		r.Language = "English"
	}
	return nil
}

// ComicEvent is one element of the comic generation stream.
type ComicEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"` // story_prompts: full story text
	Index   int    `json:"index,omitempty"`   // 1-based panel number
	Prompt  string `json:"prompt,omitempty"`  // panel_prompt
	URL     string `json:"url,omitempty"`     // panel_image, empty on failure
}

// ComicEmitFunc receives comic stream events in order.
type ComicEmitFunc func(ctx context.Context, ev ComicEvent) error

// PanelRenderer renders one panel prompt to displayable image data.
// *ImageEngine satisfies it via Generate.
type PanelRenderer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ComicsConfig holds the dependencies for a ComicsGenerator.
type ComicsConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Renderer  PanelRenderer
	Logger    log.Logger
}

func (c ComicsConfig) validate() error {
	if c.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if c.ModelName == "" {
		return errors.New("model name is required")
	}
	if c.Renderer == nil {
		return errors.New("panel renderer is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// ComicsGenerator produces educational comic strips as a multi-stage
// stream: the full story first, then each panel's prompt and image.
type ComicsGenerator struct {
	g        *genkit.Genkit
	model    string
	renderer PanelRenderer
	logger   log.Logger
}

// NewComicsGenerator creates a ComicsGenerator.
func NewComicsGenerator(cfg ComicsConfig) (*ComicsGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ComicsGenerator{
		g:        cfg.Genkit,
		model:    cfg.ModelName,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
	}, nil
}

// Stream generates the comic and emits events through emit. A failed panel
// render emits an empty URL and the stream continues; story failures abort.
func (c *ComicsGenerator) Stream(ctx context.Context, req ComicsRequest, emit ComicEmitFunc) error {
	if err := req.validate(); err != nil {
		return err
	}

	story, err := c.storyPrompts(ctx, req)
	if err != nil {
		return err
	}
	if err := emit(ctx, ComicEvent{Type: ComicEventStoryPrompts, Content: story}); err != nil {
		return err
	}

	panels := ParsePanelPrompts(story)
	if len(panels) == 0 {
		return ErrNoPanels
	}
	if len(panels) > req.NumPanels {
		panels = panels[:req.NumPanels]
	}

	for i, prompt := range panels {
		index := i + 1
		if err := emit(ctx, ComicEvent{Type: ComicEventPanelPrompt, Index: index, Prompt: prompt}); err != nil {
			return err
		}

		url := ""
		b64, err := c.renderer.Generate(ctx, prompt)
		if err != nil {
			c.logger.Warn("panel render failed", "panel", index, "error", err)
		} else {
			url = DataURL(b64)
		}
		if err := emit(ctx, ComicEvent{Type: ComicEventPanelImage, Index: index, URL: url}); err != nil {
			return err
		}
	}

	c.logger.Info("comic generated", "topic", req.Instructions, "panels", len(panels))
	return emit(ctx, ComicEvent{Type: ComicEventDone})
}

func (c *ComicsGenerator) storyPrompts(ctx context.Context, req ComicsRequest) (string, error) {
	prompt := fmt.Sprintf(
		"Topic: %s\nGrade level: %s\nNumber of panels: %d\nLanguage for all comic text: %s",
		req.Instructions, req.GradeLevel, req.NumPanels, req.Language)

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithSystem(comicsInstructions),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating comic story: %w", err)
	}
	story := resp.Text()
	if strings.TrimSpace(story) == "" {
		return "", ErrNoStory
	}
	return story, nil
}

// ParsePanelPrompts extracts the per-panel drawing prompts from the story
// text, in order. Lines without the marker are ignored.
func ParsePanelPrompts(story string) []string {
	var panels []string
	for _, line := range strings.Split(strings.TrimSpace(story), "\n") {
		_, after, found := strings.Cut(line, panelPromptMarker)
		if !found {
			continue
		}
		if prompt := strings.TrimSpace(after); prompt != "" {
			panels = append(panels, prompt)
		}
	}
	return panels
}
