package tutor

import (
	"context"
	"fmt"
	"strings"
)

// Messages streamed around image generation.
const (
	// GeneratingImageNotice is streamed while the image call is in flight.
	GeneratingImageNotice = "Generating image based on your specifications..."

	// ImageFailedNotice is streamed when generation fails or returns nothing.
	ImageFailedNotice = "Failed to generate image. Please check parameters and try again."
)

// ImageGenerator renders an educational visual from a prompt and returns the
// base64-encoded PNG data. media.ImageEngine satisfies it.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// BuildImagePrompt assembles the generation prompt from routed parameters.
func BuildImagePrompt(p ImageParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a %s about %q for a %s %s class.",
		orDefault(p.PreferredVisualType, "diagram"),
		p.Topic,
		orDefault(p.GradeLevel, "school"),
		orDefault(p.Subject, "general"))
	fmt.Fprintf(&sb, " All labels and text in the image must be in %s.",
		orDefault(p.Language, "English"))

	if strings.EqualFold(p.DifficultyFlag, "true") {
		sb.WriteString(" Include detailed annotations and advanced terminology suitable for an advanced learner.")
	} else {
		sb.WriteString(" Keep the visual simple, clearly labeled, and easy to follow.")
	}
	if p.Instructions != "" {
		fmt.Fprintf(&sb, " Additional requirements: %s", p.Instructions)
	}
	sb.WriteString(" The image must be accurate, legible, and suitable for classroom use.")
	return sb.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
