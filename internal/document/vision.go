package document

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const describePrompt = "Describe this image in detail for a student's study notes. " +
	"Name every labeled element, transcribe any visible text, and explain what " +
	"the image shows so the description alone can answer questions about it."

// ImageDescriber turns an image into retrievable text.
type ImageDescriber interface {
	Describe(ctx context.Context, filename string, data []byte) (string, error)
}

// VisionDescriber describes images with a multimodal model so their content
// becomes part of the session's knowledge base.
type VisionDescriber struct {
	g     *genkit.Genkit
	model string
}

// NewVisionDescriber creates a VisionDescriber using the given
// provider-qualified model name.
func NewVisionDescriber(g *genkit.Genkit, model string) *VisionDescriber {
	return &VisionDescriber{g: g, model: model}
}

// Describe sends the image inline to the vision model and returns its
// description.
func (v *VisionDescriber) Describe(ctx context.Context, filename string, data []byte) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		MIMEType(filename), base64.StdEncoding.EncodeToString(data))

	resp, err := genkit.Generate(ctx, v.g,
		ai.WithModelName(v.model),
		ai.WithMessages(ai.NewUserMessage(
			ai.NewMediaPart(MIMEType(filename), dataURL),
			ai.NewTextPart(describePrompt),
		)),
	)
	if err != nil {
		return "", fmt.Errorf("describing image %s: %w", filename, err)
	}
	return resp.Text(), nil
}
