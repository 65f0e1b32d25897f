package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/murshid-ai/murshid/internal/log"
)

// imagesAPI is the slice of the genai client the engine needs.
// *genai.Models satisfies it.
type imagesAPI interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ErrNoImage indicates the model returned no image for the prompt, usually
// a safety block.
var ErrNoImage = errors.New("no image generated")

// ImageConfig holds the dependencies for an ImageEngine.
type ImageConfig struct {
	APIKey string
	Model  string // e.g. "imagen-3.0-generate-002"
	Logger log.Logger
}

func (c ImageConfig) validate() error {
	if c.APIKey == "" {
		return errors.New("image API key is required")
	}
	if c.Model == "" {
		return errors.New("image model is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// ImageEngine renders educational visuals and returns them as base64 PNG
// data. It backs both the tutoring image path and the image endpoint.
type ImageEngine struct {
	api    imagesAPI
	model  string
	logger log.Logger
}

// NewImageEngine creates an ImageEngine backed by the Gemini API.
func NewImageEngine(ctx context.Context, cfg ImageConfig) (*ImageEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating image client: %w", err)
	}
	return &ImageEngine{api: client.Models, model: cfg.Model, logger: cfg.Logger}, nil
}

// newImageEngine wires a custom API implementation, for tests.
func newImageEngine(api imagesAPI, model string, logger log.Logger) *ImageEngine {
	return &ImageEngine{api: api, model: model, logger: logger}
}

// Generate renders one image for the prompt and returns it base64-encoded.
func (e *ImageEngine) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := e.api.GenerateImages(ctx, e.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return "", ErrNoImage
	}

	data := resp.GeneratedImages[0].Image.ImageBytes
	e.logger.Info("image generated", "model", e.model, "bytes", len(data))
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL wraps base64 PNG data as a browser-displayable data URL.
func DataURL(b64 string) string {
	return "data:image/png;base64," + b64
}
