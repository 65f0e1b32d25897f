// Package document turns uploaded files into normalized text units ready
// for embedding: fetch bytes by storage key, detect image vs text-like,
// load or describe, then chunk.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind classifies an uploaded file by extension.
type Kind int

const (
	// KindText covers loadable text-like documents.
	KindText Kind = iota
	// KindImage covers raster images, described by a vision model.
	KindImage
)

// ErrUnsupportedType indicates a file extension no loader handles.
var ErrUnsupportedType = errors.New("unsupported file type")

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
	".html": true,
	".htm":  true,
}

// Detect classifies a filename. Unknown extensions return ErrUnsupportedType.
func Detect(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExtensions[ext]:
		return KindImage, nil
	case textExtensions[ext]:
		return KindText, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// MIMEType returns the content type for an image extension, defaulting to
// image/png.
func MIMEType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// LoadText converts a text-like file's bytes into plain text.
func LoadText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return string(data), nil
	case ".json":
		return loadJSON(data)
	case ".html", ".htm":
		return loadHTML(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// loadJSON pretty-prints JSON so key names stay retrievable as text.
// Invalid JSON falls back to the raw bytes.
func loadJSON(data []byte) (string, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return string(data), nil
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return string(data), nil
	}
	return string(pretty), nil
}

// loadHTML extracts visible text, dropping script and style content.
func loadHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
	})
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	// Collapse the whitespace runs left by tag removal.
	return strings.Join(strings.Fields(text), " "), nil
}
