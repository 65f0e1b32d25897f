package document

import (
	"strings"
	"testing"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("short note", 100, 20)
	if len(chunks) != 1 || chunks[0] != "short note" {
		t.Errorf("SplitText() = %v, want single unchanged chunk", chunks)
	}
}

func TestSplitText_PrefersParagraphBoundaries(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	chunks := SplitText(text, 50, 10)

	if len(chunks) != 2 {
		t.Fatalf("SplitText() produced %d chunks, want 2: %v", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "b") || strings.Contains(chunks[1], "a") {
		t.Errorf("paragraphs mixed across chunks: %v", chunks)
	}
}

func TestSplitText_HardCutsUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitText(text, 100, 20)

	if len(chunks) < 3 {
		t.Fatalf("expected hard cuts for unbroken text, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Errorf("chunk %d exceeds size limit: %d runes", i, len([]rune(c)))
		}
	}
}

func TestSplitText_Empty(t *testing.T) {
	if chunks := SplitText("   \n ", 100, 20); chunks != nil {
		t.Errorf("SplitText() on whitespace = %v, want nil", chunks)
	}
}
