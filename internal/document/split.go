package document

import "strings"

// separators tried in order when splitting; the empty string forces a hard
// character cut for pathological inputs with no boundaries.
var separators = []string{"\n\n", "\n", " ", ""}

// SplitText breaks text into chunks of at most size runes with the given
// overlap, preferring paragraph then line then word boundaries.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= size {
		return []string{text}
	}
	return splitRecursive(text, size, overlap, 0)
}

func splitRecursive(text string, size, overlap, sepIdx int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	// Last separator is the hard cut.
	if sepIdx >= len(separators)-1 {
		var chunks []string
		step := size - overlap
		if step <= 0 {
			step = size
		}
		for start := 0; start < len(runes); start += step {
			end := min(start+size, len(runes))
			chunk := strings.TrimSpace(string(runes[start:end]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			if end == len(runes) {
				break
			}
		}
		return chunks
	}

	sep := separators[sepIdx]
	parts := strings.Split(text, sep)

	var chunks []string
	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, part := range parts {
		partLen := len([]rune(part))
		if partLen > size {
			flush()
			chunks = append(chunks, splitRecursive(part, size, overlap, sepIdx+1)...)
			continue
		}
		if len([]rune(current.String()))+partLen+len(sep) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()
	return chunks
}
