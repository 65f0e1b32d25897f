package vectorstore

// Document type tags. Image-derived documents carry the vision model's
// description as their content.
const (
	TypeText  = "text"
	TypeImage = "image"
)

// Document is one retrievable unit of knowledge belonging to a collection.
type Document struct {
	Content string // text content (or image description)
	Source  string // originating filename
	Type    string // TypeText or TypeImage
}

// Result is a single search result with its cosine similarity score.
type Result struct {
	Document   Document
	Similarity float32
}
