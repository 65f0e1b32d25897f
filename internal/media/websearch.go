package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/murshid-ai/murshid/internal/tools"
)

// Searcher answers free-form web queries. *tools.WebSearcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) (*tools.Answer, error)
}

// CuratedSearchRequest describes a grade-targeted resource search.
type CuratedSearchRequest struct {
	Topic         string `json:"topic"`
	GradeLevel    string `json:"grade_level"`
	Subject       string `json:"subject"`
	ContentType   string `json:"content_type"` // e.g. articles, videos
	Language      string `json:"language,omitempty"`
	Comprehension string `json:"comprehension,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

func (r *CuratedSearchRequest) validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return errors.New("topic is required")
	}
	if r.Language == "" {
		r.Language = "English"
	}
	if r.Comprehension == "" {
		r.Comprehension = "intermediate"
	}
	if r.MaxResults <= 0 {
		r.MaxResults = 5
	}
	return nil
}

// BuildSearchQuery renders the curated search request as the query sent to
// the web answer API.
func BuildSearchQuery(req CuratedSearchRequest) string {
	return fmt.Sprintf(
		"Show me up to %d %s about '%s' for a grade %s %s class. "+
			"The content should be in %s with a %s comprehension level. "+
			"Include links in the response with detailed lengthy response content. "+
			"Include the source of the content in the response.",
		req.MaxResults, req.ContentType, req.Topic, req.GradeLevel, req.Subject,
		req.Language, req.Comprehension)
}

// CuratedSearch runs a grade-targeted search and returns the query sent
// along with the formatted answer.
func CuratedSearch(ctx context.Context, s Searcher, req CuratedSearchRequest) (query, content string, err error) {
	if s == nil {
		return "", "", tools.ErrSearchDisabled
	}
	if err := req.validate(); err != nil {
		return "", "", err
	}

	query = BuildSearchQuery(req)
	answer, err := s.Search(ctx, query)
	if err != nil {
		return query, "", fmt.Errorf("curated search: %w", err)
	}
	content = tools.FormatAnswer(answer)
	if strings.TrimSpace(content) == "" {
		return query, "", errors.New("web search returned empty response")
	}
	return query, content, nil
}
