package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	readability "github.com/go-shiori/go-readability"

	"github.com/murshid-ai/murshid/internal/log"
)

const (
	defaultSearchBaseURL = "https://api.perplexity.ai"
	searchModel          = "sonar"

	// citationFetchTimeout bounds each cited-page fetch separately so one
	// slow site cannot stall the whole answer.
	citationFetchTimeout = 8 * time.Second

	// maxExcerptRunes limits how much readable text one citation contributes.
	maxExcerptRunes = 400
)

// ErrSearchDisabled indicates the web search client has no API key.
var ErrSearchDisabled = errors.New("web search is not configured")

// WebSearchConfig holds the dependencies for a WebSearcher.
type WebSearchConfig struct {
	APIKey     string
	BaseURL    string       // optional, defaults to the hosted answer API
	HTTPClient *http.Client // optional
	MaxSources int          // cited pages to extract, optional
	Logger     log.Logger
}

func (c *WebSearchConfig) validate() error {
	if c.APIKey == "" {
		return ErrSearchDisabled
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// WebSearcher queries a hosted web answer API and enriches the answer with
// readable excerpts from the cited pages.
type WebSearcher struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	maxSources int
	logger     log.Logger
}

// NewWebSearcher creates a WebSearcher.
func NewWebSearcher(cfg WebSearchConfig) (*WebSearcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxSources := cfg.MaxSources
	if maxSources <= 0 {
		maxSources = 3
	}
	return &WebSearcher{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     client,
		maxSources: maxSources,
		logger:     cfg.Logger,
	}, nil
}

// Citation is one cited source of a web answer.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Answer is the result of one web search.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Search asks the answer API and extracts readable excerpts from up to
// MaxSources cited pages. Citation extraction failures are skipped, never
// fatal.
func (w *WebSearcher) Search(ctx context.Context, query string) (*Answer, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:    searchModel,
		Messages: []chatMessage{{Role: "user", Content: query}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, payload)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("search API returned no choices")
	}

	answer := &Answer{Text: parsed.Choices[0].Message.Content}
	for i, cited := range parsed.Citations {
		if i >= w.maxSources {
			answer.Citations = append(answer.Citations, Citation{URL: cited})
			continue
		}
		answer.Citations = append(answer.Citations, w.extractCitation(ctx, cited))
	}

	w.logger.Info("web search completed",
		"query", query, "citations", len(answer.Citations))
	return answer, nil
}

// extractCitation fetches a cited page and pulls its title and a short
// readable excerpt. Any failure degrades to a bare URL citation.
func (w *WebSearcher) extractCitation(ctx context.Context, pageURL string) Citation {
	citation := Citation{URL: pageURL}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return citation
	}

	fetchCtx, cancel := context.WithTimeout(ctx, citationFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return citation
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug("citation fetch failed", "url", pageURL, "error", err)
		return citation
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return citation
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		w.logger.Debug("citation extraction failed", "url", pageURL, "error", err)
		return citation
	}

	citation.Title = article.Title
	excerpt := strings.Join(strings.Fields(article.TextContent), " ")
	if runes := []rune(excerpt); len(runes) > maxExcerptRunes {
		excerpt = string(runes[:maxExcerptRunes]) + "..."
	}
	citation.Excerpt = excerpt
	return citation
}

// DefineWebSearch registers the web_search tool backed by the given searcher.
func DefineWebSearch(g *genkit.Genkit, searcher *WebSearcher, logger log.Logger) ai.Tool {
	return genkit.DefineTool(g, WebSearchName,
		"Search the web for current information, real-world examples, or educational resources. "+
			"Returns an answer with cited sources. Always include the cited links in your response "+
			"so the user can read more.",
		func(tctx *ai.ToolContext, input SearchInput) (string, error) {
			logger.Info("web search tool invoked", "query", input.Query)
			answer, err := searcher.Search(tctx.Context, input.Query)
			if err != nil {
				return "", fmt.Errorf("web search: %w", err)
			}
			return FormatAnswer(answer), nil
		})
}

// FormatAnswer renders a web answer with its source list for the model.
func FormatAnswer(answer *Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)
	if len(answer.Citations) > 0 {
		sb.WriteString("\n\nSources:")
		for _, c := range answer.Citations {
			sb.WriteString("\n- ")
			if c.Title != "" {
				sb.WriteString(c.Title)
				sb.WriteString(" (")
				sb.WriteString(c.URL)
				sb.WriteString(")")
			} else {
				sb.WriteString(c.URL)
			}
			if c.Excerpt != "" {
				sb.WriteString("\n  ")
				sb.WriteString(c.Excerpt)
			}
		}
	}
	return sb.String()
}
