package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/murshid-ai/murshid/internal/log"
)

// Slide task statuses reported by the presentation API.
const (
	TaskStatusPending = "PENDING"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
)

const (
	defaultSlidesBaseURL = "https://api.slidespeak.co/api/v1"

	// slidePollInterval paces the task status polling. Deck rendering
	// typically takes tens of seconds upstream.
	slidePollInterval = 2 * time.Second
	slidePollTimeout  = 3 * time.Minute
)

var (
	// ErrSlidesDisabled indicates the presentation client has no API key.
	ErrSlidesDisabled = errors.New("presentation generation is not configured")

	// ErrSlideTaskFailed indicates the upstream deck rendering task failed.
	ErrSlideTaskFailed = errors.New("presentation task failed")

	// ErrSlideTaskTimeout indicates the task did not finish within the
	// polling window.
	ErrSlideTaskTimeout = errors.New("presentation task timed out")
)

// PresentationRequest describes the slide deck to generate.
type PresentationRequest struct {
	PlainText              string `json:"plain_text"`
	CustomUserInstructions string `json:"custom_user_instructions,omitempty"`
	Length                 int    `json:"length"`
	Language               string `json:"language,omitempty"` // ENGLISH or ARABIC
	FetchImages            bool   `json:"fetch_images"`
	Verbosity              string `json:"verbosity,omitempty"` // concise, standard, text-heavy
	Template               string `json:"template,omitempty"`
}

func (r *PresentationRequest) validate() error {
	if strings.TrimSpace(r.PlainText) == "" {
		return errors.New("presentation topic is required")
	}
	if r.Length <= 0 || r.Length > 50 {
		return fmt.Errorf("slide count %d out of range [1, 50]", r.Length)
	}
	if r.Language == "" {
		r.Language = "ENGLISH"
	}
	if r.Verbosity == "" {
		r.Verbosity = "standard"
	}
	if r.Template == "" {
		r.Template = "default"
	}
	return nil
}

// PresentationResult is the terminal state of a deck rendering task.
type PresentationResult struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
	URL        string `json:"url,omitempty"`
}

// SlidesConfig holds the dependencies for a SlidesClient.
type SlidesConfig struct {
	APIKey       string
	BaseURL      string        // optional
	HTTPClient   *http.Client  // optional
	PollInterval time.Duration // optional
	PollTimeout  time.Duration // optional
	Logger       log.Logger
}

func (c *SlidesConfig) validate() error {
	if c.APIKey == "" {
		return ErrSlidesDisabled
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// SlidesClient drives an asynchronous deck rendering API: submit the deck,
// then poll the task until it succeeds or fails.
type SlidesClient struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       log.Logger
}

// NewSlidesClient creates a SlidesClient.
func NewSlidesClient(cfg SlidesConfig) (*SlidesClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSlidesBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = slidePollInterval
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = slidePollTimeout
	}
	return &SlidesClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		pollInterval: interval,
		pollTimeout:  timeout,
		logger:       cfg.Logger,
	}, nil
}

type slideTaskResponse struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
	TaskResult struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	} `json:"task_result"`
}

// Generate submits the deck and polls until the task reaches a terminal
// status. Returns the presentation URL on success.
func (s *SlidesClient) Generate(ctx context.Context, req PresentationRequest) (*PresentationResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	taskID, err := s.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("presentation task submitted",
		"task_id", taskID, "topic", req.PlainText, "template", req.Template)

	return s.poll(ctx, taskID)
}

func (s *SlidesClient) submit(ctx context.Context, req PresentationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding presentation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/presentation/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building presentation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-key", s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submitting presentation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("presentation API returned %d: %s", resp.StatusCode, payload)
	}

	var parsed slideTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding presentation response: %w", err)
	}
	if parsed.TaskID == "" {
		return "", errors.New("presentation API returned no task ID")
	}
	return parsed.TaskID, nil
}

func (s *SlidesClient) poll(ctx context.Context, taskID string) (*PresentationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.taskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch status.TaskStatus {
		case TaskStatusSuccess:
			s.logger.Info("presentation generated",
				"task_id", taskID, "url", status.TaskResult.URL)
			return &PresentationResult{
				TaskID:     taskID,
				TaskStatus: TaskStatusSuccess,
				URL:        status.TaskResult.URL,
			}, nil
		case TaskStatusFailure:
			msg := status.TaskResult.Error
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("%w: %s", ErrSlideTaskFailed, msg)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: task %s", ErrSlideTaskTimeout, taskID)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SlidesClient) taskStatus(ctx context.Context, taskID string) (*slideTaskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/task_status/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("X-API-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status API returned %d: %s", resp.StatusCode, payload)
	}

	var parsed slideTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding task status: %w", err)
	}
	return &parsed, nil
}
