package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/media"
	"github.com/murshid-ai/murshid/internal/tutor"
)

type mediaHandler struct {
	assessments AssessmentGenerator
	teaching    TeachingGenerator
	slides      SlidesGenerator
	images      ImageGenerator
	comics      ComicsStreamer
	searcher    media.Searcher
	logger      log.Logger
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody[T any](w http.ResponseWriter, r *http.Request, dst *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *mediaHandler) handleAssessment(w http.ResponseWriter, r *http.Request) {
	if h.assessments == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "assessment generation is not configured")
		return
	}
	var req media.AssessmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content, err := h.assessments.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, media.ErrDistributionMismatch) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("assessment generation failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assessment": content})
}

func (h *mediaHandler) handleTeachingContent(w http.ResponseWriter, r *http.Request) {
	if h.teaching == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "teaching content generation is not configured")
		return
	}
	var req media.TeachingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	content, err := h.teaching.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, media.ErrInvalidContentType) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("teaching content generation failed", "topic", req.LessonTopic, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"generated_content": content})
}

func (h *mediaHandler) handlePresentation(w http.ResponseWriter, r *http.Request) {
	if h.slides == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "presentation generation is not configured")
		return
	}
	var req media.PresentationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.slides.Generate(r.Context(), req)
	if err != nil {
		h.logger.Error("presentation generation failed", "topic", req.PlainText, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_error",
			fmt.Sprintf("presentation generation failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"presentation": result})
}

func (h *mediaHandler) handleImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "image generation is not configured")
		return
	}
	var req tutor.ImageParams
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "topic is required")
		return
	}

	b64, err := h.images.Generate(r.Context(), tutor.BuildImagePrompt(req))
	if err != nil || b64 == "" {
		h.logger.Error("image generation failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, "generation_error", "image generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": media.DataURL(b64)})
}

func (h *mediaHandler) handleWebSearch(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "web search is not configured")
		return
	}
	var req media.CuratedSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	query, content, err := media.CuratedSearch(r.Context(), h.searcher, req)
	if err != nil {
		h.logger.Error("web search failed", "topic", req.Topic, "error", err)
		writeError(w, http.StatusInternalServerError, "search_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"query": query, "content": content})
}

// handleComics streams the comic generation as SSE events. Errors after
// the stream starts surface as error events.
func (h *mediaHandler) handleComics(w http.ResponseWriter, r *http.Request) {
	if h.comics == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "comic generation is not configured")
		return
	}
	var req media.ComicsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}

	err = h.comics.Stream(r.Context(), req, func(_ context.Context, ev media.ComicEvent) error {
		return sse.send(ev)
	})
	if err != nil {
		h.logger.Error("comic stream failed", "topic", req.Instructions, "error", err)
		sse.sendError(err.Error())
	}
}
