package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/session"
	"github.com/murshid-ai/murshid/internal/tutor"
)

// ChatRequest is the body of the chat endpoints. History is server-side
// per session; any history field in the payload is ignored.
type ChatRequest struct {
	SessionID        string         `json:"session_id"`
	Query            string         `json:"query"`
	WebSearchEnabled *bool          `json:"web_search_enabled,omitempty"` // default true
	StudentData      map[string]any `json:"student_data,omitempty"`
	TeacherData      map[string]any `json:"teacher_data,omitempty"`
	UploadedFiles    []string       `json:"uploaded_files,omitempty"`
}

type chatHandler struct {
	students *session.Registry
	teachers *session.Registry
	logger   log.Logger
}

func (h *chatHandler) handleStudent(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.students, func(req ChatRequest) string {
		return buildStudentContext(req.StudentData)
	})
}

func (h *chatHandler) handleTeacher(w http.ResponseWriter, r *http.Request) {
	if h.teachers == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "teacher assistant is not configured")
		return
	}
	h.serve(w, r, h.teachers, func(req ChatRequest) string {
		return buildTeacherContext(req.TeacherData)
	})
}

func (h *chatHandler) serve(w http.ResponseWriter, r *http.Request,
	registry *session.Registry, contextData func(ChatRequest) string) {

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "a 'query' is required")
		return
	}

	ctx := r.Context()
	tut, err := registry.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		h.logger.Error("session creation failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "session_error", err.Error())
		return
	}
	tut.SetWebSearch(req.WebSearchEnabled == nil || *req.WebSearchEnabled)

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}

	h.logger.Info("chat stream started", "session_id", req.SessionID)
	err = tut.Chat(ctx, tutor.ChatRequest{
		Query:         req.Query,
		UploadedFiles: req.UploadedFiles,
		ContextData:   contextData(req),
	}, func(_ context.Context, ev tutor.Event) error {
		return sse.send(map[string]string{"type": ev.Type, "content": ev.Content})
	})
	if err != nil {
		h.logger.Error("chat stream failed", "session_id", req.SessionID, "error", err)
		sse.sendError(err.Error())
		return
	}
	sse.sendDone()
}

// buildStudentContext renders the student payload as the personalization
// block injected into the system prompt.
func buildStudentContext(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	stats, _ := data["learning_stats"].(map[string]any)
	resources, _ := data["resources"].([]any)
	completed := 0
	for _, r := range resources {
		if m, ok := r.(map[string]any); ok {
			if done, _ := m["completed"].(bool); done {
				completed++
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("Student Information:\n")
	fmt.Fprintf(&sb, "- Name: %s\n", anyString(data["name"], "N/A"))
	fmt.Fprintf(&sb, "- Grade: %s\n", anyString(data["grade"], "N/A"))
	fmt.Fprintf(&sb, "- Email: %s\n", anyString(data["email"], "N/A"))
	sb.WriteString("\nLearning Progress:\n")
	fmt.Fprintf(&sb, "- Completed Resources: %d\n", completed)
	fmt.Fprintf(&sb, "- Total Resources: %d\n", len(resources))
	fmt.Fprintf(&sb, "- Achievements: %d\n", lenAny(data["achievements"]))
	sb.WriteString("\nLearning Statistics:\n")
	fmt.Fprintf(&sb, "- Study Time: %s\n", anyString(stats["totalStudyTime"], "N/A"))
	fmt.Fprintf(&sb, "- Completion Rate: %s\n", anyString(stats["completionRate"], "N/A"))
	fmt.Fprintf(&sb, "- Performance Score: %s\n", anyString(stats["averageScore"], "N/A"))
	return sb.String()
}

// buildTeacherContext renders the teacher bulk data payload for the
// assistant's system prompt.
func buildTeacherContext(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Teacher: %s\n", anyString(data["teacher_name"], "N/A"))
	sections := []struct {
		heading string
		key     string
	}{
		{"Student Reports", "student_details_with_reports"},
		{"Generated Content", "generated_content_details"},
		{"Student Feedback", "feedback_data"},
		{"Learning Analytics", "learning_analytics"},
	}
	for _, section := range sections {
		value, ok := data[section.key]
		if !ok || value == nil || lenAny(value) == 0 && !isMapWithContent(value) {
			continue
		}
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n%s\n", section.heading, encoded)
	}
	return sb.String()
}

func anyString(v any, fallback string) string {
	switch value := v.(type) {
	case string:
		if value != "" {
			return value
		}
	case float64:
		return fmt.Sprintf("%g", value)
	}
	return fallback
}

func lenAny(v any) int {
	if list, ok := v.([]any); ok {
		return len(list)
	}
	return 0
}

func isMapWithContent(v any) bool {
	m, ok := v.(map[string]any)
	return ok && len(m) > 0
}
