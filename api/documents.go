package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/murshid-ai/murshid/internal/document"
	"github.com/murshid-ai/murshid/internal/log"
	"github.com/murshid-ai/murshid/internal/session"
	"github.com/murshid-ai/murshid/internal/storage"
)

// maxUploadBytes bounds one upload request.
const maxUploadBytes = 64 << 20

// UploadResponse reports one upload batch's outcome.
type UploadResponse struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	FilesProcessed int               `json:"files_processed"`
	Failed         map[string]string `json:"failed,omitempty"` // filename → reason
}

type documentsHandler struct {
	sessions *session.Registry
	store    storage.Store
	ingestor *document.Ingestor
	logger   log.Logger
}

// handleUpload stores the uploaded files, ingests them, and adds the
// resulting documents to the session's knowledge base. Per-file failures
// are reported without failing the batch.
func (h *documentsHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}
	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files provided")
		return
	}

	ctx := r.Context()
	tut, err := h.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		h.logger.Error("session creation failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "session_error", err.Error())
		return
	}

	failed := make(map[string]string)
	var refs []document.FileRef
	for _, header := range uploads {
		if header.Filename == "" {
			continue
		}
		data, err := readUpload(header)
		if err != nil {
			h.logger.Warn("upload read failed", "file", header.Filename, "error", err)
			failed[header.Filename] = err.Error()
			continue
		}

		key := storage.UploadKey(header.Filename)
		if err := h.store.Put(ctx, key, data, header.Header.Get("Content-Type")); err != nil {
			h.logger.Warn("upload store failed", "file", header.Filename, "error", err)
			failed[header.Filename] = err.Error()
			continue
		}
		refs = append(refs, document.FileRef{Key: key, Name: header.Filename})
	}
	if len(refs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no valid files were successfully uploaded")
		return
	}

	result, err := h.ingestor.Ingest(ctx, refs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingest_error", err.Error())
		return
	}
	for name, ferr := range result.Failed {
		failed[name] = ferr.Error()
	}
	if len(result.Documents) > 0 {
		if err := tut.Ingest(ctx, result.Documents); err != nil {
			h.logger.Error("knowledge base update failed", "session_id", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "ingest_error", "failed to process uploaded documents")
			return
		}
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success:        true,
		Message:        fmt.Sprintf("Successfully uploaded and processed %d document(s)", result.Processed),
		FilesProcessed: result.Processed,
		Failed:         failed,
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
