package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/murshid-ai/murshid/internal/testutil"
)

type uploadFile struct {
	name string
	data string
}

func postUpload(t *testing.T, url, sessionID string, files []uploadFile) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.data)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/api/documents/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeUpload(t *testing.T, resp *http.Response) UploadResponse {
	t.Helper()
	defer resp.Body.Close()
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return out
}

func TestUpload_TextDocument(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), nil)

	resp := postUpload(t, ts.URL, "sess-up", []uploadFile{
		{name: "notes.txt", data: "The mitochondria is the powerhouse of the cell."},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	out := decodeUpload(t, resp)
	if !out.Success {
		t.Error("upload should report success")
	}
	if out.FilesProcessed != 1 {
		t.Errorf("files_processed = %d, want 1", out.FilesProcessed)
	}
	if out.Message != "Successfully uploaded and processed 1 document(s)" {
		t.Errorf("message = %q", out.Message)
	}
	if len(out.Failed) != 0 {
		t.Errorf("failed = %v, want none", out.Failed)
	}
}

func TestUpload_KnowledgeBaseVisibleToChat(t *testing.T) {
	mock := testutil.NewMockLLM("use_llm_with_tools")
	mock.AddSystemResponse("rephrase the follow-up question", "mitochondria",
		"What do mitochondria do?")
	mock.AddSystemResponse("ai tutor", "mitochondria", "It produces ATP.")
	ts := newTestServer(t, mock, nil)

	resp := postUpload(t, ts.URL, "sess-kb", []uploadFile{
		{name: "biology.md", data: "Mitochondria produce ATP through respiration."},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	chatResp := postJSON(t, ts.URL+"/api/chat",
		`{"session_id": "sess-kb", "query": "what do mitochondria do?"}`)
	readSSE(t, chatResp)

	found := false
	for _, call := range mock.Calls() {
		if strings.Contains(call.System, "Knowledge Base**: AVAILABLE") {
			found = true
		}
	}
	if !found {
		t.Error("chat after upload should report the knowledge base as available")
	}
}

func TestUpload_MixedBatchReportsFailures(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), nil)

	resp := postUpload(t, ts.URL, "sess-mixed", []uploadFile{
		{name: "ok.txt", data: "supported content"},
		{name: "video.mp4", data: "unsupported"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a partial success", resp.StatusCode)
	}

	out := decodeUpload(t, resp)
	if out.FilesProcessed != 1 {
		t.Errorf("files_processed = %d, want 1", out.FilesProcessed)
	}
	if _, ok := out.Failed["video.mp4"]; !ok {
		t.Errorf("failed = %v, want video.mp4 reported", out.Failed)
	}
}

func TestUpload_Validation(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockLLM("ok"), nil)

	t.Run("missing session_id", func(t *testing.T) {
		resp := postUpload(t, ts.URL, "", []uploadFile{{name: "a.txt", data: "x"}})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("no files", func(t *testing.T) {
		resp := postUpload(t, ts.URL, "sess-empty", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("all files unsupported", func(t *testing.T) {
		resp := postUpload(t, ts.URL, "sess-bad", []uploadFile{
			{name: "clip.mp4", data: "x"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200 with failure detail", resp.StatusCode)
		}
		out := decodeUpload(t, resp)
		if out.FilesProcessed != 0 || len(out.Failed) != 1 {
			t.Errorf("response = %+v, want zero processed and one failure", out)
		}
	})
}
