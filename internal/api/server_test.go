package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/proofchunk/internal/config"
	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/parser"
	"github.com/dgallion1/proofchunk/internal/pipeline"
)

const testKey = "test-key"

type stubDoc struct {
	path  string
	pages []string
}

func (d stubDoc) Path() string  { return d.path }
func (d stubDoc) NumPages() int { return len(d.pages) }
func (d stubDoc) Close() error  { return nil }
func (d stubDoc) PageText(_ context.Context, i int) (string, error) {
	return d.pages[i], nil
}

type stubOpener struct{ pages []string }

func (o stubOpener) Open(path string) (parser.Document, error) {
	return stubDoc{path: path, pages: o.pages}, nil
}

type stubRaster struct{}

func (stubRaster) RenderPage(context.Context, string, int, int) ([]byte, error) {
	return []byte("png"), nil
}

type stubOCR struct{}

func (stubOCR) Name() string { return "stub" }
func (stubOCR) Recognize(context.Context, []byte, string) (string, error) {
	return "", nil
}

func newTestServer(t *testing.T, stats *ocr.LatencyStats) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = testKey
	cfg.WorkDir = t.TempDir()
	cfg.MaxUploadBytes = 1 << 20

	page := strings.Repeat("كلمة ", 30)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, pipeline.Collaborators{
		Opener:     stubOpener{pages: []string{page, page, page}},
		Rasterizer: stubRaster{},
		Recognizer: stubOCR{},
	}, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, stats, log, cfg)
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return do(t, s, http.MethodPost, "/api/chunk", &buf, mw.FormDataContentType())
}

func waitDone(t *testing.T, s *Server, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+id+"/status", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var snap pipeline.JobSnapshot
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatal(err)
		}
		if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish, last status %q", id, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, nil)
	for _, header := range []string{"", "Bearer wrong", "Basic " + testKey} {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/ocr", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestChunkUploadRejected(t *testing.T) {
	s := newTestServer(t, nil)
	pdf := []byte("%PDF-1.4\n")

	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
	}{
		{"wrong extension", "book.docx", pdf, nil},
		{"not a pdf", "book.pdf", []byte("hello"), nil},
		{"non-integer max_words", "book.pdf", pdf, map[string]string{"max_words": "many"}},
		{"zero max_pages", "book.pdf", pdf, map[string]string{"max_pages": "0"}},
		{"blank language", "book.pdf", pdf, map[string]string{"ocr_lang": "+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s, tt.filename, tt.data, tt.fields)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestChunkJobLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := upload(t, s, "book.pdf", []byte("%PDF-1.4\n"), map[string]string{"max_pages": "2", "ocr_lang": "ara"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatal(err)
	}

	snap := waitDone(t, s, accepted.JobID)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q: %v", snap.Status, snap.Progress.Errors)
	}
	if snap.MaxPages != 2 || snap.OCRLang != "ara" {
		t.Errorf("expected overrides to stick, got max_pages=%d ocr_lang=%q", snap.MaxPages, snap.OCRLang)
	}
	if snap.Progress.TextPages != 3 || snap.Progress.Chunks != 2 {
		t.Errorf("expected 3 text pages in 2 chunks, got %+v", snap.Progress)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/chunks", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chunks: expected 200, got %d", rec.Code)
	}
	var listing struct {
		Chunks []chunkInfo `json:"chunks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Chunks) != 2 || listing.Chunks[0].Name != "chunk_001_p001-p002.md" || listing.Chunks[1].Pages != 1 {
		t.Fatalf("unexpected listing %+v", listing.Chunks)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/chunks/chunk_002_p003-p003.md", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chunk: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "---- [Page 3] ----") {
		t.Errorf("expected page 3 marker in chunk body")
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/chunks/input.pdf", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-chunk name, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/log", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("log: expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "Page Number | Source Type") {
		t.Errorf("unexpected log body %q", rec.Body.String())
	}
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/status", "/chunks", "/log"} {
		rec := do(t, s, http.MethodGet, "/api/jobs/nope"+path, nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestOCRStats(t *testing.T) {
	if rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/stats/ocr", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without stats, got %d", rec.Code)
	}

	stats := ocr.NewLatencyStats(time.Hour)
	stats.Record(120*time.Millisecond, false)
	rec := do(t, newTestServer(t, stats), http.MethodGet, "/api/stats/ocr", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Stats ocr.StatsSnapshot `json:"stats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Stats.Calls != 1 {
		t.Errorf("expected 1 call, got %d", body.Stats.Calls)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"book.pdf":             "book.pdf",
		"../../etc/passwd.pdf": "passwd.pdf",
		`C:\docs\book.pdf`:     "book.pdf",
		"":                     "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
