package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/proofchunk/internal/chunker"
	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var pdfMagic = []byte("%PDF-")

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		jsonError(w, "file is not a PDF", http.StatusBadRequest)
		return
	}

	limits, lang, err := s.jobSettings(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	dir := filepath.Join(s.cfg.WorkDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error("create job dir", "dir", dir, "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, pipeline.InputFile), data, 0o644); err != nil {
		s.log.Error("store upload", "dir", dir, "error", err)
		os.RemoveAll(dir)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	job := &pipeline.Job{
		ID:          id,
		Filename:    filename,
		Status:      pipeline.StatusQueued,
		Phase:       "queued",
		Limits:      limits,
		OCRLang:     lang,
		ContentHash: pipeline.ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		Dir:         dir,
	}
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

// jobSettings reads the optional per-job overrides from the form.
func (s *Server) jobSettings(r *http.Request) (chunker.Limits, string, error) {
	limits := s.cfg.Limits()
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"max_words", &limits.MaxWords},
		{"max_pages", &limits.MaxPages},
	} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return limits, "", fmt.Errorf("%s must be an integer", f.name)
		}
		*f.dst = n
	}
	if err := limits.Validate(); err != nil {
		return limits, "", err
	}

	lang := s.cfg.OCRLang
	if v := strings.TrimSpace(r.FormValue("ocr_lang")); v != "" {
		if len(ocr.Languages(v)) == 0 {
			return limits, "", errors.New("ocr_lang names no language")
		}
		lang = v
	}
	return limits, lang, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
