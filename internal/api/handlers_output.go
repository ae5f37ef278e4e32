package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgallion1/proofchunk/internal/chunkfile"
	"github.com/dgallion1/proofchunk/internal/pipeline"
	"github.com/dgallion1/proofchunk/internal/runlog"
	"github.com/go-chi/chi/v5"
)

type chunkInfo struct {
	Name      string `json:"name"`
	ChunkID   int    `json:"chunk_id"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Pages     int    `json:"pages"`
	Bytes     int    `json:"bytes"`
}

// completedJob writes an error response and returns nil unless the job
// exists and has finished successfully.
func (s *Server) completedJob(w http.ResponseWriter, r *http.Request) *pipeline.JobSnapshot {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	snap := job.Snapshot()
	if snap.Status != pipeline.StatusCompleted {
		jsonError(w, "job is "+string(snap.Status), http.StatusConflict)
		return nil
	}
	return &snap
}

func (s *Server) jobDir(id string) string {
	return filepath.Join(s.cfg.WorkDir, id)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	snap := s.completedJob(w, r)
	if snap == nil {
		return
	}
	dir := pipeline.JobChunksDir(s.jobDir(snap.ID))
	names, err := chunkfile.Writer{Dir: dir}.List()
	if err != nil {
		s.log.Error("list chunks", "job_id", snap.ID, "error", err)
		jsonError(w, "chunks unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]chunkInfo, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.log.Error("read chunk", "job_id", snap.ID, "name", name, "error", err)
			jsonError(w, "chunks unavailable", http.StatusInternalServerError)
			return
		}
		f, err := chunkfile.Parse(data)
		if err != nil {
			s.log.Error("parse chunk", "job_id", snap.ID, "name", name, "error", err)
			jsonError(w, "chunks unavailable", http.StatusInternalServerError)
			return
		}
		out = append(out, chunkInfo{
			Name:      name,
			ChunkID:   f.ID,
			StartPage: f.StartPage,
			EndPage:   f.EndPage,
			Pages:     len(f.Pages),
			Bytes:     len(data),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": snap.ID, "chunks": out})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	snap := s.completedJob(w, r)
	if snap == nil {
		return
	}
	name := chi.URLParam(r, "name")
	if _, _, _, ok := chunkfile.ParseFilename(name); !ok {
		jsonError(w, "invalid chunk name", http.StatusBadRequest)
		return
	}
	s.serveFile(w, filepath.Join(pipeline.JobChunksDir(s.jobDir(snap.ID)), name), "text/markdown; charset=utf-8")
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	snap := s.completedJob(w, r)
	if snap == nil {
		return
	}
	s.serveFile(w, filepath.Join(pipeline.JobLogsDir(s.jobDir(snap.ID)), runlog.FileName), "text/plain; charset=utf-8")
}

func (s *Server) serveFile(w http.ResponseWriter, path, contentType string) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("read output", "path", path, "error", err)
		jsonError(w, "read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}
