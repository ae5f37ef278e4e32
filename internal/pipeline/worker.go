package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dgallion1/proofchunk/internal/chunker"
	"github.com/dgallion1/proofchunk/internal/extract"
	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/page"
	"github.com/dgallion1/proofchunk/internal/parser"
	"github.com/dgallion1/proofchunk/internal/raster"
)

// InputFile is the uploaded document's name inside a job directory.
const InputFile = "input.pdf"

// JobChunksDir and JobLogsDir mirror the CLI layout inside a job directory.
func JobChunksDir(dir string) string { return filepath.Join(dir, "output", "chunks") }
func JobLogsDir(dir string) string   { return filepath.Join(dir, "logs") }

// Collaborators are the external engines shared by all jobs.
type Collaborators struct {
	Opener     parser.Opener
	Rasterizer raster.Rasterizer
	Recognizer ocr.Recognizer
}

// Worker processes a single document job.
type Worker struct {
	collab  Collaborators
	extract extract.Config
	log     *slog.Logger
}

func NewWorker(collab Collaborators, extractCfg extract.Config, log *slog.Logger) *Worker {
	return &Worker{collab: collab, extract: extractCfg, log: log}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	cfg := w.extract
	cfg.Language = job.OCRLang
	p := New(w.collab.Opener, extract.New(w.collab.Rasterizer, w.collab.Recognizer, cfg, log), log)

	job.SetStatus(StatusValidating, "validating")
	status := StatusValidating
	advance := func(to JobStatus) {
		if status != to {
			status = to
			job.SetStatus(to, string(to))
		}
	}
	res, err := p.Run(ctx, filepath.Join(job.Dir, InputFile), Settings{
		Limits:    job.Limits,
		ChunksDir: JobChunksDir(job.Dir),
		LogsDir:   JobLogsDir(job.Dir),
		Clean:     true,
	}, Hooks{
		OnPage: func(done, total int, rec page.Record) {
			advance(StatusExtracting)
			job.RecordPage(done, total, rec)
			if rec.Source == page.SourceError {
				job.AddError(fmt.Sprintf("page %d: text could not be recovered", rec.Number))
			}
		},
		OnChunk: func(string, chunker.Chunk) {
			advance(StatusWriting)
		},
	})
	if err != nil {
		phase := "processing"
		switch {
		case errors.Is(err, parser.ErrDocumentNotFound), errors.Is(err, parser.ErrDocumentUnreadable):
			phase = "validating"
		case errors.Is(err, context.Canceled):
			phase = "cancelled"
		}
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		return
	}

	job.SetChunks(res.Stats.Chunks)
	job.SetStatus(StatusCompleted, "done")
	log.Info("job complete", "chunks", res.Stats.Chunks, "pages", res.Stats.TotalPages)
}
