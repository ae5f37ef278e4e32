package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/proofchunk/internal/chunker"
	"github.com/dgallion1/proofchunk/internal/chunkfile"
	"github.com/dgallion1/proofchunk/internal/page"
	"github.com/dgallion1/proofchunk/internal/parser"
	"github.com/dgallion1/proofchunk/internal/runlog"
)

// PageExtractor recovers one page of an open document.
type PageExtractor interface {
	Extract(ctx context.Context, doc parser.Document, index int) (page.Record, error)
}

// Settings are the per-run knobs.
type Settings struct {
	Limits    chunker.Limits
	ChunksDir string
	LogsDir   string
	Clean     bool // remove chunk files from earlier runs first
}

// Stats are the run's counters. They are threaded through each phase by
// value rather than kept on the Pipeline.
type Stats struct {
	TotalPages int `json:"total_pages"`
	TextPages  int `json:"text_pages"`
	OCRPages   int `json:"ocr_pages"`
	ErrorPages int `json:"error_pages"`
	TotalWords int `json:"total_words"`
	Chunks     int `json:"chunks"`
}

func (s Stats) withPage(r page.Record) Stats {
	switch r.Source {
	case page.SourceText:
		s.TextPages++
	case page.SourceOCR:
		s.OCRPages++
	case page.SourceError:
		s.ErrorPages++
	}
	s.TotalWords += r.WordCount()
	return s
}

// Hooks observe progress. Nil hooks are skipped.
type Hooks struct {
	OnPage  func(done, total int, rec page.Record)
	OnChunk func(path string, c chunker.Chunk)
}

// Result describes a completed run.
type Result struct {
	Stats      Stats
	ChunkFiles []string
	LogFile    string
}

// Pipeline drives one document from validation to written chunks.
type Pipeline struct {
	opener    parser.Opener
	extractor PageExtractor
	log       *slog.Logger
}

func New(opener parser.Opener, extractor PageExtractor, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{opener: opener, extractor: extractor, log: log}
}

// Run processes the document at path. Any returned error aborts the run;
// page-local failures never surface here.
func (p *Pipeline) Run(ctx context.Context, path string, s Settings, hooks Hooks) (Result, error) {
	if err := s.Limits.Validate(); err != nil {
		return Result{}, err
	}

	// Phase 1: Validate
	if err := parser.CheckFile(path); err != nil {
		return Result{}, err
	}
	doc, err := p.opener.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer doc.Close()

	writer := chunkfile.Writer{Dir: s.ChunksDir}
	if err := writer.Prepare(); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(s.LogsDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create logs dir: %w", err)
	}

	p.log.Info("processing document",
		"path", path,
		"pages", doc.NumPages(),
		"max_words", s.Limits.MaxWords,
		"max_pages", s.Limits.MaxPages,
	)

	// Phase 2: Extract
	records, stats, err := p.extractPages(ctx, doc, Stats{}, hooks)
	if err != nil {
		return Result{Stats: stats}, err
	}

	// Phase 3: Pack
	chunks, err := chunker.Pack(records, s.Limits)
	if err != nil {
		return Result{Stats: stats}, err
	}
	stats.Chunks = len(chunks)

	// Phase 4: Write chunks
	if s.Clean {
		n, err := writer.Clean()
		if err != nil {
			return Result{Stats: stats}, err
		}
		if n > 0 {
			p.log.Info("removed stale chunk files", "count", n, "dir", s.ChunksDir)
		}
	}
	res := Result{Stats: stats, ChunkFiles: make([]string, 0, len(chunks))}
	for _, c := range chunks {
		path, err := writer.Write(c)
		if err != nil {
			return res, err
		}
		res.ChunkFiles = append(res.ChunkFiles, path)
		p.log.Info("created chunk",
			"file", path,
			"start_page", c.StartPage(),
			"end_page", c.EndPage(),
			"pages", len(c.Pages),
			"words", c.Words,
		)
		if hooks.OnChunk != nil {
			hooks.OnChunk(path, c)
		}
	}

	// Phase 5: Audit log
	res.LogFile, err = runlog.Write(s.LogsDir, records)
	if err != nil {
		return res, err
	}

	p.log.Info("processing complete",
		"total_pages", stats.TotalPages,
		"text_pages", stats.TextPages,
		"ocr_pages", stats.OCRPages,
		"error_pages", stats.ErrorPages,
		"chunks", stats.Chunks,
		"chunks_dir", s.ChunksDir,
		"log_file", res.LogFile,
	)
	return res, nil
}

func (p *Pipeline) extractPages(ctx context.Context, doc parser.Document, stats Stats, hooks Hooks) ([]page.Record, Stats, error) {
	total := doc.NumPages()
	stats.TotalPages = total
	records := make([]page.Record, 0, total)

	for i := 0; i < total; i++ {
		rec, err := p.extractor.Extract(ctx, doc, i)
		if err != nil {
			return nil, stats, fmt.Errorf("extract pages: %w", err)
		}
		records = append(records, rec)
		stats = stats.withPage(rec)

		p.log.Info("page", "page", rec.Number, "total", total, "source", rec.Source)
		if hooks.OnPage != nil {
			hooks.OnPage(i+1, total, rec)
		}
	}
	return records, stats, nil
}
