package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/page"
	"github.com/dgallion1/proofchunk/internal/parser"
	"github.com/dgallion1/proofchunk/internal/raster"
)

// Config controls the per-page fallback.
type Config struct {
	MinTextChars int
	DPI          int
	Language     string // forwarded verbatim to the recognizer
}

// Extractor recovers the text of single pages.
type Extractor struct {
	raster raster.Rasterizer
	ocr    ocr.Recognizer
	cfg    Config
	log    *slog.Logger
}

func New(r raster.Rasterizer, rec ocr.Recognizer, cfg Config, log *slog.Logger) *Extractor {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = MinTextChars
	}
	if cfg.DPI <= 0 {
		cfg.DPI = raster.DefaultDPI
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{raster: r, ocr: rec, cfg: cfg, log: log}
}

// Extract returns the record for the page at the zero-based index. Page-local
// failures are logged and folded into the record; the only error returned is
// a cancelled context, which must abort the run.
func (e *Extractor) Extract(ctx context.Context, doc parser.Document, index int) (page.Record, error) {
	number := index + 1
	out := Resolve(number, e.cfg.MinTextChars, Attempts{
		Text: func() (string, error) {
			return doc.PageText(ctx, index)
		},
		OCR: func() (string, error) {
			e.log.Debug("running ocr", "page", number, "lang", e.cfg.Language)
			return e.recognize(ctx, doc.Path(), index)
		},
	})
	if err := ctx.Err(); err != nil {
		return page.Record{}, fmt.Errorf("page %d: %w", number, err)
	}

	for _, d := range out.Diagnostics {
		e.log.Warn("page-local failure", "page", number, "error", d)
	}
	return out.Record, nil
}

func (e *Extractor) recognize(ctx context.Context, path string, index int) (string, error) {
	img, err := e.raster.RenderPage(ctx, path, index, e.cfg.DPI)
	if err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}
	text, err := e.ocr.Recognize(ctx, img, e.cfg.Language)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.ocr.Name(), err)
	}
	return ocr.Normalize(text), nil
}
