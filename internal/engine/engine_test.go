package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/proofchunk/internal/config"
	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/raster"
	"github.com/dgallion1/proofchunk/internal/raster/mupdf"
)

func TestBuild_SelectsRasterizer(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	collab, stats := Build(cfg, 0, log)
	if _, ok := collab.Rasterizer.(*raster.Pdftoppm); !ok {
		t.Errorf("expected pdftoppm rasterizer, got %T", collab.Rasterizer)
	}
	if stats == nil {
		t.Fatal("expected latency stats")
	}
	timed, ok := collab.Recognizer.(ocr.Timed)
	if !ok || timed.Stats != stats {
		t.Errorf("expected recognizer to report into the returned stats")
	}

	cfg.Rasterizer = config.RasterMuPDF
	collab, _ = Build(cfg, 0, log)
	if _, ok := collab.Rasterizer.(mupdf.Renderer); !ok {
		t.Errorf("expected mupdf rasterizer, got %T", collab.Rasterizer)
	}
}

func TestTools(t *testing.T) {
	cfg := config.Default()
	if got := tools(cfg); len(got) != 2 {
		t.Errorf("expected pdftotext and pdftoppm, got %v", got)
	}
	cfg.PDFFallbackPdftotext = false
	cfg.Rasterizer = config.RasterMuPDF
	if got := tools(cfg); len(got) != 0 {
		t.Errorf("expected no external tools, got %v", got)
	}
}
