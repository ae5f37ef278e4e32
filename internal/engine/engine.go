// Package engine assembles the parser, rasterizer and recognizer selected
// by configuration.
package engine

import (
	"log/slog"
	"time"

	"github.com/dgallion1/proofchunk/internal/config"
	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/ocr/tesseract"
	"github.com/dgallion1/proofchunk/internal/parser"
	"github.com/dgallion1/proofchunk/internal/pipeline"
	"github.com/dgallion1/proofchunk/internal/raster"
	"github.com/dgallion1/proofchunk/internal/raster/mupdf"
	"github.com/dgallion1/proofchunk/internal/runner"
)

// Build returns the collaborators for cfg and the latency stats the
// recognizer reports into. statsWindow of zero keeps every sample.
func Build(cfg config.Config, statsWindow time.Duration, log *slog.Logger) (pipeline.Collaborators, *ocr.LatencyStats) {
	for _, bin := range tools(cfg) {
		if !runner.Available(bin) {
			log.Warn("external tool not found", "tool", bin)
		}
	}

	exec := runner.Exec{Log: log}
	var rast raster.Rasterizer = mupdf.Renderer{}
	if cfg.Rasterizer == config.RasterPdftoppm {
		rast = raster.NewPdftoppm(cfg.Pdftoppm, log)
	}

	tess := tesseract.New(cfg.TessdataDir, cfg.DPI)
	tess.PSM = cfg.TesseractPSM
	stats := ocr.NewLatencyStats(statsWindow)

	return pipeline.Collaborators{
		Opener: &parser.PDFParser{
			FallbackPdftotext: cfg.PDFFallbackPdftotext,
			Pdftotext:         cfg.Pdftotext,
			Runner:            exec,
			Log:               log,
		},
		Rasterizer: rast,
		Recognizer: ocr.Timed{Recognizer: tess, Stats: stats},
	}, stats
}

// tools lists the external binaries cfg will shell out to.
func tools(cfg config.Config) []string {
	var bins []string
	if cfg.PDFFallbackPdftotext {
		bins = append(bins, cfg.Pdftotext)
	}
	if cfg.Rasterizer == config.RasterPdftoppm {
		bins = append(bins, cfg.Pdftoppm)
	}
	return bins
}
