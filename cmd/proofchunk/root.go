package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/proofchunk/internal/config"
	"github.com/dgallion1/proofchunk/internal/engine"
	"github.com/dgallion1/proofchunk/internal/extract"
	"github.com/dgallion1/proofchunk/internal/pipeline"
)

// app holds state shared by the root command and its subcommands.
type app struct {
	log *slog.Logger

	configFile string
	verbose    bool
	logJSON    bool

	maxWords   int
	maxPages   int
	ocrLang    string
	dpi        int
	rasterizer string
	tessdata   string
	outputDir  string
	logsDir    string
	clean      bool
	noFallback bool
}

func newRootCmd(a *app) *cobra.Command {
	d := config.Default()
	cmd := &cobra.Command{
		Use:   "proofchunk <input.pdf>",
		Short: "Split a PDF into proofreading chunks",
		Long: "proofchunk extracts the text of every page of a PDF, falling back to OCR for\n" +
			"scanned pages, and writes size-bounded markdown chunks for proofreading.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.log = newLogger(cmd.ErrOrStderr(), a.verbose, a.logJSON)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.resolveConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, cfg, args[0])
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&a.logJSON, "log-json", false, "log as JSON")

	f := cmd.Flags()
	f.IntVar(&a.maxWords, "max-words", d.MaxWords, "word ceiling per chunk")
	f.IntVar(&a.maxPages, "max-pages", d.MaxPages, "page ceiling per chunk")
	f.StringVar(&a.ocrLang, "ocr-lang", d.OCRLang, "tesseract language(s), e.g. ara+eng")
	f.IntVar(&a.dpi, "dpi", d.DPI, "rasterization resolution for OCR")
	f.StringVar(&a.rasterizer, "rasterizer", d.Rasterizer, "page renderer for OCR: pdftoppm or mupdf")
	f.StringVar(&a.tessdata, "tessdata", d.TessdataDir, "tessdata directory")
	f.StringVar(&a.outputDir, "output-dir", d.OutputDir, "output root; chunks go to <dir>/chunks")
	f.StringVar(&a.logsDir, "logs-dir", d.LogsDir, "directory for page_sources.txt")
	f.BoolVar(&a.clean, "clean", false, "remove chunk files from earlier runs first")
	f.BoolVar(&a.noFallback, "no-pdftotext", false, "do not retry failed pages with pdftotext")

	cmd.AddCommand(newVerifyCmd(a))
	return cmd
}

// newLogger strips time and level from text output so progress reads
// cleanly in a terminal.
func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || (a.Key == slog.LevelKey && !verbose) {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// resolveConfig layers environment, the optional YAML file and any flags
// set on the command line, in that order.
func (a *app) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if a.configFile != "" {
		if err := cfg.LoadFile(a.configFile); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("max-words") {
		cfg.MaxWords = a.maxWords
	}
	if f.Changed("max-pages") {
		cfg.MaxPages = a.maxPages
	}
	if f.Changed("ocr-lang") {
		cfg.OCRLang = a.ocrLang
	}
	if f.Changed("dpi") {
		cfg.DPI = a.dpi
	}
	if f.Changed("rasterizer") {
		cfg.Rasterizer = a.rasterizer
	}
	if f.Changed("tessdata") {
		cfg.TessdataDir = a.tessdata
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = a.outputDir
	}
	if f.Changed("logs-dir") {
		cfg.LogsDir = a.logsDir
	}
	if f.Changed("no-pdftotext") {
		cfg.PDFFallbackPdftotext = !a.noFallback
	}
	return cfg, cfg.Validate()
}

func (a *app) run(ctx context.Context, cfg config.Config, input string) error {
	log := a.log
	collab, stats := engine.Build(cfg, 0, log)
	ext := extract.New(collab.Rasterizer, collab.Recognizer, extract.Config{
		MinTextChars: cfg.MinTextChars,
		DPI:          cfg.DPI,
		Language:     cfg.OCRLang,
	}, log)

	start := time.Now()
	res, err := pipeline.New(collab.Opener, ext, log).Run(ctx, input, pipeline.Settings{
		Limits:    cfg.Limits(),
		ChunksDir: cfg.ChunksDir(),
		LogsDir:   cfg.LogsDir,
		Clean:     a.clean,
	}, pipeline.Hooks{})
	if err != nil {
		return fmt.Errorf("process %s: %w", input, err)
	}

	snap := stats.Snapshot()
	log.Info("summary",
		"total_pages", res.Stats.TotalPages,
		"text_pages", res.Stats.TextPages,
		"ocr_pages", res.Stats.OCRPages,
		"error_pages", res.Stats.ErrorPages,
		"total_words", res.Stats.TotalWords,
		"chunks", res.Stats.Chunks,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if snap.Calls > 0 {
		log.Info("ocr latency",
			"calls", snap.Calls,
			"failures", snap.Failures,
			"avg_ms", snap.AvgMs,
			"p50_ms", snap.P50Ms,
			"p95_ms", snap.P95Ms,
			"max_ms", snap.MaxMs,
		)
	}
	return nil
}
