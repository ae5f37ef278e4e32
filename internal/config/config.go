package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/proofchunk/internal/chunker"
	"github.com/dgallion1/proofchunk/internal/extract"
	"github.com/dgallion1/proofchunk/internal/raster"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Rasterizer backends.
const (
	RasterPdftoppm = "pdftoppm"
	RasterMuPDF    = "mupdf"
)

type Config struct {
	// Chunking
	MaxWords int `yaml:"max_words"`
	MaxPages int `yaml:"max_pages"`

	// Extraction
	OCRLang              string `yaml:"ocr_lang"`
	DPI                  int    `yaml:"dpi"`
	MinTextChars         int    `yaml:"min_text_chars"`
	PDFFallbackPdftotext bool   `yaml:"pdf_fallback_pdftotext"`
	Pdftotext            string `yaml:"pdftotext"`
	Pdftoppm             string `yaml:"pdftoppm"`
	Rasterizer           string `yaml:"rasterizer"` // "pdftoppm" or "mupdf"
	TessdataDir          string `yaml:"tessdata_dir"`
	TesseractPSM         int    `yaml:"tesseract_psm"`

	// Output layout, relative to the working directory
	OutputDir string `yaml:"output_dir"`
	LogsDir   string `yaml:"logs_dir"`

	// Server
	Port           string        `yaml:"port"`
	APIKey         string        `yaml:"-"`
	WorkerCount    int           `yaml:"worker_count"`
	MaxQueueSize   int           `yaml:"max_queue_size"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	JobTTL         time.Duration `yaml:"job_ttl"`
	WorkDir        string        `yaml:"work_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxWords: 3500,
		MaxPages: 10,

		OCRLang:              "ara+eng",
		DPI:                  raster.DefaultDPI,
		MinTextChars:         extract.MinTextChars,
		PDFFallbackPdftotext: true,
		Pdftotext:            "pdftotext",
		Pdftoppm:             "pdftoppm",
		Rasterizer:           RasterPdftoppm,

		OutputDir: "output",
		LogsDir:   "logs",

		Port:           "8090",
		WorkerCount:    1,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         1 * time.Hour,
		WorkDir:        "jobs",
	}
}

// Load applies PROOFCHUNK_* environment variables over the defaults.
func Load() Config {
	d := Default()
	cfg := Config{
		MaxWords: envInt("PROOFCHUNK_MAX_WORDS", d.MaxWords),
		MaxPages: envInt("PROOFCHUNK_MAX_PAGES", d.MaxPages),

		OCRLang:              envOr("PROOFCHUNK_OCR_LANG", d.OCRLang),
		DPI:                  envInt("PROOFCHUNK_DPI", d.DPI),
		MinTextChars:         envInt("PROOFCHUNK_MIN_TEXT_CHARS", d.MinTextChars),
		PDFFallbackPdftotext: envBool("PROOFCHUNK_PDF_FALLBACK_PDFTOTEXT", d.PDFFallbackPdftotext),
		Pdftotext:            envOr("PROOFCHUNK_PDFTOTEXT", d.Pdftotext),
		Pdftoppm:             envOr("PROOFCHUNK_PDFTOPPM", d.Pdftoppm),
		Rasterizer:           envOr("PROOFCHUNK_RASTERIZER", d.Rasterizer),
		TessdataDir:          os.Getenv("TESSDATA_PREFIX"),
		TesseractPSM:         envInt("PROOFCHUNK_TESSERACT_PSM", 0),

		OutputDir: envOr("PROOFCHUNK_OUTPUT_DIR", d.OutputDir),
		LogsDir:   envOr("PROOFCHUNK_LOGS_DIR", d.LogsDir),

		Port:           envOr("PORT", d.Port),
		APIKey:         os.Getenv("PROOFCHUNK_API_KEY"),
		WorkerCount:    envInt("WORKER_COUNT", d.WorkerCount),
		MaxQueueSize:   envInt("MAX_QUEUE_SIZE", d.MaxQueueSize),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", d.MaxUploadBytes),
		JobTTL:         envDuration("JOB_TTL", d.JobTTL),
		WorkDir:        envOr("PROOFCHUNK_WORK_DIR", d.WorkDir),
	}
	cfg.clampServer()
	return cfg
}

// LoadFile overlays the keys present in a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.clampServer()
	return nil
}

// Server knobs fall back to defaults rather than failing.
func (c *Config) clampServer() {
	d := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
}

// Validate rejects settings the pipeline cannot run with. Chunk ceilings
// are never silently defaulted.
func (c Config) Validate() error {
	var problems []string
	if err := c.Limits().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if strings.TrimSpace(c.OCRLang) == "" {
		problems = append(problems, "ocr language is required")
	}
	if c.DPI <= 0 {
		problems = append(problems, fmt.Sprintf("dpi must be positive, got %d", c.DPI))
	}
	if c.MinTextChars <= 0 {
		problems = append(problems, fmt.Sprintf("min text chars must be positive, got %d", c.MinTextChars))
	}
	if c.Rasterizer != RasterPdftoppm && c.Rasterizer != RasterMuPDF {
		problems = append(problems, fmt.Sprintf("unknown rasterizer %q", c.Rasterizer))
	}
	if c.OutputDir == "" || c.LogsDir == "" {
		problems = append(problems, "output and logs directories are required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: PROOFCHUNK_API_KEY is required", ErrInvalid)
	}
	if c.WorkDir == "" {
		return fmt.Errorf("%w: work dir is required", ErrInvalid)
	}
	return nil
}

func (c Config) Limits() chunker.Limits {
	return chunker.Limits{MaxWords: c.MaxWords, MaxPages: c.MaxPages}
}

// ChunksDir is where chunk files are written.
func (c Config) ChunksDir() string {
	return filepath.Join(c.OutputDir, "chunks")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
