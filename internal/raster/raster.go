// Package raster renders single document pages to bitmaps for recognition.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/proofchunk/internal/runner"
)

// DefaultDPI is the resolution pages are rendered at before recognition.
const DefaultDPI = 300

// ErrNoImage means the renderer ran but produced no image.
var ErrNoImage = errors.New("no image rendered")

// Rasterizer turns one page of a document into an encoded image.
type Rasterizer interface {
	// RenderPage renders the page at the zero-based index and returns PNG bytes.
	RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error)
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	Binary string // "pdftoppm" when empty
	TmpDir string // os.TempDir() when empty
	Runner runner.Runner
	Log    *slog.Logger
}

func NewPdftoppm(binary string, log *slog.Logger) *Pdftoppm {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &Pdftoppm{Binary: binary, Runner: runner.Exec{Log: log}, Log: log}
}

func (p *Pdftoppm) RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	tmpDir, err := os.MkdirTemp(p.TmpDir, "proofchunk-page-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	n := strconv.Itoa(index + 1)
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -f N -l N -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := p.Runner.Run(ctx, p.binary(),
		"-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-png", "-singlefile", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %s: %w: %s", n, err, strings.TrimSpace(string(errb)))
	}

	data, err := os.ReadFile(prefix + ".png")
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("pdftoppm page %s: %w", n, ErrNoImage)
	}
	if err != nil {
		return nil, fmt.Errorf("read rendered page %s: %w", n, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("pdftoppm page %s: %w", n, ErrNoImage)
	}
	return data, nil
}

func (p *Pdftoppm) binary() string {
	if p.Binary == "" {
		return "pdftoppm"
	}
	return p.Binary
}
