// Package chunkfile writes and reads the per-chunk markdown units handed to
// proofreaders.
package chunkfile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/proofchunk/internal/chunker"
)

var filenamePattern = regexp.MustCompile(`^chunk_(\d{3,})_p(\d{3,})-p(\d{3,})\.md$`)

// Filename derives the file name for a chunk. It is a pure function of its
// arguments so identical runs produce identical names.
func Filename(index, startPage, endPage int) string {
	return fmt.Sprintf("chunk_%03d_p%03d-p%03d.md", index, startPage, endPage)
}

// ParseFilename inverts Filename.
func ParseFilename(name string) (index, startPage, endPage int, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, 0, false
	}
	index, _ = strconv.Atoi(m[1])
	startPage, _ = strconv.Atoi(m[2])
	endPage, _ = strconv.Atoi(m[3])
	return index, startPage, endPage, true
}

// PageMarker is the boundary line written before each page's text.
func PageMarker(number int) string {
	return fmt.Sprintf("---- [Page %d] ----", number)
}

// Render builds the full chunk file body.
func Render(c chunker.Chunk) []byte {
	var sb strings.Builder
	sb.WriteString("### " + HeadingMeta + "\n")
	fmt.Fprintf(&sb, "CHUNK_ID: %03d\n", c.Index)
	fmt.Fprintf(&sb, "PAGES: %d-%d\n", c.StartPage(), c.EndPage())
	sb.WriteString("\n### " + HeadingInstructions + "\n")
	sb.WriteString(Instructions)
	sb.WriteString("\n\n### " + HeadingText + "\n")
	for i, p := range c.Pages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(PageMarker(p.Number))
		sb.WriteString("\n")
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// Writer persists chunks under Dir.
type Writer struct {
	Dir string
}

// Prepare creates Dir if needed. Safe to call when it already exists.
func (w Writer) Prepare() error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create chunks dir: %w", err)
	}
	return nil
}

// Write stores one chunk and returns the path written.
func (w Writer) Write(c chunker.Chunk) (string, error) {
	if len(c.Pages) == 0 {
		return "", fmt.Errorf("chunk %d has no pages", c.Index)
	}
	path := filepath.Join(w.Dir, Filename(c.Index, c.StartPage(), c.EndPage()))
	if err := os.WriteFile(path, Render(c), 0o644); err != nil {
		return "", fmt.Errorf("write chunk %d: %w", c.Index, err)
	}
	return path, nil
}

// List returns the chunk file names in Dir, sorted.
func (w Writer) List() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && filenamePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Clean removes chunk files left by earlier runs. Other files are kept.
func (w Writer) Clean() (int, error) {
	names, err := w.List()
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list chunks dir: %w", err)
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(w.Dir, name)); err != nil {
			return 0, fmt.Errorf("remove stale chunk: %w", err)
		}
	}
	return len(names), nil
}
