// Package runlog writes the per-page provenance audit log.
package runlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/proofchunk/internal/page"
)

// FileName is the log file written under the logs directory each run.
const FileName = "page_sources.txt"

// Render writes the two-line header and one row per page, in order.
func Render(w io.Writer, pages []page.Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Page Number | Source Type")
	fmt.Fprintln(bw, strings.Repeat("-", 30))
	for _, p := range pages {
		fmt.Fprintf(bw, "%6d      | %s\n", p.Number, p.Source)
	}
	return bw.Flush()
}

// Write replaces dir/page_sources.txt and returns its path.
func Write(dir string, pages []page.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create run log: %w", err)
	}
	if err := Render(f, pages); err != nil {
		f.Close()
		return "", fmt.Errorf("write run log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close run log: %w", err)
	}
	return path, nil
}
