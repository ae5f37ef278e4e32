package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgallion1/proofchunk/internal/runner"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser opens PDF files. Page text comes from the Go library first,
// then from pdftotext if the library fails on that page.
type PDFParser struct {
	FallbackPdftotext bool
	Pdftotext         string // binary name or path; "pdftotext" when empty
	Runner            runner.Runner
	Log               *slog.Logger
}

func (p *PDFParser) Open(path string) (doc Document, err error) {
	// The library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, err)
	}

	bin := p.Pdftotext
	if bin == "" {
		bin = "pdftotext"
	}
	run := p.Runner
	if run == nil {
		run = runner.Exec{Log: p.Log}
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	return &pdfDocument{
		path:      path,
		file:      f,
		reader:    reader,
		numPages:  reader.NumPage(),
		fallback:  p.FallbackPdftotext,
		pdftotext: bin,
		runner:    run,
		log:       log,
	}, nil
}

type pdfDocument struct {
	path     string
	file     *os.File
	reader   *pdflib.Reader
	numPages int

	fallback  bool
	pdftotext string
	runner    runner.Runner
	log       *slog.Logger
}

func (d *pdfDocument) Path() string  { return d.path }
func (d *pdfDocument) NumPages() int { return d.numPages }

func (d *pdfDocument) Close() error {
	return d.file.Close()
}

func (d *pdfDocument) PageText(ctx context.Context, index int) (string, error) {
	if index < 0 || index >= d.numPages {
		return "", fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, d.numPages)
	}
	text, err := d.libraryText(index)
	if err != nil && d.fallback {
		d.log.Debug("pdf library failed, trying pdftotext", "page", index+1, "error", err)
		text, err = d.pdftotextPage(ctx, index)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (d *pdfDocument) libraryText(index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("decode page %d: %v", index+1, r)
		}
	}()

	pg := d.reader.Page(index + 1)
	if pg.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", index+1)
	}
	text, err = pg.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", index+1, err)
	}
	return text, nil
}

func (d *pdfDocument) pdftotextPage(ctx context.Context, index int) (string, error) {
	n := strconv.Itoa(index + 1)
	out, errb, err := d.runner.Run(ctx, d.pdftotext,
		"-f", n, "-l", n, "-layout", "-enc", "UTF-8", "-eol", "unix", d.path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext page %s: %w: %s", n, err, strings.TrimSpace(string(errb)))
	}
	// pdftotext terminates every page with a form feed.
	return strings.TrimRight(string(out), "\f"), nil
}
