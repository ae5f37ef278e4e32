package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/page"
)

var longText = strings.Repeat("a", MinTextChars)

func textAttempt(s string, err error) func() (string, error) {
	return func() (string, error) { return s, err }
}

func TestResolve_TextAtThreshold(t *testing.T) {
	ocrCalled := false
	out := Resolve(3, MinTextChars, Attempts{
		Text: textAttempt("  \n"+longText+"\n\n", nil),
		OCR:  func() (string, error) { ocrCalled = true; return "", nil },
	})
	if out.Record.Source != page.SourceText {
		t.Fatalf("expected TEXT, got %s", out.Record.Source)
	}
	if out.Record.Text != longText {
		t.Errorf("expected trimmed text passed through, got %q", out.Record.Text)
	}
	if out.Record.Number != 3 {
		t.Errorf("expected page number 3, got %d", out.Record.Number)
	}
	if ocrCalled {
		t.Error("expected recognition not to run for a usable text layer")
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", out.Diagnostics)
	}
}

func TestResolve_TextPreservesInnerWhitespace(t *testing.T) {
	in := "line one of the page text\n\n  line two of the page text  "
	out := Resolve(1, MinTextChars, Attempts{Text: textAttempt(in, nil), OCR: textAttempt("", nil)})
	if out.Record.Text != strings.TrimSpace(in) {
		t.Errorf("expected only outer whitespace trimmed, got %q", out.Record.Text)
	}
}

func TestResolve_CountsCharactersNotBytes(t *testing.T) {
	// 39 Arabic letters are 78 bytes but still below the threshold.
	short := strings.Repeat("ب", MinTextChars-1)
	out := Resolve(1, MinTextChars, Attempts{
		Text: textAttempt(short, nil),
		OCR:  textAttempt("recognized", nil),
	})
	if out.Record.Source != page.SourceOCR {
		t.Fatalf("expected OCR for %d characters, got %s", MinTextChars-1, out.Record.Source)
	}
}

func TestResolve_ShortTextFallsBackToOCR(t *testing.T) {
	out := Resolve(2, MinTextChars, Attempts{
		Text: textAttempt("  12  ", nil),
		OCR:  textAttempt("  scanned words \n", nil),
	})
	if out.Record.Source != page.SourceOCR {
		t.Fatalf("expected OCR, got %s", out.Record.Source)
	}
	if out.Record.Text != "scanned words" {
		t.Errorf("expected trimmed OCR text, got %q", out.Record.Text)
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics for short text, got %v", out.Diagnostics)
	}
}

func TestResolve_ExtractionErrorFallsBackToOCR(t *testing.T) {
	out := Resolve(4, MinTextChars, Attempts{
		Text: textAttempt("", errors.New("bad content stream")),
		OCR:  textAttempt("ocr text", nil),
	})
	if out.Record.Source != page.SourceOCR {
		t.Fatalf("expected OCR, got %s", out.Record.Source)
	}
	if len(out.Diagnostics) != 1 || !errors.Is(out.Diagnostics[0], ErrPageExtraction) {
		t.Fatalf("expected one ErrPageExtraction diagnostic, got %v", out.Diagnostics)
	}
}

func TestResolve_RecognitionFailureIsError(t *testing.T) {
	out := Resolve(5, MinTextChars, Attempts{
		Text: textAttempt("", errors.New("bad content stream")),
		OCR:  textAttempt("partial", errors.New("tesseract crashed")),
	})
	if out.Record.Source != page.SourceError {
		t.Fatalf("expected ERROR, got %s", out.Record.Source)
	}
	if out.Record.Text != "" {
		t.Errorf("expected empty text on ERROR, got %q", out.Record.Text)
	}
	if len(out.Diagnostics) != 2 {
		t.Fatalf("expected two diagnostics, got %v", out.Diagnostics)
	}
	if !errors.Is(out.Diagnostics[1], ErrPageRecognition) {
		t.Errorf("expected ErrPageRecognition, got %v", out.Diagnostics[1])
	}
}

func TestResolve_BlankRecognitionIsError(t *testing.T) {
	out := Resolve(6, MinTextChars, Attempts{
		Text: textAttempt("", nil),
		OCR:  textAttempt(" \n\t", nil),
	})
	if out.Record.Source != page.SourceError {
		t.Fatalf("expected ERROR for blank recognition, got %s", out.Record.Source)
	}
	if !errors.Is(out.Diagnostics[0], ocr.ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", out.Diagnostics[0])
	}
}

func TestResolve_DefaultsThreshold(t *testing.T) {
	out := Resolve(1, 0, Attempts{
		Text: textAttempt(strings.Repeat("x", MinTextChars-1), nil),
		OCR:  textAttempt("ocr", nil),
	})
	if out.Record.Source != page.SourceOCR {
		t.Errorf("expected default threshold of %d, got source %s", MinTextChars, out.Record.Source)
	}
}

// Collaborator fakes for Extractor.

type fakeDoc struct {
	pages []string
	errs  map[int]error
}

func (d *fakeDoc) Path() string  { return "fake.pdf" }
func (d *fakeDoc) NumPages() int { return len(d.pages) }
func (d *fakeDoc) Close() error  { return nil }

func (d *fakeDoc) PageText(_ context.Context, index int) (string, error) {
	if err := d.errs[index]; err != nil {
		return "", err
	}
	return d.pages[index], nil
}

type fakeRaster struct {
	calls []int
	dpi   int
	err   error
}

func (r *fakeRaster) RenderPage(_ context.Context, path string, index, dpi int) ([]byte, error) {
	r.calls = append(r.calls, index)
	r.dpi = dpi
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png"), nil
}

type fakeRecognizer struct {
	text string
	err  error
	lang string
	hook func()
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte, lang string) (string, error) {
	f.lang = lang
	if f.hook != nil {
		f.hook()
	}
	return f.text, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractor_RendersOnlyTheFailingPage(t *testing.T) {
	doc := &fakeDoc{pages: []string{longText, "", longText}}
	rast := &fakeRaster{}
	rec := &fakeRecognizer{text: "مرحبا"}
	e := New(rast, rec, Config{Language: "ara+eng"}, quietLogger())

	var got []page.Record
	for i := 0; i < doc.NumPages(); i++ {
		r, err := e.Extract(context.Background(), doc, i)
		if err != nil {
			t.Fatalf("page %d: unexpected error: %v", i+1, err)
		}
		got = append(got, r)
	}

	want := []page.Source{page.SourceText, page.SourceOCR, page.SourceText}
	for i, w := range want {
		if got[i].Source != w {
			t.Errorf("page %d: expected %s, got %s", i+1, w, got[i].Source)
		}
		if got[i].Number != i+1 {
			t.Errorf("page %d: expected number %d, got %d", i+1, i+1, got[i].Number)
		}
	}
	if len(rast.calls) != 1 || rast.calls[0] != 1 {
		t.Errorf("expected only index 1 rendered, got %v", rast.calls)
	}
	if rast.dpi != 300 {
		t.Errorf("expected default dpi 300, got %d", rast.dpi)
	}
	if rec.lang != "ara+eng" {
		t.Errorf("expected language forwarded verbatim, got %q", rec.lang)
	}
}

func TestExtractor_RasterFailureIsPageLocal(t *testing.T) {
	doc := &fakeDoc{pages: []string{""}}
	e := New(&fakeRaster{err: errors.New("pdftoppm missing")}, &fakeRecognizer{text: "x"}, Config{}, quietLogger())

	r, err := e.Extract(context.Background(), doc, 0)
	if err != nil {
		t.Fatalf("expected page-local failure to be swallowed, got %v", err)
	}
	if r.Source != page.SourceError || r.Text != "" {
		t.Errorf("expected empty ERROR record, got %+v", r)
	}
}

func TestExtractor_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	doc := &fakeDoc{pages: []string{""}}
	rec := &fakeRecognizer{err: context.Canceled, hook: cancel}
	e := New(&fakeRaster{}, rec, Config{}, quietLogger())

	_, err := e.Extract(ctx, doc, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
