package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/proofchunk/internal/ocr"
	"github.com/dgallion1/proofchunk/internal/page"
)

// MinTextChars is the shortest stripped text layer, in characters, that is
// trusted without falling back to recognition.
const MinTextChars = 40

var (
	// ErrPageExtraction wraps a failure of the direct text path.
	ErrPageExtraction = errors.New("page text extraction failed")
	// ErrPageRecognition wraps a failure of the recognition path.
	ErrPageRecognition = errors.New("page recognition failed")
)

type state int

const (
	attemptingText state = iota
	attemptingOCR
	resolved
)

// Attempts holds the two ways of getting a page's text.
type Attempts struct {
	Text func() (string, error)
	OCR  func() (string, error)
}

// Outcome is the resolved record for a page plus the page-local failures
// that were downgraded on the way.
type Outcome struct {
	Record      page.Record
	Diagnostics []error
}

// Resolve applies the fallback policy to one page. It never fails: every
// path ends in a TEXT, OCR or ERROR record.
func Resolve(number, minChars int, a Attempts) Outcome {
	if minChars <= 0 {
		minChars = MinTextChars
	}
	out := Outcome{Record: page.Record{Number: number}}

	st := attemptingText
	for st != resolved {
		switch st {
		case attemptingText:
			text, err := a.Text()
			if err != nil {
				out.Diagnostics = append(out.Diagnostics, fmt.Errorf("%w: page %d: %w", ErrPageExtraction, number, err))
				st = attemptingOCR
				continue
			}
			text = strings.TrimSpace(text)
			if utf8.RuneCountInString(text) < minChars {
				st = attemptingOCR
				continue
			}
			out.Record.Text, out.Record.Source = text, page.SourceText
			st = resolved

		case attemptingOCR:
			text, err := a.OCR()
			if err == nil && strings.TrimSpace(text) == "" {
				err = ocr.ErrEmptyResult
			}
			if err != nil {
				out.Diagnostics = append(out.Diagnostics, fmt.Errorf("%w: page %d: %w", ErrPageRecognition, number, err))
				out.Record.Text, out.Record.Source = "", page.SourceError
			} else {
				out.Record.Text, out.Record.Source = strings.TrimSpace(text), page.SourceOCR
			}
			st = resolved
		}
	}
	return out
}
