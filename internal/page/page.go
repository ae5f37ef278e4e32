package page

import "strings"

// Source records how a page's text was obtained.
type Source string

const (
	SourceText  Source = "TEXT"  // direct extraction from the text layer
	SourceOCR   Source = "OCR"   // optical recognition of the rendered page
	SourceError Source = "ERROR" // both paths failed; text is empty
)

// Record is the recovered text and provenance for one document page.
type Record struct {
	Number int    // 1-based, as printed on the page
	Text   string // empty only when Source is SourceError
	Source Source
}

// WordCount counts whitespace-separated words in the page text.
func (r Record) WordCount() int {
	return CountWords(r.Text)
}

// CountWords splits on any run of Unicode whitespace.
func CountWords(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}
