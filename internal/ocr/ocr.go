// Package ocr defines the recognizer contract used for scanned pages.
package ocr

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyResult means the engine ran but recognized no text.
var ErrEmptyResult = errors.New("recognizer returned no text")

// Recognizer turns an encoded page image into text.
type Recognizer interface {
	Name() string
	// Recognize runs recognition with a tesseract-style language spec
	// such as "ara+eng".
	Recognize(ctx context.Context, image []byte, language string) (string, error)
}

// Languages splits a "ara+eng" style spec into its parts.
func Languages(spec string) []string {
	var langs []string
	for _, l := range strings.Split(spec, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// Normalize composes recognizer output to NFC and trims surrounding
// whitespace. Engines emit decomposed marks for some Arabic diacritics.
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// Timed wraps a Recognizer and records every call's latency.
type Timed struct {
	Recognizer
	Stats *LatencyStats
}

func (t Timed) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	start := time.Now()
	text, err := t.Recognizer.Recognize(ctx, image, language)
	if t.Stats != nil {
		t.Stats.Record(time.Since(start), err != nil)
	}
	return text, err
}
