// Package tesseract implements ocr.Recognizer with the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/dgallion1/proofchunk/internal/ocr"
)

// Engine recognizes page images with libtesseract. A fresh client is
// created per call; gosseract clients are not safe for concurrent use.
type Engine struct {
	TessdataDir string
	DPI         int // passed as user_defined_dpi when positive
	PSM         int // page segmentation mode; engine default when zero

	clientFactory func() *gosseract.Client
}

func New(tessdataDir string, dpi int) *Engine {
	return &Engine{TessdataDir: tessdataDir, DPI: dpi, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	factory := e.clientFactory
	if factory == nil {
		factory = gosseract.NewClient
	}
	c := factory()
	defer c.Close()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if langs := ocr.Languages(language); len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return "", fmt.Errorf("set languages %q: %w", language, err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if e.DPI > 0 {
		if err := c.SetVariable("user_defined_dpi", strconv.Itoa(e.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if e.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.PSM)); err != nil {
			return "", fmt.Errorf("set page segmentation mode: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
