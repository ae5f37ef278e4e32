// Package mupdf renders pages in-process with MuPDF through go-fitz.
package mupdf

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/dgallion1/proofchunk/internal/raster"
)

// Renderer implements raster.Rasterizer without shelling out. The document
// is reopened per call; pages are rendered rarely and one at a time.
type Renderer struct{}

func (Renderer) RenderPage(ctx context.Context, path string, index, dpi int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = raster.DefaultDPI
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("mupdf open %s: %w", path, err)
	}
	defer doc.Close()

	if index < 0 || index >= doc.NumPage() {
		return nil, fmt.Errorf("mupdf page %d of %d: %w", index+1, doc.NumPage(), raster.ErrNoImage)
	}
	data, err := doc.ImagePNG(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("mupdf page %d: %w", index+1, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("mupdf page %d: %w", index+1, raster.ErrNoImage)
	}
	return data, nil
}
