package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrDocumentNotFound means the input path does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentUnreadable means the path exists but cannot be opened as a document.
	ErrDocumentUnreadable = errors.New("document unreadable")
	// ErrPageOutOfRange is returned for a page index outside [0, NumPages).
	ErrPageOutOfRange = errors.New("page index out of range")
)

// Document is an opened multi-page document.
type Document interface {
	Path() string
	NumPages() int
	// PageText returns the embedded text of the page at the zero-based index.
	PageText(ctx context.Context, index int) (string, error)
	Close() error
}

// Opener opens documents from the filesystem.
type Opener interface {
	Open(path string) (Document, error)
}

// CheckFile verifies that path exists and is a regular file.
func CheckFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrDocumentUnreadable, path)
	}
	return nil
}
