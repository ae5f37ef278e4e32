package chunker

import (
	"errors"
	"fmt"

	"github.com/dgallion1/proofchunk/internal/page"
)

// ErrInvalidLimits is returned when a ceiling is not a positive integer.
var ErrInvalidLimits = errors.New("chunk limits must be positive")

// Limits bounds the size of each chunk.
type Limits struct {
	MaxWords int // soft: a single page above it still forms its own chunk
	MaxPages int
}

// DefaultLimits returns the command-line defaults.
func DefaultLimits() Limits {
	return Limits{MaxWords: 3500, MaxPages: 10}
}

func (l Limits) Validate() error {
	if l.MaxWords <= 0 {
		return fmt.Errorf("%w: max words %d", ErrInvalidLimits, l.MaxWords)
	}
	if l.MaxPages <= 0 {
		return fmt.Errorf("%w: max pages %d", ErrInvalidLimits, l.MaxPages)
	}
	return nil
}

// Chunk is a run of consecutive pages emitted as one proofreading unit.
type Chunk struct {
	Index int // 1-based
	Pages []page.Record
	Words int
}

func (c Chunk) StartPage() int { return c.Pages[0].Number }
func (c Chunk) EndPage() int   { return c.Pages[len(c.Pages)-1].Number }

// Pack partitions pages, in order, into chunks with a single greedy scan.
// A page is never split; the open chunk is closed before a page only when
// the chunk already holds something and taking the page would overflow
// either ceiling.
func Pack(pages []page.Record, limits Limits) ([]Chunk, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	var chunks []Chunk
	var current []page.Record
	currentWords := 0

	flush := func() {
		chunks = append(chunks, Chunk{
			Index: len(chunks) + 1,
			Pages: current,
			Words: currentWords,
		})
		current = nil
		currentWords = 0
	}

	for _, p := range pages {
		words := p.WordCount()
		if len(current) > 0 && (currentWords+words > limits.MaxWords || len(current) >= limits.MaxPages) {
			flush()
		}
		current = append(current, p)
		currentWords += words
	}
	if len(current) > 0 {
		flush()
	}
	return chunks, nil
}
