package chunkfile

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrMalformed is returned when a chunk file does not have the expected shape.
var ErrMalformed = errors.New("malformed chunk file")

var (
	chunkIDPattern = regexp.MustCompile(`(?m)^CHUNK_ID:\s*(\d+)\s*$`)
	pagesPattern   = regexp.MustCompile(`(?m)^PAGES:\s*(\d+)-(\d+)\s*$`)
	markerPattern  = regexp.MustCompile(`(?m)^---- \[Page (\d+)\] ----$`)
)

// File is a parsed chunk file.
type File struct {
	ID           int
	StartPage    int
	EndPage      int
	Instructions string
	Pages        []PageText
}

// PageText is one page section of a chunk body.
type PageText struct {
	Number int
	Text   string
}

// Parse reads a chunk file. Section headings are located with goldmark;
// everything after the TEXT heading is taken verbatim, since page text may
// itself contain markdown.
func Parse(src []byte) (*File, error) {
	sections, err := sections(src)
	if err != nil {
		return nil, err
	}

	meta := sections[HeadingMeta]
	m := chunkIDPattern.FindStringSubmatch(meta)
	if m == nil {
		return nil, fmt.Errorf("%w: missing CHUNK_ID", ErrMalformed)
	}
	f := &File{Instructions: strings.TrimSpace(sections[HeadingInstructions])}
	f.ID, _ = strconv.Atoi(m[1])

	p := pagesPattern.FindStringSubmatch(meta)
	if p == nil {
		return nil, fmt.Errorf("%w: missing PAGES", ErrMalformed)
	}
	f.StartPage, _ = strconv.Atoi(p[1])
	f.EndPage, _ = strconv.Atoi(p[2])

	f.Pages = splitPages(sections[HeadingText])
	return f, nil
}

// sections maps each top-level level-3 heading to the raw text below it.
func sections(src []byte) (map[string]string, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	type heading struct {
		title     string
		lineStart int
		bodyStart int
	}
	var found []heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 3 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		title := strings.TrimSpace(string(seg.Value(src)))
		lineStart := bytes.LastIndexByte(src[:seg.Start], '\n') + 1
		bodyStart := len(src)
		if i := bytes.IndexByte(src[seg.Stop:], '\n'); i >= 0 {
			bodyStart = seg.Stop + i + 1
		}
		found = append(found, heading{title: title, lineStart: lineStart, bodyStart: bodyStart})
		if title == HeadingText {
			break
		}
	}

	out := make(map[string]string, 3)
	for i, h := range found {
		if _, seen := out[h.title]; seen {
			continue
		}
		end := len(src)
		if h.title != HeadingText && i+1 < len(found) {
			end = found[i+1].lineStart
		}
		out[h.title] = string(src[h.bodyStart:end])
	}
	for _, want := range []string{HeadingMeta, HeadingInstructions, HeadingText} {
		if _, ok := out[want]; !ok {
			return nil, fmt.Errorf("%w: missing ### %s section", ErrMalformed, want)
		}
	}
	return out, nil
}

func splitPages(body string) []PageText {
	locs := markerPattern.FindAllStringSubmatchIndex(body, -1)
	pages := make([]PageText, 0, len(locs))
	for i, loc := range locs {
		n, _ := strconv.Atoi(body[loc[2]:loc[3]])
		start := loc[1]
		if start < len(body) && body[start] == '\n' {
			start++
		}
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pages = append(pages, PageText{Number: n, Text: strings.TrimRight(body[start:end], "\n")})
	}
	return pages
}

// Check verifies the internal consistency of a parsed chunk file and, when
// name is not empty, that it agrees with the file name.
func (f *File) Check(name string) error {
	var problems []string
	if f.ID <= 0 {
		problems = append(problems, fmt.Sprintf("chunk id %d is not positive", f.ID))
	}
	if f.StartPage > f.EndPage {
		problems = append(problems, fmt.Sprintf("page range %d-%d is inverted", f.StartPage, f.EndPage))
	}
	if len(f.Pages) == 0 {
		problems = append(problems, "no page markers")
	} else {
		if first := f.Pages[0].Number; first != f.StartPage {
			problems = append(problems, fmt.Sprintf("first page marker %d does not match PAGES start %d", first, f.StartPage))
		}
		if last := f.Pages[len(f.Pages)-1].Number; last != f.EndPage {
			problems = append(problems, fmt.Sprintf("last page marker %d does not match PAGES end %d", last, f.EndPage))
		}
		for i := 1; i < len(f.Pages); i++ {
			if f.Pages[i].Number <= f.Pages[i-1].Number {
				problems = append(problems, fmt.Sprintf("page %d follows page %d", f.Pages[i].Number, f.Pages[i-1].Number))
			}
		}
	}
	if f.Instructions != Instructions {
		problems = append(problems, "instruction block differs from the standard brief")
	}
	if name != "" {
		idx, start, end, ok := ParseFilename(name)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("file name %q does not follow chunk_NNN_pSSS-pEEE.md", name))
		case idx != f.ID || start != f.StartPage || end != f.EndPage:
			problems = append(problems, fmt.Sprintf("file name %q disagrees with metadata %03d %d-%d", name, f.ID, f.StartPage, f.EndPage))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(problems, "; "))
	}
	return nil
}
