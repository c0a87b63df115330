// Package chunker splits raw text into overlapping segments sized for
// embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of overlapping characters.
	DefaultChunkOverlap = 200

	// DefaultMinContentChars is the number of letters or digits a segment
	// needs before it is worth indexing.
	DefaultMinContentChars = 3
)

var (
	// DocumentSeparators split prose on paragraphs, lines, then words.
	DocumentSeparators = []string{"\n\n", "\n", " ", ""}

	// CommentSeparators also break on sentence ends, which short comments
	// use more than line breaks.
	CommentSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}
)

// Split cuts text into segments of at most chunkSize characters using the
// separators in priority order, falling back to a hard character cut.
// Every segment after the first starts with the last overlap characters of
// the one before it (all of it when it is shorter).
func Split(text string, chunkSize, overlap int, separators []string) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, chunkSize)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(separators) == 0 || separators[len(separators)-1] != "" {
		separators = append(append([]string{}, separators...), "")
	}

	// Pieces leave room for the carried-over tail of their predecessor.
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize-overlap),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators(separators),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	kept := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}

	out := make([]string, len(kept))
	pos := 0
	for i, p := range kept {
		gap := ""
		if at := strings.Index(text[pos:], p); at >= 0 {
			gap = text[pos : pos+at]
			pos += at + len(p)
		}
		if i == 0 || overlap == 0 {
			out[i] = p
			continue
		}
		carried := lastRunes(out[i-1], overlap)
		room := chunkSize - utf8.RuneCountInString(carried) - utf8.RuneCountInString(p)
		out[i] = carried + firstRunes(gap, max(room, 0)) + p
	}
	return out, nil
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Chunker carries a split configuration and drops segments without enough
// content to be meaningful.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
	minContent int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(separators []string) Option {
	return func(c *Chunker) {
		if len(separators) > 0 {
			c.separators = separators
		}
	}
}

// WithMinContentChars sets the letter/digit threshold used by Meaningful.
func WithMinContentChars(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.minContent = n
		}
	}
}

// New creates a Chunker. Without options it splits documents with the
// default size and overlap.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DocumentSeparators,
		minContent: DefaultMinContentChars,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// WithCommentSeparators returns a copy of c that splits on sentence ends.
func (c *Chunker) WithCommentSeparators() *Chunker {
	cp := *c
	cp.separators = CommentSeparators
	return &cp
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text and keeps only meaningful segments.
func (c *Chunker) Split(text string) ([]string, error) {
	chunks, err := Split(text, c.chunkSize, c.overlap, c.separators)
	if err != nil {
		return nil, err
	}
	kept := chunks[:0]
	for _, chunk := range chunks {
		if c.Meaningful(chunk) {
			kept = append(kept, chunk)
		}
	}
	return kept, nil
}

// Meaningful reports whether text has at least the minimum number of
// letters or digits.
func (c *Chunker) Meaningful(text string) bool {
	return contentChars(text) >= c.minContent
}

func contentChars(text string) int {
	n := 0
	for _, r := range text {
		if isContentRune(r) {
			n++
		}
	}
	return n
}

// Hangul compatibility jamo (ㅋ, ㅎ, ...) are laughter and filler, not words.
func isContentRune(r rune) bool {
	if r >= 0x3130 && r <= 0x318F {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
