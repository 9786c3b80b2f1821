// Package chunker splits normalized document text into bounded,
// overlapping chunks suitable for per-chunk summarization.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Chunk is a bounded contiguous slice of document text. Every chunk
// after the first shares OverlapWithPrev runes with the end of its
// predecessor so cross-boundary context survives the split.
type Chunk struct {
	Index           int
	Text            string
	OverlapWithPrev int
}

// Create splits text into chunks of at most maxChunkSize runes. The cut
// point prefers a sentence or whitespace boundary inside the trailing
// overlap window; without one the chunk is cut hard at the size limit.
// Blank text yields no chunks. Text that already fits yields one chunk
// with zero overlap.
func Create(text string, maxChunkSize, overlap int) ([]Chunk, error) {
	if maxChunkSize <= 0 || overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf(
			"%w: max_chunk_size = %d, overlap = %d",
			ErrInvalidChunkConfig, maxChunkSize, overlap,
		)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= maxChunkSize {
		return []Chunk{{Index: 0, Text: text}}, nil
	}

	var chunks []Chunk
	start := 0
	prevOverlap := 0

	for start < len(runes) {
		end := start + maxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end, overlap)
		}

		chunks = append(chunks, Chunk{
			Index:           len(chunks),
			Text:            string(runes[start:end]),
			OverlapWithPrev: prevOverlap,
		})

		if end == len(runes) {
			break
		}

		next := end - overlap
		prevOverlap = overlap
		if next <= start {
			// Overlap would stall the walk; fall back to a
			// non-overlapping step.
			next = end
			prevOverlap = 0
		}
		start = next
	}

	return chunks, nil
}

// cutPoint searches the trailing overlap window [end-overlap, end) for
// the last sentence end, then the last whitespace run, and returns the
// position just past it. Without a boundary the hard limit stands.
func cutPoint(runes []rune, start, end, overlap int) int {
	lo := end - overlap
	if lo <= start {
		return end
	}

	for i := end - 1; i >= lo; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}

	for i := end - 1; i >= lo; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return end
}

// reassemble concatenates chunks minus their recorded overlaps. It is
// the inverse of Create and verifies that no text was lost or
// duplicated by the split.
func reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		runes := []rune(c.Text)
		if c.OverlapWithPrev >= len(runes) {
			continue
		}
		b.WriteString(string(runes[c.OverlapWithPrev:]))
	}

	return b.String()
}
