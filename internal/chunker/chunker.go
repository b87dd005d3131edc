package chunker

import (
	"regexp"
	"strings"

	"github.com/lumenary/lumen/internal/hardware"
	"github.com/lumenary/lumen/internal/modeset"
)

var paragraphSplitRE = regexp.MustCompile(`\n\s*\n`)

// sentenceBoundaryRE matches the whitespace that follows a sentence-ending
// punctuation mark. Go's RE2 engine has no lookbehind, so unlike a
// lookbehind-based split, the boundary whitespace is consumed by this match
// and sentences are reassembled with their trailing punctuation intact by
// splitSentences below.
var sentenceBoundaryRE = regexp.MustCompile(`[.!?]+\s+`)

// Chunker splits text into paragraph-aware chunks bounded by MaxChunkSize,
// carrying up to Overlap characters of context into the next chunk.
type Chunker struct {
	MaxChunkSize int
	Overlap      int
}

// New returns a Chunker with explicit size settings.
func New(maxChunkSize, overlap int) *Chunker {
	return &Chunker{MaxChunkSize: maxChunkSize, Overlap: overlap}
}

// ForMode returns a Chunker configured from the mode settings table.
func ForMode(mode hardware.Mode) *Chunker {
	s := modeset.For(mode)
	return New(s.MaxChunkSize, s.Overlap)
}

// ChunkText splits text into paragraph-bounded chunks no larger than
// MaxChunkSize. A chunk that follows a flushed chunk starts with up to
// Overlap characters of context from it, when that context still fits.
func (c *Chunker) ChunkText(text string) []string {
	var chunks []string
	for chunk := range c.iterate(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ChunkStreaming yields chunks one at a time on the returned channel, so a
// caller can embed and index each chunk without holding the whole document's
// chunk set in memory at once.
func (c *Chunker) ChunkStreaming(text string) <-chan string {
	return c.iterate(text)
}

func (c *Chunker) iterate(text string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		maxSize := c.MaxChunkSize
		if maxSize <= 0 {
			maxSize = 1000
		}
		overlap := c.Overlap
		if overlap < 0 {
			overlap = 0
		}
		if overlap >= maxSize {
			overlap = maxSize - 1
		}

		paragraphs := splitParagraphs(text)

		var current strings.Builder
		flush := func() string {
			chunk := current.String()
			current.Reset()
			return chunk
		}

		for _, para := range paragraphs {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			candidateLen := current.Len()
			if candidateLen > 0 {
				candidateLen += 2 // "\n\n" joiner
			}
			candidateLen += len(para)

			if candidateLen <= maxSize {
				if current.Len() > 0 {
					current.WriteString("\n\n")
				}
				current.WriteString(para)
				continue
			}

			// Flush whatever has accumulated so far before handling the
			// paragraph that doesn't fit.
			if current.Len() > 0 {
				chunk := flush()
				out <- chunk
				overlapText := getOverlapText(chunk, overlap)
				if overlapText != "" {
					current.WriteString(overlapText)
				}
			}

			if len(para) <= maxSize {
				// The overlap carried from the previous chunk is kept only if
				// overlap, joiner and paragraph together still fit in maxSize;
				// otherwise the paragraph starts the new chunk on its own.
				if current.Len() > 0 && current.Len()+2+len(para) > maxSize {
					current.Reset()
				}
				if current.Len() > 0 {
					current.WriteString("\n\n")
				}
				current.WriteString(para)
				continue
			}

			// Paragraph itself exceeds the max chunk size: split it further.
			if current.Len() > 0 {
				out <- flush()
			}
			for _, piece := range splitLargeParagraph(para, maxSize) {
				out <- piece
			}
		}

		if current.Len() > 0 {
			out <- flush()
		}
	}()
	return out
}

// splitParagraphs splits on blank lines (one or more, allowing trailing
// whitespace on the blank line itself).
func splitParagraphs(text string) []string {
	return paragraphSplitRE.Split(text, -1)
}

// splitLargeParagraph splits a single paragraph that exceeds maxSize,
// first trying sentence boundaries and falling back to word boundaries
// for any sentence that is still too long.
func splitLargeParagraph(para string, maxSize int) []string {
	sentences := splitSentences(para)

	var pieces []string
	var current strings.Builder

	for _, sentence := range sentences {
		if len(sentence) > maxSize {
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			pieces = append(pieces, splitByWords(sentence, maxSize)...)
			continue
		}

		extra := len(sentence)
		if current.Len() > 0 {
			extra++ // joining space
		}
		if current.Len()+extra > maxSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	return pieces
}

// splitSentences splits text after each run of sentence-ending punctuation,
// keeping the punctuation attached to the sentence it closes.
func splitSentences(text string) []string {
	matches := sentenceBoundaryRE.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var sentences []string
	start := 0
	for _, m := range matches {
		sentence := strings.TrimSpace(text[start:m[0]])
		// m[0] is the start of the punctuation run; include it by scanning
		// back from m[1] to the boundary's start within [m[0], m[1]).
		punct := text[m[0]:m[1]]
		punctEnd := 0
		for punctEnd < len(punct) && isSentenceEndRune(punct[punctEnd]) {
			punctEnd++
		}
		sentence = strings.TrimSpace(text[start:m[0]] + punct[:punctEnd])
		sentences = append(sentences, sentence)
		start = m[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isSentenceEndRune(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// splitByWords is the last-resort splitter for a single sentence that still
// exceeds maxSize on its own.
func splitByWords(text string, maxSize int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var pieces []string
	var current strings.Builder

	for _, word := range words {
		extra := len(word)
		if current.Len() > 0 {
			extra++
		}
		if current.Len()+extra > maxSize && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)

		// A single word longer than maxSize is sliced hard; this should be
		// rare (URLs, base64 blobs) but must still terminate.
		for current.Len() > maxSize {
			s := current.String()
			pieces = append(pieces, s[:maxSize])
			current.Reset()
			current.WriteString(s[maxSize:])
		}
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// getOverlapText returns the last overlapLen characters of chunk, snapped
// forward to the start of the next sentence or, failing that, the next
// word. A tail that contains no space is returned as is.
func getOverlapText(chunk string, overlapLen int) string {
	if overlapLen <= 0 || len(chunk) == 0 {
		return ""
	}
	if overlapLen >= len(chunk) {
		return chunk
	}

	tail := chunk[len(chunk)-overlapLen:]

	if idx := strings.Index(tail, ". "); idx != -1 {
		return tail[idx+2:]
	}
	if idx := strings.Index(tail, " "); idx != -1 {
		return tail[idx+1:]
	}
	return tail
}
