package chunker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_SingleParagraphFitsInOneChunk(t *testing.T) {
	c := New(1000, 100)

	chunks := c.ChunkText("a short paragraph of text.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph of text.", chunks[0])
}

func TestChunkText_MultipleParagraphsMergeUntilMaxSize(t *testing.T) {
	c := New(50, 0)

	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird one."
	chunks := c.ChunkText(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 50+len("third one."), "chunks should generally respect max size")
	}
}

func TestChunkText_FiveParagraphsInEcoModeYieldFiveChunks(t *testing.T) {
	c := New(512, 50)

	para := strings.Repeat("x", 500)
	text := strings.Join([]string{para, para, para, para, para}, "\n\n")

	chunks := c.ChunkText(text)

	require.Len(t, chunks, 5)
}

func TestChunkText_EmptyTextReturnsNoChunks(t *testing.T) {
	c := New(500, 50)

	chunks := c.ChunkText("")

	assert.Empty(t, chunks)
}

func TestChunkText_MultiParagraphWithOverlapYieldsNonEmptyChunks(t *testing.T) {
	c := New(30, 10)

	text := "aaaaaaaaaa bbbbbbbbbb.\n\ncccccccccc dddddddddd.\n\neeeeeeeeee ffffffffff."
	chunks := c.ChunkText(text)

	require.Greater(t, len(chunks), 1)
	// With overlap enabled, every chunk after the first is still non-empty.
	for _, chunk := range chunks[1:] {
		assert.NotEmpty(t, chunk)
	}
}

func TestChunkText_OversizedParagraphSplitsBySentence(t *testing.T) {
	c := New(40, 0)

	sentence := strings.Repeat("word ", 3) + "end."
	text := sentence + " " + sentence + " " + sentence

	chunks := c.ChunkText(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 40+10)
	}
}

func TestChunkText_OversizedSentenceFallsBackToWords(t *testing.T) {
	c := New(20, 0)

	text := strings.Repeat("verylongwordwithnopunctuation ", 5)

	chunks := c.ChunkText(text)

	require.NotEmpty(t, chunks)
}

func TestChunkStreaming_YieldsSameChunksAsChunkText(t *testing.T) {
	c := New(60, 10)
	text := "alpha beta gamma.\n\ndelta epsilon zeta.\n\neta theta iota."

	var streamed []string
	for chunk := range c.ChunkStreaming(text) {
		streamed = append(streamed, chunk)
	}

	assert.Equal(t, c.ChunkText(text), streamed)
}

func TestForMode_UsesModeSettings(t *testing.T) {
	c := ForMode("eco")

	assert.Equal(t, 512, c.MaxChunkSize)
	assert.Equal(t, 50, c.Overlap)
}

func TestChunkFile_SmallFileReadsDirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world.\n\ngoodbye world."), 0644))

	c := New(1000, 50)
	chunks, err := c.ChunkFile(path)

	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestChunkFile_MissingFileReturnsError(t *testing.T) {
	c := New(1000, 50)

	_, err := c.ChunkFile(filepath.Join(t.TempDir(), "missing.txt"))

	assert.Error(t, err)
}

func TestSplitSentences_KeepsPunctuationAttached(t *testing.T) {
	sentences := splitSentences("One. Two! Three?")

	assert.Equal(t, []string{"One.", "Two!", "Three?"}, sentences)
}

func TestGetOverlapText_SnapsToWordBoundary(t *testing.T) {
	chunk := "the quick brown fox jumps"

	overlap := getOverlapText(chunk, 10)

	assert.False(t, strings.HasPrefix(overlap, " "))
}

func TestGetOverlapText_ZeroLengthReturnsEmpty(t *testing.T) {
	assert.Empty(t, getOverlapText("some text", 0))
}
