package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveRespectsChunkSize(t *testing.T) {
	c := newTestChunker(t)

	text := strings.Repeat("Some words make a sentence here. ", 20) +
		"\n\n" +
		strings.Repeat("Another paragraph with more words in it. ", 20)

	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy:     StrategyRecursive,
		ChunkSize:    120,
		ChunkOverlap: 20,
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 120, "chunk %q exceeds size", ch)
		assert.NotEmpty(t, strings.TrimSpace(ch))
	}
}

func TestRecursivePrefersCoarseSeparators(t *testing.T) {
	c := newTestChunker(t)

	text := "Short first paragraph.\n\nShort second paragraph."
	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy:     StrategyRecursive,
		ChunkSize:    30,
		ChunkOverlap: 0,
	})
	require.NoError(t, err)

	// Both paragraphs fit in a chunk on their own, so the cut lands on the
	// paragraph boundary.
	require.Len(t, chunks, 2)
	assert.Equal(t, "Short first paragraph.", chunks[0])
	assert.Equal(t, "Short second paragraph.", chunks[1])
}

func TestRecursiveOverlapCarriesTrailingContext(t *testing.T) {
	c := newTestChunker(t)

	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy:     StrategyRecursive,
		ChunkSize:    25,
		ChunkOverlap: 10,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		firstWord := strings.Fields(chunks[i])[0]
		assert.Contains(t, chunks[i-1], firstWord,
			"chunk %d should share its leading word with chunk %d", i, i-1)
	}
}

func TestRecursiveAtomicUnitEmittedWhole(t *testing.T) {
	c := newTestChunker(t)

	long := strings.Repeat("x", 50)
	chunks, err := c.Chunk(context.Background(), "tiny "+long+" tail", Options{
		Strategy:     StrategyRecursive,
		ChunkSize:    20,
		ChunkOverlap: 0,
	})
	require.NoError(t, err)

	// The 50-char word has no separator inside it, so it survives unsplit
	// and is trimmed like every other chunk.
	assert.Contains(t, chunks, long)
	for _, ch := range chunks {
		assert.Equal(t, strings.TrimSpace(ch), ch, "chunk %q carries surrounding whitespace", ch)
	}
}

func TestRecursiveCoversAllContent(t *testing.T) {
	c := newTestChunker(t)

	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs. " +
		"How vexingly quick daft zebras jump."
	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy:     StrategyRecursive,
		ChunkSize:    60,
		ChunkOverlap: 0,
	})
	require.NoError(t, err)

	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		assert.Contains(t, joined, strings.Trim(word, "."), "word %q missing from output", word)
	}
}
