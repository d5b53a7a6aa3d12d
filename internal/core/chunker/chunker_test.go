package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "This is a test text. It is used to test the chunking functionality."

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	c, err := New(nil)
	require.NoError(t, err)
	return c
}

func TestFixedLength(t *testing.T) {
	c := newTestChunker(t)

	chunks, err := c.Chunk(context.Background(), sampleText, Options{
		Strategy:    StrategyFixedLength,
		ChunkLength: 10,
	})
	require.NoError(t, err)

	require.Len(t, chunks, 7)
	assert.Equal(t, "This is a ", chunks[0])
	assert.Equal(t, "nality.", chunks[6])
	for _, ch := range chunks[:6] {
		assert.Len(t, []rune(ch), 10)
	}

	// Boundaries are character-exact: the chunks reassemble the input.
	assert.Equal(t, sampleText, strings.Join(chunks, ""))
}

func TestFixedLengthMultibyte(t *testing.T) {
	c := newTestChunker(t)

	chunks, err := c.Chunk(context.Background(), "héllo wörld", Options{
		Strategy:    StrategyFixedLength,
		ChunkLength: 4,
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "héll", chunks[0])
	assert.Equal(t, "o wö", chunks[1])
	assert.Equal(t, "rld", chunks[2])
}

func TestSentenceBased(t *testing.T) {
	c := newTestChunker(t)

	chunks, err := c.Chunk(context.Background(), sampleText, Options{
		Strategy: StrategySentence,
	})
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "This is a test text.", chunks[0])
	assert.Equal(t, "It is used to test the chunking functionality.", chunks[1])
}

func TestSentenceBasedEnforcesTerminator(t *testing.T) {
	c := newTestChunker(t)

	chunks, err := c.Chunk(context.Background(), "First sentence. A trailing fragment", Options{
		Strategy: StrategySentence,
	})
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		last := ch[len(ch)-1]
		assert.Contains(t, ".!?", string(last), "chunk %q must end with a terminator", ch)
	}
}

func TestParagraphBased(t *testing.T) {
	c := newTestChunker(t)

	text := "First paragraph here.\n\nSecond paragraph here.\n\n\n\nThird one."
	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy: StrategyParagraph,
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph here.", chunks[0])
	assert.Equal(t, "Second paragraph here.", chunks[1])
	assert.Equal(t, "Third one.", chunks[2])
}

func TestSlidingWindow(t *testing.T) {
	c := newTestChunker(t)

	text := "One is here. Two is here. Three is here. Four is here."
	chunks, err := c.Chunk(context.Background(), text, Options{
		Strategy:       StrategySlidingWindow,
		SlideSentences: 2,
	})
	require.NoError(t, err)

	// 4 sentences, windows of 2, advancing one sentence: 3 windows.
	require.Len(t, chunks, 3)
	assert.Equal(t, "One is here. Two is here.", chunks[0])
	assert.Equal(t, "Two is here. Three is here.", chunks[1])
	assert.Equal(t, "Three is here. Four is here.", chunks[2])
}

func TestSlidingWindowTooFewSentences(t *testing.T) {
	c := newTestChunker(t)

	chunks, err := c.Chunk(context.Background(), "Only one sentence here.", Options{
		Strategy:       StrategySlidingWindow,
		SlideSentences: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEmptyInput(t *testing.T) {
	c := newTestChunker(t)

	for _, opts := range []Options{
		{Strategy: StrategyFixedLength, ChunkLength: 10},
		{Strategy: StrategySentence},
		{Strategy: StrategyParagraph},
		{Strategy: StrategySlidingWindow, SlideSentences: 2},
		{Strategy: StrategyRecursive, ChunkSize: 100, ChunkOverlap: 10},
	} {
		chunks, err := c.Chunk(context.Background(), "", opts)
		require.NoError(t, err)
		assert.Empty(t, chunks, "strategy %s", opts.Strategy)
	}
}

func TestWhitespaceOnlyInput(t *testing.T) {
	c := newTestChunker(t)
	const ws = "   \n\t  "

	// Fixed-length boundaries are character-exact, so whitespace is content.
	chunks, err := c.Chunk(context.Background(), ws, Options{
		Strategy:    StrategyFixedLength,
		ChunkLength: 10,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ws, strings.Join(chunks, ""))

	// The trimming strategies reduce it to nothing.
	for _, opts := range []Options{
		{Strategy: StrategySentence},
		{Strategy: StrategyParagraph},
		{Strategy: StrategySlidingWindow, SlideSentences: 2},
		{Strategy: StrategyRecursive, ChunkSize: 100, ChunkOverlap: 10},
	} {
		chunks, err := c.Chunk(context.Background(), ws, opts)
		require.NoError(t, err)
		assert.Empty(t, chunks, "strategy %s", opts.Strategy)
	}
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"fixed zero length", Options{Strategy: StrategyFixedLength}},
		{"fixed negative length", Options{Strategy: StrategyFixedLength, ChunkLength: -5}},
		{"sliding zero n", Options{Strategy: StrategySlidingWindow}},
		{"recursive zero size", Options{Strategy: StrategyRecursive}},
		{"recursive overlap >= size", Options{Strategy: StrategyRecursive, ChunkSize: 100, ChunkOverlap: 100}},
		{"unknown strategy", Options{Strategy: Strategy(99)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.opts.Validate())
		})
	}

	assert.NoError(t, Options{Strategy: StrategySentence}.Validate())
	assert.NoError(t, Options{Strategy: StrategyRecursive, ChunkSize: 100, ChunkOverlap: 20}.Validate())
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"fixed":     StrategyFixedLength,
		"sentence":  StrategySentence,
		"paragraph": StrategyParagraph,
		"sliding":   StrategySlidingWindow,
		"recursive": StrategyRecursive,
		"semantic":  StrategySemantic,
	} {
		got, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, name, got.String())
	}

	_, err := ParseStrategy("bogus")
	assert.Error(t, err)
}
