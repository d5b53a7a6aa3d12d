package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexara-id/lexara/internal/core"
)

// Strategy selects how a document's text is split into chunks.
type Strategy int

const (
	StrategyFixedLength Strategy = iota
	StrategySentence
	StrategyParagraph
	StrategySlidingWindow
	StrategyRecursive
	StrategySemantic
)

func (s Strategy) String() string {
	switch s {
	case StrategyFixedLength:
		return "fixed"
	case StrategySentence:
		return "sentence"
	case StrategyParagraph:
		return "paragraph"
	case StrategySlidingWindow:
		return "sliding"
	case StrategyRecursive:
		return "recursive"
	case StrategySemantic:
		return "semantic"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "fixed":
		return StrategyFixedLength, nil
	case "sentence":
		return StrategySentence, nil
	case "paragraph":
		return StrategyParagraph, nil
	case "sliding":
		return StrategySlidingWindow, nil
	case "recursive":
		return StrategyRecursive, nil
	case "semantic":
		return StrategySemantic, nil
	}
	return 0, fmt.Errorf("unknown chunking strategy %q", s)
}

// Options carries the per-strategy parameters. Only the fields of the
// selected strategy are consulted.
type Options struct {
	Strategy Strategy

	// fixed
	ChunkLength int

	// recursive
	ChunkSize    int
	ChunkOverlap int

	// sliding window
	SlideSentences int

	// semantic
	BreakpointType   BreakpointType
	BreakpointAmount float64
}

// Validate rejects parameter mistakes before any extraction work happens.
// These are configuration errors: retrying the task will not help.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategyFixedLength:
		if o.ChunkLength <= 0 {
			return fmt.Errorf("fixed-length chunking needs chunk_length > 0, got %d", o.ChunkLength)
		}
	case StrategySentence, StrategyParagraph:
		// no parameters
	case StrategySlidingWindow:
		if o.SlideSentences <= 0 {
			return fmt.Errorf("sliding-window chunking needs n_slide > 0, got %d", o.SlideSentences)
		}
	case StrategyRecursive:
		if o.ChunkSize <= 0 {
			return fmt.Errorf("recursive chunking needs chunk_size > 0, got %d", o.ChunkSize)
		}
		if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
			return fmt.Errorf("recursive chunking needs 0 <= chunk_overlap < chunk_size, got %d/%d", o.ChunkOverlap, o.ChunkSize)
		}
	case StrategySemantic:
		if err := o.BreakpointType.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown chunking strategy %d", o.Strategy)
	}
	return nil
}

// Chunker splits extracted text into ordered chunks. The embedder is only
// exercised by the semantic strategy and may be nil for the others.
type Chunker struct {
	tokenizer *sentenceTokenizer
	embedder  core.EmbeddingProvider
}

func New(embedder core.EmbeddingProvider) (*Chunker, error) {
	tok, err := newSentenceTokenizer()
	if err != nil {
		return nil, fmt.Errorf("sentence tokenizer: %w", err)
	}
	return &Chunker{tokenizer: tok, embedder: embedder}, nil
}

// Chunk materializes the chunk sequence for text. Empty input yields an
// empty sequence for every strategy, never a single empty chunk.
// Whitespace-only input is preserved by the character-exact fixed-length
// strategy and reduced to nothing by the trimming ones.
func (c *Chunker) Chunk(ctx context.Context, text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	switch opts.Strategy {
	case StrategyFixedLength:
		return c.fixedLength(text, opts.ChunkLength), nil
	case StrategySentence:
		return c.sentenceBased(text), nil
	case StrategyParagraph:
		return c.paragraphBased(text), nil
	case StrategySlidingWindow:
		return c.slidingWindow(text, opts.SlideSentences), nil
	case StrategyRecursive:
		return c.recursive(text, opts.ChunkSize, opts.ChunkOverlap), nil
	case StrategySemantic:
		return c.semantic(ctx, text, opts.BreakpointType, opts.BreakpointAmount)
	}
	return nil, fmt.Errorf("unknown chunking strategy %d", opts.Strategy)
}

// fixedLength slices the text into consecutive chunks of exactly chunkLength
// characters; the final chunk may be shorter. Boundaries are character-exact:
// concatenating the chunks reproduces the input.
func (c *Chunker) fixedLength(text string, chunkLength int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+chunkLength-1)/chunkLength)
	for i := 0; i < len(runes); i += chunkLength {
		end := i + chunkLength
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// sentenceBased emits each non-empty sentence, trimmed, with a trailing
// terminator enforced if the tokenizer left one off.
func (c *Chunker) sentenceBased(text string) []string {
	sents := c.tokenizer.sentences(text)
	chunks := make([]string, 0, len(sents))
	for _, s := range sents {
		if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
			s += "."
		}
		chunks = append(chunks, s)
	}
	return chunks
}

// paragraphBased splits on blank-line separators and drops whitespace-only
// paragraphs.
func (c *Chunker) paragraphBased(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks
}

// slidingWindow emits overlapping windows of n consecutive sentences,
// advancing one sentence at a time: window i covers sentences [i, i+n).
// Text with fewer than n sentences yields no windows.
func (c *Chunker) slidingWindow(text string, n int) []string {
	sents := c.tokenizer.sentences(text)
	if len(sents) < n {
		return nil
	}
	chunks := make([]string, 0, len(sents)-n+1)
	for i := 0; i+n <= len(sents); i++ {
		chunks = append(chunks, strings.Join(sents[i:i+n], " "))
	}
	return chunks
}
