package chunker

import (
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// sentenceTokenizer wraps the punkt tokenizer so callers only ever see
// trimmed, non-empty sentence strings.
type sentenceTokenizer struct {
	tok *sentences.DefaultSentenceTokenizer
}

func newSentenceTokenizer() (*sentenceTokenizer, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &sentenceTokenizer{tok: tok}, nil
}

func (t *sentenceTokenizer) sentences(text string) []string {
	raw := t.tok.Tokenize(text)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
