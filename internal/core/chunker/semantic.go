package chunker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// BreakpointType selects the statistic used to turn the embedding-distance
// signal into a cut threshold.
type BreakpointType int

const (
	BreakpointPercentile BreakpointType = iota
	BreakpointStdDev
	BreakpointInterquartile
	BreakpointGradient
)

func ParseBreakpointType(s string) (BreakpointType, error) {
	switch s {
	case "percentile":
		return BreakpointPercentile, nil
	case "stddev":
		return BreakpointStdDev, nil
	case "interquartile":
		return BreakpointInterquartile, nil
	case "gradient":
		return BreakpointGradient, nil
	}
	return 0, fmt.Errorf("unknown breakpoint type %q", s)
}

func (b BreakpointType) validate() error {
	switch b {
	case BreakpointPercentile, BreakpointStdDev, BreakpointInterquartile, BreakpointGradient:
		return nil
	}
	return fmt.Errorf("unknown breakpoint type %d", b)
}

// semantic embeds each sentence and cuts between consecutive sentences where
// the cosine-distance signal crosses the configured threshold statistic.
func (c *Chunker) semantic(ctx context.Context, text string, bt BreakpointType, amount float64) ([]string, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("semantic chunking requires an embedding backend")
	}

	sents := c.tokenizer.sentences(text)
	if len(sents) == 0 {
		return nil, nil
	}
	if len(sents) == 1 {
		return sents, nil
	}

	vecs, err := c.embedder.EmbedTexts(ctx, sents)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vecs) != len(sents) {
		return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(sents))
	}

	distances := make([]float64, len(sents)-1)
	for i := range distances {
		distances[i] = 1 - cosineSimilarity(vecs[i], vecs[i+1])
	}

	breakpoints := findBreakpoints(distances, bt, amount)

	var chunks []string
	start := 0
	for _, bp := range breakpoints {
		chunks = append(chunks, strings.Join(sents[start:bp+1], " "))
		start = bp + 1
	}
	chunks = append(chunks, strings.Join(sents[start:], " "))
	return chunks, nil
}

// findBreakpoints returns the indices i (cut between sentence i and i+1)
// where the distance signal exceeds the threshold statistic.
func findBreakpoints(distances []float64, bt BreakpointType, amount float64) []int {
	signal := distances
	var threshold float64

	switch bt {
	case BreakpointPercentile:
		threshold = percentile(distances, amount)
	case BreakpointStdDev:
		m, sd := meanStdDev(distances)
		threshold = m + amount*sd
	case BreakpointInterquartile:
		m, _ := meanStdDev(distances)
		iqr := percentile(distances, 75) - percentile(distances, 25)
		threshold = m + amount*iqr
	case BreakpointGradient:
		grads := make([]float64, len(distances))
		for i := range distances {
			if i == 0 {
				grads[i] = 0
				continue
			}
			grads[i] = distances[i] - distances[i-1]
		}
		signal = grads
		threshold = percentile(grads, amount)
	}

	var out []int
	for i, v := range signal {
		if v > threshold {
			out = append(out, i)
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func meanStdDev(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		sd += (v - mean) * (v - mean)
	}
	sd = math.Sqrt(sd / float64(len(values)))
	return mean, sd
}
