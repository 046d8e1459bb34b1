// Package encoder converts listing text into fixed-dimension vectors. The
// encoding is fully deterministic: the same text always produces the same
// vector, which keeps the enrichment workflow idempotent across retries and
// allows embeddings to be recomputed without drift.
package encoder

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

var (
	once     sync.Once
	codec    *tiktoken.Tiktoken
	codecErr error
)

// getCodec returns the shared BPE tokenizer. The offline loader avoids
// fetching the vocabulary over the network on first use.
func getCodec() (*tiktoken.Tiktoken, error) {
	once.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
		codec, codecErr = tiktoken.GetEncoding(encodingName)
	})
	return codec, codecErr
}

// Encoder produces fixed-dimension vectors from text by hashing BPE tokens
// into buckets with log-scaled term frequency weights.
type Encoder struct {
	dimension int
}

// NewEncoder returns an encoder producing vectors of the given dimension.
func NewEncoder(dimension int) (*Encoder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &Encoder{dimension: dimension}, nil
}

// Dimension returns the dimension of the produced vectors.
func (e *Encoder) Dimension() int { return e.dimension }

// Encode converts text into an L2-normalized vector. Empty or blank text
// yields a nil vector: listings with no text have no meaningful position in
// the similarity space and must not be indexed.
func (e *Encoder) Encode(text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	c, err := getCodec()
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	tokens := c.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	counts := make(map[int]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}

	vector := make([]float64, e.dimension)
	for token, count := range counts {
		bucket, sign := hashToken(token, e.dimension)
		weight := 1 + math.Log(float64(count))
		vector[bucket] += sign * weight
	}

	// L2-normalize so that cosine similarity only depends on token
	// distribution, not on text length.
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, nil
	}

	out := make([]float32, e.dimension)
	for i, v := range vector {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// hashToken maps a token ID to a bucket and a sign. The sign bit reduces the
// bias introduced by hash collisions.
func hashToken(token, dimension int) (bucket int, sign float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(token))

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	sum := h.Sum64()

	bucket = int(sum % uint64(dimension))
	if sum&(1<<63) != 0 {
		return bucket, -1
	}
	return bucket, 1
}

// ListingText builds the canonical text representation of a listing for
// embedding. The field order is part of the embedding contract: changing it
// would silently shift every listing in the similarity space. A listing with
// no text at all yields an empty string so it is never indexed.
func ListingText(name, description, category string) string {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(description) == "" && strings.TrimSpace(category) == "" {
		return ""
	}
	return name + "|" + description + "|" + category
}
