package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// NewHashEmbedder returns a deterministic offline embedder based on signed
// feature hashing of lowercased word tokens. Texts sharing words land close
// to each other under cosine similarity.
func NewHashEmbedder(dimension int) Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	return &hashEmbedder{dimension}
}

type hashEmbedder struct {
	dimension int
}

func (e *hashEmbedder) Dimension() int {
	return e.dimension
}

func (e *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, e.dimension)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		i := int(sum % uint64(e.dimension))

		// one bit of the hash picks the sign to keep collisions unbiased
		if sum&(1<<63) != 0 {
			v[i] -= 1
		} else {
			v[i] += 1
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}

	if norm == 0 {
		// chromem and cosine stores reject zero vectors
		v[0] = 1
		return v, nil
	}

	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}

	return v, nil
}
