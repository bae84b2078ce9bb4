package docrag

import (
	"fmt"
	"strings"
)

// Chunker splits text into overlapping windows of whitespace-separated words.
type Chunker struct {
	window  int
	overlap int
}

func NewChunker(window int, overlap int) (*Chunker, error) {
	if window <= 0 || overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: window %d, overlap %d", ErrInvalidChunker, window, overlap)
	}

	return &Chunker{window, overlap}, nil
}

// Windows returns the [start, end) word offsets for a text of n words.
func (c *Chunker) Windows(n int) [][2]int {
	step := c.window - c.overlap

	windows := make([][2]int, 0, (n+step-1)/step)
	for start := 0; start < n; start += step {
		end := min(start+c.window, n)
		windows = append(windows, [2]int{start, end})

		// the last window already covers the tail
		if end == n {
			break
		}
	}

	return windows
}

func (c *Chunker) Chunk(text string, filename string) []Chunk {
	words := strings.Fields(text)

	windows := c.Windows(len(words))

	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = Chunk{
			Index:    i,
			Text:     strings.Join(words[w[0]:w[1]], " "),
			Filename: filename,
		}
	}

	return chunks
}
