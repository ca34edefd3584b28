package chunker

import (
	"strings"
	"unicode/utf8"
)

// Options controls how text is windowed into chunks. Sizes are in characters.
type Options struct {
	ChunkSize int
	Overlap   int
}

// minChunkLen is the trimmed length a chunk must exceed to be kept.
const minChunkLen = 10

func DefaultOptions() Options {
	return Options{
		ChunkSize: 500,
		Overlap:   100,
	}
}

// Split walks text in windows of opts.ChunkSize characters, stepping back by
// opts.Overlap between windows. A window that is not the last one is cut at
// its final space when that space lies past the overlap offset, so words are
// not split while the walk still moves forward. The step is never smaller
// than one character.
//
// Every returned string is freshly allocated and does not share memory with
// text.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	runes := []rune(text)
	var chunks []string

	for start := 0; start < len(runes); {
		end := start + opts.ChunkSize
		last := end >= len(runes)
		if last {
			end = len(runes)
		}
		window := runes[start:end]

		step := opts.ChunkSize - opts.Overlap
		if !last {
			if sp := lastSpace(window); sp > opts.Overlap {
				window = window[:sp]
				step = sp - opts.Overlap
			}
		}
		start += max(1, step)

		chunk := string(window)
		if utf8.RuneCountInString(strings.TrimSpace(chunk)) > minChunkLen {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' {
			return i
		}
	}
	return -1
}

// Chunk is a piece of a split text along with its position in the sequence.
type Chunk struct {
	Content string
	Index   int
}

// ChunkText is Split with positions attached.
func ChunkText(text string, opts Options) []Chunk {
	parts := Split(text, opts)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Content: p, Index: i}
	}
	return chunks
}
