// Package inference turns tensor field content into embedding vectors:
// chunking, batching policy per modality and per-batch vector caching.
package inference

import (
	"strings"
	"unicode"
)

// DefaultMaxChunkChars bounds chunk size when config does not override it.
const DefaultMaxChunkChars = 600

// Chunker splits text content into embedding-sized chunks on sentence
// boundaries. Non-text modalities are embedded whole and bypass chunking.
type Chunker struct {
	maxChars int
}

// NewChunker creates a chunker. maxChars <= 0 selects the default.
func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	return &Chunker{maxChars: maxChars}
}

// Split breaks text into chunks of at most maxChars runes, preferring
// sentence boundaries and falling back to hard splits for oversized
// sentences. Empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= c.maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range splitSentences(text) {
		runes := []rune(sentence)
		if len(runes) > c.maxChars {
			if currentLen > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
				currentLen = 0
			}
			chunks = append(chunks, hardSplit(runes, c.maxChars)...)
			continue
		}
		if currentLen+len(runes)+1 > c.maxChars && currentLen > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += len(runes)
	}
	if currentLen > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences cuts text after sentence-terminating punctuation followed by
// whitespace. It keeps the terminator with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for n := 0; n < len(runes); n++ {
		switch runes[n] {
		case '.', '!', '?':
			if n+1 == len(runes) || unicode.IsSpace(runes[n+1]) {
				s := strings.TrimSpace(string(runes[start : n+1]))
				if s != "" {
					sentences = append(sentences, s)
				}
				start = n + 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func hardSplit(runes []rune, maxChars int) []string {
	var out []string
	for len(runes) > maxChars {
		out = append(out, strings.TrimSpace(string(runes[:maxChars])))
		runes = runes[maxChars:]
	}
	if s := strings.TrimSpace(string(runes)); s != "" {
		out = append(out, s)
	}
	return out
}
