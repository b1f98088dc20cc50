package document

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docgraph/docgraph/engine/domain"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the number of overlapping tokens between chunks.
	DefaultOverlap = 50
)

// Split chunks every document in order. Chunk ids are "<doc id>#<index>".
func Split(docs []domain.Document, chunkSize, overlap int) []domain.Chunk {
	var out []domain.Chunk
	for _, doc := range docs {
		chunks := chunkSentences(splitSentences(doc.Text), chunkSize, overlap)
		if len(chunks) == 0 && strings.TrimSpace(doc.Text) != "" {
			chunks = []string{doc.Text}
		}
		for i, text := range chunks {
			out = append(out, domain.Chunk{
				ID:     fmt.Sprintf("%s#%d", doc.ID, i),
				DocID:  doc.ID,
				Index:  i,
				Source: doc.Source,
				Page:   doc.Page,
				Text:   text,
			})
		}
	}
	return out
}

// splitSentences splits text into sentences using punctuation and newlines.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			if r == '\n' || i == len(text)-1 || unicode.IsSpace(next) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// chunkSentences groups sentences into chunks of ~chunkSize tokens with
// overlap. Token count is approximated as word count.
func chunkSentences(sentences []string, chunkSize, overlap int) []string {
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start
		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteRune(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}
		chunks = append(chunks, buf.String())
		if end >= len(sentences) {
			break
		}

		// Step back by the overlap, always moving forward overall.
		overlapTokens := 0
		next := end
		for next > start+1 && overlapTokens < overlap {
			next--
			overlapTokens += wordCount(sentences[next])
		}
		start = next
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
