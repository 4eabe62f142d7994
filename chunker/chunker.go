// Package chunker splits loaded documents into bounded, overlapping text
// segments used as the retrieval unit.
package chunker

import (
	"errors"
	"fmt"
	"log"

	"github.com/arogya-labs/medassist/loader"
)

// ErrEmptyInput reports that there was nothing to split.
var ErrEmptyInput = errors.New("no documents to split")

// Chunk is a bounded slice of a source document.
type Chunk struct {
	Text  string
	Index int
}

// Splitter produces chunk sequences with a fixed maximum size and overlap.
// Splitting is deterministic: identical input always yields the identical
// sequence.
type Splitter struct {
	maxSize int
	overlap int
	logger  *log.Logger
}

func NewSplitter(maxSize, overlap int, logger *log.Logger) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", maxSize, overlap)
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Splitter{maxSize: maxSize, overlap: overlap, logger: logger}, nil
}

// Split cuts every document into chunks of at most maxSize characters where
// consecutive chunks from the same document share exactly overlap characters.
// A document no longer than maxSize yields a single chunk. Empty documents
// are skipped; if nothing remains the call fails with ErrEmptyInput.
func (s *Splitter) Split(docs []loader.Document) ([]Chunk, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyInput
	}

	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		runes := []rune(doc.Content)
		if len(runes) == 0 {
			continue
		}

		step := s.maxSize - s.overlap
		for start := 0; ; start += step {
			end := start + s.maxSize
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, Chunk{
				Text:  string(runes[start:end]),
				Index: len(chunks),
			})
			if end == len(runes) {
				break
			}
		}
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	s.logger.Printf("split %d document(s) into %d chunk(s)", len(docs), len(chunks))
	return chunks, nil
}
