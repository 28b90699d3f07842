// Package tokenizer wraps the BPE tokenizer used to bound chunk sizes.
// Ingestion and ceiling enforcement must count tokens with the same
// vocabulary the embedding model uses, otherwise oversized chunks slip
// through and the embedding call fails downstream.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the vocabulary shared with the embedding model.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts and encodes tokens for a fixed BPE vocabulary.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	initOnce sync.Once
	shared   *Tokenizer
	initErr  error
)

// Load returns the process-wide tokenizer, loading the vocabulary on first
// use. Loading is guarded so concurrent first callers share one init; the
// init error is retained and returned to every subsequent caller rather
// than retried, since a missing vocabulary is fatal to ingestion.
func Load() (*Tokenizer, error) {
	initOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			initErr = fmt.Errorf("failed to load %s encoding: %w", DefaultEncoding, err)
			return
		}
		shared = &Tokenizer{enc: enc}
	})
	return shared, initErr
}

// New creates a tokenizer for an explicit encoding name.
func New(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the number of BPE tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Encode returns the BPE token sequence for text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}
