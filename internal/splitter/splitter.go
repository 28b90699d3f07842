// Package splitter turns normalized document text into retrieval chunks.
package splitter

import (
	"log"
	"strings"
)

// TokenCounter counts BPE tokens for ceiling enforcement.
type TokenCounter interface {
	CountTokens(text string) int
}

// Config controls chunking for document ingestion.
type Config struct {
	// ChunkSize is the soft target size in runes. Pieces that no separator
	// can shrink below it are kept whole; the token ceiling is the hard
	// bound.
	ChunkSize int
	// Overlap is the number of trailing runes of the previous chunk
	// repeated at the start of the next one.
	Overlap int
	// Separators are tried in priority order.
	Separators []string
	// TokenCeiling is the embedding model's input limit. No emitted chunk
	// may exceed it.
	TokenCeiling int
	// MaxBisectDepth bounds the midpoint bisection used to enforce the
	// ceiling. Pieces still over the ceiling at this depth are dropped.
	MaxBisectDepth int
}

// DefaultConfig provides the standard chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      500,
		Overlap:        50,
		Separators:     []string{"\n\n", "\n", "。", "！", "？", ".", "!", "?"},
		TokenCeiling:   8192,
		MaxBisectDepth: 3,
	}
}

// Splitter splits text recursively along semantic boundaries.
type Splitter struct {
	cfg Config
}

// New creates a Splitter, filling zero-valued fields from DefaultConfig.
func New(cfg Config) *Splitter {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = def.Separators
	}
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = def.TokenCeiling
	}
	if cfg.MaxBisectDepth <= 0 {
		cfg.MaxBisectDepth = def.MaxBisectDepth
	}
	return &Splitter{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Splitter) Config() Config {
	return s.cfg
}

// Split normalizes text and splits it into chunks of roughly ChunkSize
// runes with Overlap runes of trailing context repeated between adjacent
// chunks. Empty input yields no chunks; input already within the target
// size yields exactly one chunk equal to the normalized input.
func (s *Splitter) Split(text string) []string {
	clean := Normalize(text)
	if clean == "" {
		return nil
	}
	if len([]rune(clean)) <= s.cfg.ChunkSize {
		return []string{clean}
	}
	pieces := s.splitRecursive(clean, 0)
	return applyOverlap(pieces, s.cfg.Overlap)
}

func (s *Splitter) splitRecursive(text string, sepIdx int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) <= s.cfg.ChunkSize {
		return []string{trimmed}
	}
	if sepIdx >= len(s.cfg.Separators) {
		// No separator can shrink this piece further. Keep it whole; the
		// token ceiling pass is the hard limit.
		return []string{trimmed}
	}

	parts := splitOn(trimmed, s.cfg.Separators[sepIdx])
	if len(parts) <= 1 {
		return s.splitRecursive(trimmed, sepIdx+1)
	}

	var pieces []string
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if len([]rune(p)) > s.cfg.ChunkSize {
			pieces = append(pieces, s.splitRecursive(p, sepIdx+1)...)
		} else {
			pieces = append(pieces, p)
		}
	}
	return mergeAdjacent(pieces, s.cfg.ChunkSize)
}

// splitOn splits by sep. Sentence punctuation stays attached to the piece
// it terminates; line and paragraph breaks are discarded.
func splitOn(text, sep string) []string {
	if sep == "\n\n" || sep == "\n" {
		return strings.Split(text, sep)
	}
	return strings.SplitAfter(text, sep)
}

// mergeAdjacent greedily joins neighboring pieces while the result stays
// within size, so sentence-level splits do not produce a flood of tiny
// chunks.
func mergeAdjacent(pieces []string, size int) []string {
	if len(pieces) < 2 {
		return pieces
	}
	merged := make([]string, 0, len(pieces))
	current := pieces[0]
	for _, next := range pieces[1:] {
		if len([]rune(current))+1+len([]rune(next)) <= size {
			current = current + " " + next
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

// applyOverlap prepends the trailing overlap runes of each chunk to its
// successor. Offsets are computed on final normalized text, so the repeated
// slice is byte-for-byte the tail of the previous chunk.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1])
		if len(prev) > overlap {
			out[i] = string(prev[len(prev)-overlap:]) + pieces[i]
		} else {
			out[i] = pieces[i]
		}
	}
	return out
}

// EnforceTokenCeiling recursively bisects any chunk whose token count
// exceeds the ceiling. A piece still over the ceiling at MaxBisectDepth is
// dropped with a warning rather than submitted to the embedding call,
// which would reject it outright. Returns the surviving chunks and the
// number of dropped pieces.
func (s *Splitter) EnforceTokenCeiling(chunks []string, counter TokenCounter) ([]string, int) {
	out := make([]string, 0, len(chunks))
	dropped := 0
	for _, chunk := range chunks {
		kept, d := s.bisect(chunk, counter, 0)
		out = append(out, kept...)
		dropped += d
	}
	return out, dropped
}

func (s *Splitter) bisect(chunk string, counter TokenCounter, depth int) ([]string, int) {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return nil, 0
	}
	tokens := counter.CountTokens(chunk)
	if tokens <= s.cfg.TokenCeiling {
		return []string{chunk}, 0
	}
	if depth >= s.cfg.MaxBisectDepth {
		log.Printf("splitter: dropping piece of %d tokens, still over ceiling %d at depth %d", tokens, s.cfg.TokenCeiling, depth)
		return nil, 1
	}

	runes := []rune(chunk)
	mid := len(runes) / 2
	left, droppedLeft := s.bisect(string(runes[:mid]), counter, depth+1)
	right, droppedRight := s.bisect(string(runes[mid:]), counter, depth+1)
	return append(left, right...), droppedLeft + droppedRight
}
