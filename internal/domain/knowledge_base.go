package domain

import (
	"fmt"
	"time"
)

// KnowledgeBase is a named collection of document references with an
// optional free-text detail description. The detail text can carry its own
// embedding so retrieval can match against the collection as a whole, not
// just individual chunks. DetailEmbedding is nil until the background
// detail-embedding job has run; retrieval treats an absent vector as "skip
// this ranking source", never as an error.
type KnowledgeBase struct {
	ID              string
	UserID          string
	Name            string
	Detail          string
	DetailEmbedding []float32
	DocumentIDs     []string
	Public          bool
	AllowEmbedding  bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasDetailEmbedding reports whether the detail vector is present.
func (kb *KnowledgeBase) HasDetailEmbedding() bool {
	return len(kb.DetailEmbedding) > 0
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}

	if kb.ID == "" {
		return fmt.Errorf("knowledge base ID is required")
	}

	if kb.UserID == "" {
		return fmt.Errorf("knowledge base UserID is required")
	}

	if kb.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}

	return nil
}
