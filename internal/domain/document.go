package domain

import (
	"fmt"
	"time"
)

// Document represents one uploaded source file. FileName is the name the
// file was uploaded under; StorageName is the blob object name, derived
// from the document id so two uploads with the same file name never share
// an object.
type Document struct {
	ID              string
	UserID          string
	Title           string
	FileName        string
	StorageName     string
	IsKnowledgeBase bool
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DocumentChunk is one retrievable slice of a document's text.
// ContentHash is the SHA-256 of Content; together with DocumentID it forms
// the natural identity used for idempotent upserts.
type DocumentChunk struct {
	ID           string
	DocumentID   string
	UserID       string
	DocumentName string
	Content      string
	ContentHash  string
	Embedding    []float32
	Active       bool
	CreatedAt    time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.UserID == "" {
		return fmt.Errorf("document UserID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.FileName == "" {
		return fmt.Errorf("document FileName is required")
	}

	if d.StorageName == "" {
		return fmt.Errorf("document StorageName is required")
	}

	return nil
}

// ValidateDocumentChunk validates a DocumentChunk instance
func ValidateDocumentChunk(c *DocumentChunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}

	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}

	return nil
}
