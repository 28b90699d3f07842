package domain

// RetrievalSource identifies which ranking source produced a candidate.
type RetrievalSource string

const (
	RetrievalSourceChunk         RetrievalSource = "chunk"
	RetrievalSourceKnowledgeBase RetrievalSource = "knowledge_base"
)

// RetrievalResult is an ephemeral ranked candidate produced per query.
// It is never persisted.
type RetrievalResult struct {
	Content      string
	SourceID     string
	DocumentID   string
	DocumentName string
	Source       RetrievalSource
	Similarity   float32
}
