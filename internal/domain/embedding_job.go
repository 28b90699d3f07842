package domain

import "time"

// EmbeddingJobStatus represents the status of a detail-embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob queues knowledge-base detail embedding work. Jobs are
// enqueued by the KB create/update path and drained by the background
// worker, so the HTTP response never waits on the embedding call.
type EmbeddingJob struct {
	ID              string
	KnowledgeBaseID string
	Status          EmbeddingJobStatus
	Retries         int
	Error           string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
