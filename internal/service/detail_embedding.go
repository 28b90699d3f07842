package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
)

// DetailEmbeddingRepository defines the repository interface for detail embedding operations
type DetailEmbeddingRepository interface {
	GetForEmbedding(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	UpdateDetailEmbedding(ctx context.Context, id string, embedding []float32) error
}

// DetailEmbeddingService embeds knowledge-base detail text. It is driven by
// the background job worker, never by a request handler.
type DetailEmbeddingService struct {
	client EmbeddingClient
	repo   DetailEmbeddingRepository
}

// NewDetailEmbeddingService creates a new DetailEmbeddingService instance
func NewDetailEmbeddingService(client EmbeddingClient, repo DetailEmbeddingRepository) *DetailEmbeddingService {
	return &DetailEmbeddingService{
		client: client,
		repo:   repo,
	}
}

// ProcessDetail embeds the knowledge base's current detail text in one call
// and stores the vector. Re-running it for the same detail text overwrites
// the vector with an equivalent one, so retries are safe. An empty detail
// clears the stored vector; the vector always corresponds to the current
// detail text once the job has run.
func (s *DetailEmbeddingService) ProcessDetail(ctx context.Context, knowledgeBaseID string) error {
	kb, err := s.repo.GetForEmbedding(ctx, knowledgeBaseID)
	if err != nil {
		return err
	}

	detail := strings.TrimSpace(kb.Detail)
	if detail == "" {
		if err := s.repo.UpdateDetailEmbedding(ctx, knowledgeBaseID, nil); err != nil {
			return fmt.Errorf("failed to clear detail embedding: %w", err)
		}
		return nil
	}

	embedding, err := s.client.GenerateEmbedding(ctx, detail)
	if err != nil {
		return fmt.Errorf("failed to generate detail embedding: %w", err)
	}

	if err := s.repo.UpdateDetailEmbedding(ctx, knowledgeBaseID, embedding); err != nil {
		return fmt.Errorf("failed to update detail embedding: %w", err)
	}

	return nil
}
