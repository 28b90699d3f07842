package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/telemetry"
)

// DefaultSimilarityThreshold is the minimum cosine similarity a candidate
// must exceed to be returned.
const DefaultSimilarityThreshold float32 = 0.01

// DefaultRetrievalLimit caps the number of returned candidates.
const DefaultRetrievalLimit = 100

// AnswerGenerator produces a grounded answer from a question and a context
// block. The completion call lives behind this boundary.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}

// RetrievalConfig tunes the retrieval engine.
type RetrievalConfig struct {
	SimilarityThreshold float32
	Limit               int
}

// RetrievalService answers similarity queries over ingested chunks.
type RetrievalService struct {
	chunkRepo  DocumentChunkRepositoryInterface
	kbRepo     KnowledgeBaseRepositoryInterface
	embeddings EmbeddingClient
	answers    AnswerGenerator
	cfg        RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(
	chunkRepo DocumentChunkRepositoryInterface,
	kbRepo KnowledgeBaseRepositoryInterface,
	embeddings EmbeddingClient,
	answers AnswerGenerator,
	cfg RetrievalConfig,
) *RetrievalService {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultRetrievalLimit
	}
	return &RetrievalService{
		chunkRepo:  chunkRepo,
		kbRepo:     kbRepo,
		embeddings: embeddings,
		answers:    answers,
		cfg:        cfg,
	}
}

// RetrieveInput scopes a retrieval query. KnowledgeBaseID and DocumentIDs
// are mutually exclusive; with neither set the search spans all of the
// user's chunks.
type RetrieveInput struct {
	UserID          string
	Query           string
	KnowledgeBaseID string
	DocumentIDs     []string
	Limit           int
}

// Retrieve embeds the query once and ranks candidates by cosine
// similarity. When the scope is a knowledge base with a stored detail
// vector, the detail is folded in as one extra candidate; an absent detail
// vector silently narrows the ranking to chunks alone.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) ([]*domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		UserID:          input.UserID,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	limit := input.Limit
	if limit <= 0 || limit > s.cfg.Limit {
		limit = s.cfg.Limit
	}

	var kb *domain.KnowledgeBase
	documentIDs := input.DocumentIDs
	if input.KnowledgeBaseID != "" {
		var err error
		kb, err = s.kbRepo.GetByID(ctx, input.KnowledgeBaseID, input.UserID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		documentIDs = kb.DocumentIDs
		if len(documentIDs) == 0 && !kb.HasDetailEmbedding() {
			return []*domain.RetrievalResult{}, nil
		}
	}

	queryEmbedding, err := s.embeddings.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := make([]*domain.RetrievalResult, 0, limit)
	if input.KnowledgeBaseID == "" || len(documentIDs) > 0 {
		results, err = s.chunkRepo.SearchByEmbedding(ctx, queryEmbedding, SearchFilters{
			UserID:      input.UserID,
			DocumentIDs: documentIDs,
			Threshold:   s.cfg.SimilarityThreshold,
		}, limit)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	if kb != nil && kb.HasDetailEmbedding() {
		similarity := cosineSimilarity(queryEmbedding, kb.DetailEmbedding)
		if similarity > s.cfg.SimilarityThreshold {
			results = append(results, &domain.RetrievalResult{
				Content:      kb.Detail,
				SourceID:     kb.ID,
				DocumentName: kb.Name,
				Source:       domain.RetrievalSourceKnowledgeBase,
				Similarity:   similarity,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// AskOutput carries the answer and the grounding set it was built from.
type AskOutput struct {
	Answer  string
	Results []*domain.RetrievalResult
}

// Ask retrieves context for the question and delegates answer generation.
func (s *RetrievalService) Ask(ctx context.Context, input RetrieveInput) (*AskOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Ask", telemetry.SpanAttributes{
		UserID:          input.UserID,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "ask",
	})
	defer span.End()

	results, err := s.Retrieve(ctx, input)
	if err != nil {
		return nil, err
	}

	answer, err := s.answers.GenerateAnswer(ctx, input.Query, buildContextBlock(results))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &AskOutput{Answer: answer, Results: results}, nil
}

// buildContextBlock formats ranked results into the grounding context given
// to the answer generator, highest similarity first.
func buildContextBlock(results []*domain.RetrievalResult) string {
	if len(results) == 0 {
		return "(no relevant context found)"
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.DocumentName, r.Content)
	}
	return strings.TrimSpace(b.String())
}

// cosineSimilarity computes the cosine similarity between two vectors,
// matching the database-side 1 - (a <=> b) metric for in-memory candidates.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
