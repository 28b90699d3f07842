package service

import (
	"context"
	"strings"
	"time"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/pagination"
	"github.com/chatdocs-ai/chatdocs/internal/telemetry"
)

// KnowledgeBaseRepositoryInterface defines the repository interface for knowledge base persistence
type KnowledgeBaseRepositoryInterface interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id, userID string) (*domain.KnowledgeBase, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*KnowledgeBasePageResult, error)
	Update(ctx context.Context, kb *domain.KnowledgeBase) error
	Delete(ctx context.Context, id, userID string) error
}

type KnowledgeBasePageResult struct {
	Items      []*domain.KnowledgeBase
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// KnowledgeBaseService handles business logic for knowledge bases
type KnowledgeBaseService struct {
	kbRepo  KnowledgeBaseRepositoryInterface
	docRepo DocumentRepositoryInterface
	jobRepo EmbeddingJobRepositoryInterface
	uuidGen UUIDGenerator
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance
func NewKnowledgeBaseService(
	kbRepo KnowledgeBaseRepositoryInterface,
	docRepo DocumentRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		kbRepo:  kbRepo,
		docRepo: docRepo,
		jobRepo: jobRepo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeBaseServiceWithUUIDGen creates a new KnowledgeBaseService with custom UUID generator (for testing)
func NewKnowledgeBaseServiceWithUUIDGen(
	kbRepo KnowledgeBaseRepositoryInterface,
	docRepo DocumentRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
	uuidGen UUIDGenerator,
) *KnowledgeBaseService {
	s := NewKnowledgeBaseService(kbRepo, docRepo, jobRepo)
	s.uuidGen = uuidGen
	return s
}

// CreateKnowledgeBaseInput represents the input for creating a knowledge base
type CreateKnowledgeBaseInput struct {
	UserID         string
	Name           string
	Detail         string
	DocumentIDs    []string
	Public         bool
	AllowEmbedding bool
}

// UpdateKnowledgeBaseInput represents the input for updating a knowledge base
type UpdateKnowledgeBaseInput struct {
	KnowledgeBaseID string
	UserID          string
	Name            string
	Detail          string
	DocumentIDs     []string
	Public          bool
	AllowEmbedding  bool
}

type ListKnowledgeBasesInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListKnowledgeBasesOutput struct {
	Items   []*domain.KnowledgeBase
	Cursor  string
	HasMore bool
}

// Create creates a knowledge base and, when detail text is present, queues
// a detail-embedding job. The HTTP caller never waits on the embedding.
func (s *KnowledgeBaseService) Create(ctx context.Context, input CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Create", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "create",
	})
	defer span.End()

	if err := s.validateDocumentRefs(ctx, input.DocumentIDs, input.UserID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	kb := &domain.KnowledgeBase{
		ID:             s.uuidGen.NewString(),
		UserID:         input.UserID,
		Name:           input.Name,
		Detail:         input.Detail,
		DocumentIDs:    input.DocumentIDs,
		Public:         input.Public,
		AllowEmbedding: input.AllowEmbedding,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return nil, err
	}

	if err := s.kbRepo.Create(ctx, kb); err != nil {
		return nil, err
	}

	if strings.TrimSpace(kb.Detail) != "" {
		if err := s.enqueueDetailJob(ctx, kb.ID, now); err != nil {
			return nil, err
		}
	}

	return kb, nil
}

// GetByID retrieves a knowledge base by ID
func (s *KnowledgeBaseService) GetByID(ctx context.Context, id, userID string) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.GetByID", telemetry.SpanAttributes{
		UserID:          userID,
		KnowledgeBaseID: id,
		Operation:       "get",
	})
	defer span.End()

	return s.kbRepo.GetByID(ctx, id, userID)
}

func (s *KnowledgeBaseService) List(ctx context.Context, input ListKnowledgeBasesInput) (*ListKnowledgeBasesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.List", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.kbRepo.ListByUserWithCursor(ctx, input.UserID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListKnowledgeBasesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Update rewrites a knowledge base. A changed detail text re-queues the
// detail-embedding job; the stale vector stays in place until the job
// overwrites it, or clears it when the new detail is empty.
func (s *KnowledgeBaseService) Update(ctx context.Context, input UpdateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Update", telemetry.SpanAttributes{
		UserID:          input.UserID,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "update",
	})
	defer span.End()

	kb, err := s.kbRepo.GetByID(ctx, input.KnowledgeBaseID, input.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.validateDocumentRefs(ctx, input.DocumentIDs, input.UserID); err != nil {
		return nil, err
	}

	detailChanged := kb.Detail != input.Detail

	kb.Name = input.Name
	kb.Detail = input.Detail
	kb.DocumentIDs = input.DocumentIDs
	kb.Public = input.Public
	kb.AllowEmbedding = input.AllowEmbedding

	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return nil, err
	}

	if err := s.kbRepo.Update(ctx, kb); err != nil {
		return nil, err
	}

	if detailChanged {
		if err := s.enqueueDetailJob(ctx, kb.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	return kb, nil
}

// Delete removes a knowledge base. Referenced documents are untouched; the
// join rows cascade.
func (s *KnowledgeBaseService) Delete(ctx context.Context, id, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Delete", telemetry.SpanAttributes{
		UserID:          userID,
		KnowledgeBaseID: id,
		Operation:       "delete",
	})
	defer span.End()

	return s.kbRepo.Delete(ctx, id, userID)
}

// validateDocumentRefs checks that every referenced document exists and
// belongs to the user.
func (s *KnowledgeBaseService) validateDocumentRefs(ctx context.Context, documentIDs []string, userID string) error {
	if len(documentIDs) == 0 {
		return nil
	}

	docs, err := s.docRepo.GetByIDs(ctx, documentIDs, userID)
	if err != nil {
		return err
	}
	if len(docs) != len(uniqueStrings(documentIDs)) {
		return domain.ErrDocumentNotOwned
	}
	return nil
}

func (s *KnowledgeBaseService) enqueueDetailJob(ctx context.Context, kbID string, now time.Time) error {
	job := &domain.EmbeddingJob{
		ID:              s.uuidGen.NewString(),
		KnowledgeBaseID: kbID,
		Status:          domain.EmbeddingJobStatusPending,
		CreatedAt:       now,
	}
	return s.jobRepo.Create(ctx, job)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
