package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/extract"
	"github.com/chatdocs-ai/chatdocs/internal/pagination"
	"github.com/chatdocs-ai/chatdocs/internal/splitter"
	"github.com/chatdocs-ai/chatdocs/internal/storage"
	"github.com/chatdocs-ai/chatdocs/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id, userID string) (*domain.Document, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	GetByIDs(ctx context.Context, ids []string, userID string) ([]*domain.Document, error)
	Update(ctx context.Context, d *domain.Document) error
	Delete(ctx context.Context, id, userID string) error
}

// DocumentChunkRepositoryInterface defines the repository interface for chunk persistence
type DocumentChunkRepositoryInterface interface {
	UpsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	SearchByEmbedding(ctx context.Context, embedding []float32, filters SearchFilters, limit int) ([]*domain.RetrievalResult, error)
}

// SearchFilters restricts a vector search to one user and an optional
// document set.
type SearchFilters struct {
	UserID      string
	DocumentIDs []string
	Threshold   float32
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// TxRepositories exposes repositories bound to one transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Chunks() DocumentChunkRepositoryInterface
	KnowledgeBases() KnowledgeBaseRepositoryInterface
	EmbeddingJobs() EmbeddingJobRepositoryInterface
}

// TxRunnerInterface runs a function inside a database transaction.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BlobStore defines the interface for original-file storage
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService runs the ingestion pipeline and owns document lifecycle.
type DocumentService struct {
	docRepo    DocumentRepositoryInterface
	txRunner   TxRunnerInterface
	embeddings EmbeddingClient
	blobs      BlobStore
	split      *splitter.Splitter
	tokens     splitter.TokenCounter
	uuidGen    UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	txRunner TxRunnerInterface,
	embeddings EmbeddingClient,
	blobs BlobStore,
	split *splitter.Splitter,
	tokens splitter.TokenCounter,
) *DocumentService {
	return &DocumentService{
		docRepo:    docRepo,
		txRunner:   txRunner,
		embeddings: embeddings,
		blobs:      blobs,
		split:      split,
		tokens:     tokens,
		uuidGen:    &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	txRunner TxRunnerInterface,
	embeddings EmbeddingClient,
	blobs BlobStore,
	split *splitter.Splitter,
	tokens splitter.TokenCounter,
	uuidGen UUIDGenerator,
) *DocumentService {
	s := NewDocumentService(docRepo, txRunner, embeddings, blobs, split, tokens)
	s.uuidGen = uuidGen
	return s
}

// IngestInput represents one uploaded file
type IngestInput struct {
	FileBytes   []byte
	FileName    string
	ContentType string
	Title       string
	UserID      string
}

// Ingest runs the full pipeline: blob write, text extraction, chunking,
// token-ceiling enforcement, embedding, and persistence. The blob is
// written first; any later failure deletes it again so no orphaned object
// survives a failed ingestion, and the document row only exists once its
// chunks committed with it.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Ingest", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "ingest",
	})
	defer span.End()

	if input.UserID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user id is required")
	}
	if input.FileName == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file name is required")
	}
	if len(input.FileBytes) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	title := input.Title
	if title == "" {
		title = input.FileName
	}

	text, err := extract.Text(input.FileBytes, input.FileName)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	chunks := s.split.Split(text)
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	chunks, dropped := s.split.EnforceTokenCeiling(chunks, s.tokens)
	if dropped > 0 {
		telemetry.CaptureMessage(ctx, fmt.Sprintf("ingestion dropped %d oversize chunk(s) for file %s", dropped, input.FileName))
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	// The blob key comes from the freshly generated document id, never
	// from the upload name. Equal file names from one user must not share
	// an object, or a failed re-upload's compensating delete would destroy
	// the surviving document's file.
	docID := s.uuidGen.NewString()
	storageName := docID + filepath.Ext(input.FileName)
	blobKey := storage.ObjectKey(input.UserID, storageName)
	if err := s.blobs.PutObject(ctx, blobKey, input.FileBytes, input.ContentType); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store file", err)
	}

	embeddings, err := s.embedChunks(ctx, chunks)
	if err != nil {
		s.compensateBlob(ctx, blobKey)
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          docID,
		UserID:      input.UserID,
		Title:       title,
		FileName:    input.FileName,
		StorageName: storageName,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		s.compensateBlob(ctx, blobKey)
		return nil, err
	}

	chunkRows := make([]domain.DocumentChunk, 0, len(chunks))
	for i, content := range chunks {
		chunkRows = append(chunkRows, domain.DocumentChunk{
			ID:           s.uuidGen.NewString(),
			DocumentID:   doc.ID,
			UserID:       input.UserID,
			DocumentName: title,
			Content:      content,
			ContentHash:  hashContent(content),
			Embedding:    embeddings[i],
			Active:       true,
			CreatedAt:    now,
		})
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Chunks().UpsertChunks(ctx, chunkRows)
	})
	if err != nil {
		s.compensateBlob(ctx, blobKey)
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// embedChunks generates one embedding per chunk concurrently. Any single
// failure cancels the group and fails the whole ingestion; there is no
// placeholder vector path.
func (s *DocumentService) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)

	for i, chunk := range chunks {
		g.Go(func() error {
			embedding, err := s.embeddings.GenerateEmbedding(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			embeddings[i] = embedding
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// compensateBlob removes the already written blob after a downstream
// failure. Best effort: a leaked delete is logged, not returned, because
// the original error is what the caller needs.
func (s *DocumentService) compensateBlob(ctx context.Context, key string) {
	if err := s.blobs.DeleteObject(ctx, key); err != nil {
		log.Printf("ingestion: failed to delete blob %s after error: %v", key, err)
		telemetry.CaptureError(ctx, err)
	}
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetDocument retrieves a document by ID scoped to its owner
func (s *DocumentService) GetDocument(ctx context.Context, id, userID string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetDocument", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.docRepo.GetByID(ctx, id, userID)
}

type ListDocumentsInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

func (s *DocumentService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ListDocuments", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.docRepo.ListByUserWithCursor(ctx, input.UserID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// DeleteDocument removes the document row (chunks cascade) and its blob.
// The row goes first: if the blob delete then fails the object is orphaned
// but invisible, which beats a row pointing at a deleted blob.
func (s *DocumentService) DeleteDocument(ctx context.Context, id, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.DeleteDocument", telemetry.SpanAttributes{
		UserID:     userID,
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.docRepo.Delete(ctx, id, userID); err != nil {
		return err
	}

	blobKey := storage.ObjectKey(userID, doc.StorageName)
	if err := s.blobs.DeleteObject(ctx, blobKey); err != nil {
		log.Printf("documents: failed to delete blob %s: %v", blobKey, err)
		telemetry.CaptureError(ctx, err)
	}

	return nil
}

// DownloadURL returns a presigned URL for the original file.
func (s *DocumentService) DownloadURL(ctx context.Context, id, userID string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, id, userID)
	if err != nil {
		return "", err
	}
	return s.blobs.GenerateDownloadURL(ctx, storage.ObjectKey(userID, doc.StorageName))
}
