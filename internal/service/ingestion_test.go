package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/splitter"
)

// runeTokenCounter counts one token per rune so tests need no vocabulary
type runeTokenCounter struct{}

func (runeTokenCounter) CountTokens(text string) int {
	return len([]rune(text))
}

func newTestDocumentService(
	docRepo *MockDocumentRepository,
	chunkRepo *MockDocumentChunkRepository,
	embeddings *MockEmbeddingClient,
	blobs *MockBlobStore,
	uuids ...string,
) *DocumentService {
	txRunner := &stubTxRunner{repos: &stubTxRepos{docs: docRepo, chunks: chunkRepo}}
	return NewDocumentServiceWithUUIDGen(
		docRepo,
		txRunner,
		embeddings,
		blobs,
		splitter.New(splitter.DefaultConfig()),
		runeTokenCounter{},
		NewMockUUIDGenerator(uuids...),
	)
}

func TestDocumentService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("stores blob, embeds chunks and persists document", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs, "doc-1", "chunk-1")

		content := []byte("A short note about ingestion.")
		embedding := []float32{0.1, 0.2, 0.3}

		mockBlobs.On("PutObject", mock.Anything, "user_user-1/doc-1.txt", content, "text/plain").Return(nil)
		mockEmbeddings.On("GenerateEmbedding", mock.Anything, "A short note about ingestion.").Return(embedding, nil)
		mockDocRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Document")).Return(nil)
		mockChunkRepo.On("UpsertChunks", mock.Anything, mock.AnythingOfType("[]domain.DocumentChunk")).Return(nil)

		doc, err := service.Ingest(ctx, IngestInput{
			FileBytes:   content,
			FileName:    "note.txt",
			ContentType: "text/plain",
			Title:       "Note",
			UserID:      "user-1",
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, "user-1", doc.UserID)
		assert.Equal(t, "Note", doc.Title)
		assert.Equal(t, "note.txt", doc.FileName)
		assert.Equal(t, "doc-1.txt", doc.StorageName)
		assert.True(t, doc.Active)

		mockBlobs.AssertExpectations(t)
		mockEmbeddings.AssertExpectations(t)
		mockDocRepo.AssertExpectations(t)
		mockChunkRepo.AssertExpectations(t)

		chunks := mockChunkRepo.Calls[0].Arguments.Get(1).([]domain.DocumentChunk)
		require.Len(t, chunks, 1)
		assert.Equal(t, "doc-1", chunks[0].DocumentID)
		assert.Equal(t, hashContent(chunks[0].Content), chunks[0].ContentHash)
		assert.Equal(t, embedding, chunks[0].Embedding)
	})

	t.Run("rejects unsupported format before touching storage", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

		_, err := service.Ingest(ctx, IngestInput{
			FileBytes: []byte{0x89, 0x50, 0x4e, 0x47},
			FileName:  "image.png",
			UserID:    "user-1",
		})

		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		mockBlobs.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects empty file", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

		_, err := service.Ingest(ctx, IngestInput{
			FileBytes: nil,
			FileName:  "empty.txt",
			UserID:    "user-1",
		})

		assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	})

	t.Run("deletes blob when embedding fails", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs, "doc-1")

		content := []byte("Text that will fail to embed.")
		embedErr := errors.New("rate limited")

		mockBlobs.On("PutObject", mock.Anything, "user_user-1/doc-1.txt", content, "").Return(nil)
		mockEmbeddings.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, embedErr)
		mockBlobs.On("DeleteObject", mock.Anything, "user_user-1/doc-1.txt").Return(nil)

		_, err := service.Ingest(ctx, IngestInput{
			FileBytes: content,
			FileName:  "fail.txt",
			UserID:    "user-1",
		})

		assert.ErrorIs(t, err, embedErr)
		mockBlobs.AssertCalled(t, "DeleteObject", mock.Anything, "user_user-1/doc-1.txt")
		mockDocRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("deletes blob when the transaction fails", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs, "doc-1", "chunk-1")

		content := []byte("Text whose row insert fails.")
		dbErr := errors.New("connection reset")

		mockBlobs.On("PutObject", mock.Anything, "user_user-1/doc-1.txt", content, "").Return(nil)
		mockEmbeddings.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
		mockDocRepo.On("Create", mock.Anything, mock.Anything).Return(dbErr)
		mockBlobs.On("DeleteObject", mock.Anything, "user_user-1/doc-1.txt").Return(nil)

		_, err := service.Ingest(ctx, IngestInput{
			FileBytes: content,
			FileName:  "tx.txt",
			UserID:    "user-1",
		})

		assert.ErrorIs(t, err, dbErr)
		mockBlobs.AssertCalled(t, "DeleteObject", mock.Anything, "user_user-1/doc-1.txt")
	})

	t.Run("equal upload names never share a blob object", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs, "doc-1", "chunk-1", "doc-2")

		content := []byte("Notes uploaded twice under the same name.")
		embedErr := errors.New("rate limited")

		mockBlobs.On("PutObject", mock.Anything, "user_user-1/doc-1.txt", content, "").Return(nil)
		mockBlobs.On("PutObject", mock.Anything, "user_user-1/doc-2.txt", content, "").Return(nil)
		mockEmbeddings.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil).Once()
		mockEmbeddings.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, embedErr)
		mockDocRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockChunkRepo.On("UpsertChunks", mock.Anything, mock.Anything).Return(nil)
		mockBlobs.On("DeleteObject", mock.Anything, "user_user-1/doc-2.txt").Return(nil)

		first, err := service.Ingest(ctx, IngestInput{
			FileBytes: content,
			FileName:  "notes.txt",
			UserID:    "user-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "doc-1.txt", first.StorageName)

		// The second, failing ingest of the same file name compensates by
		// deleting its own blob and must leave the first document's intact.
		_, err = service.Ingest(ctx, IngestInput{
			FileBytes: content,
			FileName:  "notes.txt",
			UserID:    "user-1",
		})
		require.ErrorIs(t, err, embedErr)

		mockBlobs.AssertCalled(t, "DeleteObject", mock.Anything, "user_user-1/doc-2.txt")
		mockBlobs.AssertNotCalled(t, "DeleteObject", mock.Anything, "user_user-1/doc-1.txt")
	})

	t.Run("requires a user id", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

		_, err := service.Ingest(ctx, IngestInput{
			FileBytes: []byte("text"),
			FileName:  "note.txt",
		})

		assert.Error(t, err)
	})
}

func TestHashContent_Deterministic(t *testing.T) {
	// Identical content always maps to the same hash, which is what makes
	// re-ingesting the same file an upsert instead of a duplicate insert.
	assert.Equal(t, hashContent("same chunk"), hashContent("same chunk"))
	assert.NotEqual(t, hashContent("chunk a"), hashContent("chunk b"))
	assert.Len(t, hashContent("x"), 64)
}

func TestDocumentService_DeleteDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("removes row then blob", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

		doc := &domain.Document{ID: "doc-1", UserID: "user-1", FileName: "note.txt", StorageName: "doc-1.txt"}
		mockDocRepo.On("GetByID", mock.Anything, "doc-1", "user-1").Return(doc, nil)
		mockDocRepo.On("Delete", mock.Anything, "doc-1", "user-1").Return(nil)
		mockBlobs.On("DeleteObject", mock.Anything, "user_user-1/doc-1.txt").Return(nil)

		err := service.DeleteDocument(ctx, "doc-1", "user-1")

		require.NoError(t, err)
		mockDocRepo.AssertExpectations(t)
		mockBlobs.AssertExpectations(t)
	})

	t.Run("missing document surfaces not found", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockChunkRepo := new(MockDocumentChunkRepository)
		mockEmbeddings := new(MockEmbeddingClient)
		mockBlobs := new(MockBlobStore)

		service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

		mockDocRepo.On("GetByID", mock.Anything, "missing", "user-1").Return(nil, domain.ErrDocumentNotFound)

		err := service.DeleteDocument(ctx, "missing", "user-1")

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		mockBlobs.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
	})
}

func TestDocumentService_DownloadURL(t *testing.T) {
	ctx := context.Background()

	mockDocRepo := new(MockDocumentRepository)
	mockChunkRepo := new(MockDocumentChunkRepository)
	mockEmbeddings := new(MockEmbeddingClient)
	mockBlobs := new(MockBlobStore)

	service := newTestDocumentService(mockDocRepo, mockChunkRepo, mockEmbeddings, mockBlobs)

	doc := &domain.Document{ID: "doc-1", UserID: "user-1", FileName: "note.txt", StorageName: "doc-1.txt"}
	mockDocRepo.On("GetByID", mock.Anything, "doc-1", "user-1").Return(doc, nil)
	mockBlobs.On("GenerateDownloadURL", mock.Anything, "user_user-1/doc-1.txt").Return("https://example.com/presigned", nil)

	url, err := service.DownloadURL(ctx, "doc-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/presigned", url)
}
