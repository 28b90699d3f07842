//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/pagination"
	"github.com/chatdocs-ai/chatdocs/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, userID, title string) *domain.Document {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.NewString()
	doc := &domain.Document{
		ID:          id,
		UserID:      userID,
		Title:       title,
		FileName:    title + ".txt",
		StorageName: id + ".txt",
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "user-1", "Report")

	retrieved, err := repo.GetByID(ctx, doc.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, "Report", retrieved.Title)
	assert.Equal(t, "Report.txt", retrieved.FileName)
	assert.Equal(t, doc.ID+".txt", retrieved.StorageName)
	assert.True(t, retrieved.Active)
}

func TestDocumentRepository_GetByID_WrongUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "user-1", "Private")

	_, err := repo.GetByID(ctx, doc.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByUserWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	for i := 0; i < 3; i++ {
		newStoredDocument(ctx, t, repo, "user-1", "Doc"+string(rune('A'+i)))
		time.Sleep(5 * time.Millisecond)
	}
	newStoredDocument(ctx, t, repo, "user-2", "OtherUser")

	first, err := repo.ListByUserWithCursor(ctx, "user-1", nil, 2)
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)

	cursor, err := pagination.DecodeCursor(first.NextCursor)
	require.NoError(t, err)

	second, err := repo.ListByUserWithCursor(ctx, "user-1", cursor, 2)
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)

	seen := map[string]bool{}
	for _, d := range append(first.Items, second.Items...) {
		assert.Equal(t, "user-1", d.UserID)
		assert.False(t, seen[d.ID], "document %s returned twice", d.ID)
		seen[d.ID] = true
	}
}

func TestDocumentRepository_GetByIDs(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	docA := newStoredDocument(ctx, t, repo, "user-1", "A")
	docB := newStoredDocument(ctx, t, repo, "user-1", "B")
	other := newStoredDocument(ctx, t, repo, "user-2", "C")

	docs, err := repo.GetByIDs(ctx, []string{docA.ID, docB.ID, other.ID}, "user-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "user-1", "ToDelete")

	require.NoError(t, repo.Delete(ctx, doc.ID, "user-1"))

	_, err := repo.GetByID(ctx, doc.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_Delete_WrongUser(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "user-1", "Guarded")

	err := repo.Delete(ctx, doc.ID, "user-2")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	_, err = repo.GetByID(ctx, doc.ID, "user-1")
	assert.NoError(t, err)
}
