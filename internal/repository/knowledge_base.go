package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/pagination"
	"github.com/chatdocs-ai/chatdocs/internal/service"
)

type KnowledgeBaseRepository struct {
	db dbtx
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: pool}
}

func NewKnowledgeBaseRepositoryWithTx(tx pgx.Tx) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: tx}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_bases (id, user_id, name, detail, public, allow_embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		kb.ID, kb.UserID, kb.Name, kb.Detail, kb.Public, kb.AllowEmbedding, kb.CreatedAt, kb.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return r.replaceDocumentRefs(ctx, kb.ID, kb.DocumentIDs)
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id, userID string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var detailEmbedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, detail, detail_embedding, public, allow_embedding, created_at, updated_at
		 FROM knowledge_bases WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&kb.ID, &kb.UserID, &kb.Name, &kb.Detail, &detailEmbedding, &kb.Public, &kb.AllowEmbedding, &kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	if detailEmbedding != nil {
		kb.DetailEmbedding = detailEmbedding.Slice()
	}

	kb.DocumentIDs, err = r.getDocumentRefs(ctx, kb.ID)
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

// GetForEmbedding fetches a knowledge base without owner scoping. The
// background worker has no user context; jobs reference KBs by id only.
func (r *KnowledgeBaseRepository) GetForEmbedding(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var detailEmbedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, detail, detail_embedding, public, allow_embedding, created_at, updated_at
		 FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&kb.ID, &kb.UserID, &kb.Name, &kb.Detail, &detailEmbedding, &kb.Public, &kb.AllowEmbedding, &kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	if detailEmbedding != nil {
		kb.DetailEmbedding = detailEmbedding.Slice()
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.KnowledgeBasePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, name, detail, detail_embedding, public, allow_embedding, created_at, updated_at
			 FROM knowledge_bases
			 WHERE user_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, name, detail, detail_embedding, public, allow_embedding, created_at, updated_at
			 FROM knowledge_bases
			 WHERE user_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeBaseRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.KnowledgeBasePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Update rewrites the mutable fields and document references. The detail
// embedding is intentionally untouched here; only the background job writes
// it, and only UpdateDetailEmbedding clears or sets it.
func (r *KnowledgeBaseRepository) Update(ctx context.Context, kb *domain.KnowledgeBase) error {
	kb.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases SET name = $1, detail = $2, public = $3, allow_embedding = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`,
		kb.Name, kb.Detail, kb.Public, kb.AllowEmbedding, kb.UpdatedAt, kb.ID, kb.UserID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return r.replaceDocumentRefs(ctx, kb.ID, kb.DocumentIDs)
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id, userID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_bases WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}

// UpdateDetailEmbedding stores the detail vector. A nil embedding clears
// the column so a cleared detail text never retrieves against an old
// vector.
func (r *KnowledgeBaseRepository) UpdateDetailEmbedding(ctx context.Context, id string, embedding []float32) error {
	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_bases SET detail_embedding = $1, updated_at = $2 WHERE id = $3`,
		vec, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}

func (r *KnowledgeBaseRepository) replaceDocumentRefs(ctx context.Context, kbID string, documentIDs []string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_base_documents WHERE knowledge_base_id = $1`, kbID)
	if err != nil {
		return err
	}
	for _, docID := range documentIDs {
		_, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_base_documents (knowledge_base_id, document_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			kbID, docID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *KnowledgeBaseRepository) getDocumentRefs(ctx context.Context, kbID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id FROM knowledge_base_documents WHERE knowledge_base_id = $1 ORDER BY document_id`,
		kbID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanKnowledgeBaseRows(rows pgx.Rows) ([]*domain.KnowledgeBase, error) {
	var results []*domain.KnowledgeBase
	for rows.Next() {
		var kb domain.KnowledgeBase
		var detailEmbedding *pgvector.Vector
		if err := rows.Scan(&kb.ID, &kb.UserID, &kb.Name, &kb.Detail, &detailEmbedding, &kb.Public, &kb.AllowEmbedding, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, err
		}
		if detailEmbedding != nil {
			kb.DetailEmbedding = detailEmbedding.Slice()
		}
		results = append(results, &kb)
	}
	return results, rows.Err()
}
