package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/service"
)

// DocumentChunkRepository handles persistence of chunked document embeddings.
type DocumentChunkRepository struct {
	db dbtx
}

func NewDocumentChunkRepository(pool *pgxpool.Pool) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: pool}
}

func NewDocumentChunkRepositoryWithTx(tx pgx.Tx) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: tx}
}

// UpsertChunks inserts chunks keyed on (document_id, content_hash).
// Re-ingesting identical content hits the conflict path and refreshes the
// embedding instead of creating duplicate rows.
func (r *DocumentChunkRepository) UpsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, user_id, document_name, content, content_hash, embedding, active, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (document_id, content_hash)
			 DO UPDATE SET embedding = EXCLUDED.embedding, active = EXCLUDED.active`,
			c.ID,
			c.DocumentID,
			c.UserID,
			c.DocumentName,
			c.Content,
			c.ContentHash,
			pgvector.NewVector(c.Embedding),
			c.Active,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *DocumentChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *DocumentChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchByEmbedding runs cosine nearest-neighbor search over chunk vectors.
// Similarity is 1 - cosine distance; rows at or below the threshold are
// filtered in SQL so the candidate set never leaves the database.
func (r *DocumentChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, filters service.SearchFilters, limit int) ([]*domain.RetrievalResult, error) {
	if limit <= 0 {
		limit = 100
	}

	vec := pgvector.NewVector(embedding)

	var rows pgx.Rows
	var err error

	if len(filters.DocumentIDs) > 0 {
		rows, err = r.db.Query(ctx, `
			SELECT id, document_id, document_name, content,
			       1 - (embedding <=> $1) AS similarity
			FROM document_chunks
			WHERE user_id = $2
			  AND active = TRUE
			  AND document_id = ANY($3)
			  AND 1 - (embedding <=> $1) > $4
			ORDER BY similarity DESC
			LIMIT $5`,
			vec, filters.UserID, filters.DocumentIDs, filters.Threshold, limit,
		)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, document_id, document_name, content,
			       1 - (embedding <=> $1) AS similarity
			FROM document_chunks
			WHERE user_id = $2
			  AND active = TRUE
			  AND 1 - (embedding <=> $1) > $3
			ORDER BY similarity DESC
			LIMIT $4`,
			vec, filters.UserID, filters.Threshold, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.RetrievalResult, 0)
	for rows.Next() {
		var result domain.RetrievalResult
		if err := rows.Scan(&result.SourceID, &result.DocumentID, &result.DocumentName, &result.Content, &result.Similarity); err != nil {
			return nil, err
		}
		result.Source = domain.RetrievalSourceChunk
		results = append(results, &result)
	}

	return results, rows.Err()
}
