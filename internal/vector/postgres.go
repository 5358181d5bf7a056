package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"searchcore/internal/model"
)

// PostgresStore is the pgvector-backed similarity index. One row per
// (property, locale) in property_embeddings; the upsert is a single
// statement, which gives the per-id atomic swap for free.
type PostgresStore struct {
	db   *sqlx.DB
	dims int
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB, dims int) *PostgresStore {
	return &PostgresStore{db: db, dims: dims}
}

// Search implements Store. Cosine distance (<=>) is converted to
// similarity; the published gate is applied in the join so deactivated
// listings never surface even while their vectors still exist.
func (s *PostgresStore) Search(ctx context.Context, queryVec []float32, locale model.Locale, candidateIDs map[string]struct{}, topK int, minSimilarity float64) ([]model.SimilarityMatch, error) {
	if len(queryVec) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(queryVec), s.dims)
	}

	vec := pgvector.NewVector(queryVec)
	whereClauses := []string{
		"e.locale = $2",
		"p.published = true",
		"p.soft_deleted = false",
		"1 - (e.embedding <=> $1) >= $3",
	}
	args := []interface{}{vec, string(locale), minSimilarity}
	argIndex := 4

	if candidateIDs != nil {
		ids := make([]string, 0, len(candidateIDs))
		for id := range candidateIDs {
			ids = append(ids, id)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("e.property_id = ANY($%d)", argIndex))
		args = append(args, pq.Array(ids))
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT e.property_id, 1 - (e.embedding <=> $1) AS score
		FROM property_embeddings e
		JOIN properties p ON p.id = e.property_id
		WHERE %s
		ORDER BY e.embedding <=> $1, e.property_id
		LIMIT $%d`, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, topK)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var matches []model.SimilarityMatch
	for rows.Next() {
		var m model.SimilarityMatch
		if err := rows.Scan(&m.PropertyID, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, propertyID string, locale model.Locale, vec []float32, contentHash string) error {
	if len(vec) != s.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dims)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO property_embeddings (property_id, locale, embedding, content_hash, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (property_id, locale)
		DO UPDATE SET embedding = EXCLUDED.embedding, content_hash = EXCLUDED.content_hash, updated_at = NOW()`,
		propertyID, string(locale), pgvector.NewVector(vec), contentHash)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, propertyID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM property_embeddings WHERE property_id = $1`, propertyID)
	if err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return nil
}

// ContentHash implements Store.
func (s *PostgresStore) ContentHash(ctx context.Context, propertyID string, locale model.Locale) (string, error) {
	var hash string
	err := s.db.GetContext(ctx,
		&hash,
		`SELECT content_hash FROM property_embeddings WHERE property_id = $1 AND locale = $2`,
		propertyID, string(locale))
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content hash: %w", err)
	}
	return hash, nil
}
