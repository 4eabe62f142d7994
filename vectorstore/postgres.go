package vectorstore

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/database"
	"github.com/arogya-labs/medassist/embeddings"
)

// PostgresStore keeps every user's chunks in a single pgvector table,
// namespaced by user_id.
type PostgresStore struct {
	pool      *pgxpool.Pool
	embedder  embeddings.Embedder
	dimension int
	logger    *log.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, embedder embeddings.Embedder, dimension int, logger *log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.Default()
	}

	return &PostgresStore{
		pool:      pool,
		embedder:  embedder,
		dimension: dimension,
		logger:    logger,
	}
}

func (s *PostgresStore) Build(ctx context.Context, userID string, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}
	if err := database.EnsureVectorSchema(ctx, s.pool, s.dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	var base int
	if err = tx.QueryRow(ctx, "SELECT COALESCE(MAX(chunk_index)+1, 0) FROM user_chunks WHERE user_id = $1", userID).Scan(&base); err != nil {
		return fmt.Errorf("query chunk offset: %w", err)
	}

	for i, chunk := range chunks {
		vec := pgvector.NewVector(vectors[i])
		if _, err = tx.Exec(ctx, `
			INSERT INTO user_chunks (id, user_id, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, uuid.New(), userID, base+chunk.Index, chunk.Text, vec); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Printf("indexed %d chunk(s) for user %s", len(chunks), userID)
	return nil
}

func (s *PostgresStore) Retrieve(ctx context.Context, userID, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 4
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM user_chunks WHERE user_id = $1)", userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user index: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, ErrIndexNotFound)
	}

	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_index, content, (embedding <-> $2::vector) AS distance
		FROM user_chunks
		WHERE user_id = $1
		ORDER BY embedding <-> $2::vector
		LIMIT $3
	`, userID, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var (
			item     Result
			distance float64
		)
		if scanErr := rows.Scan(&item.Chunk.Index, &item.Chunk.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM user_chunks WHERE user_id = $1", userID)
	if err != nil {
		return false, fmt.Errorf("delete user chunks: %w", err)
	}

	if tag.RowsAffected() == 0 {
		s.logger.Printf("no vector index found for user %s", userID)
		return false, nil
	}

	s.logger.Printf("vector index cleared for user %s (%d chunks)", userID, tag.RowsAffected())
	return true, nil
}

var _ Store = (*PostgresStore)(nil)
