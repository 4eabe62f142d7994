// Package vectorstore maintains one persisted embedding index per user and
// answers nearest-neighbour queries against it.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/config"
	"github.com/arogya-labs/medassist/embeddings"
)

// ErrIndexNotFound reports that no index has been built for the user.
var ErrIndexNotFound = errors.New("vector index not found for user")

// Result is a retrieved chunk with its similarity score, higher is closer.
type Result struct {
	Chunk chunker.Chunk
	Score float64
}

// Store owns the per-user indexes. Build embeds the given chunks and appends
// them to the user's index, creating it if absent; the index survives process
// restarts. Retrieve returns the k chunks nearest to the query, most similar
// first. Clear deletes the user's index; clearing an absent index returns
// found=false rather than an error.
type Store interface {
	Build(ctx context.Context, userID string, chunks []chunker.Chunk) error
	Retrieve(ctx context.Context, userID, query string, k int) ([]Result, error)
	Clear(ctx context.Context, userID string) (found bool, err error)
}

// New selects the backend configured by cfg.VectorBackend.
func New(cfg config.Config, pool *pgxpool.Pool, embedder embeddings.Embedder, logger *log.Logger) (Store, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendLocal:
		return NewLocalStore(cfg.VectorPath, embedder, logger)
	case config.VectorBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres backend selected but no pool provided")
		}
		return NewPostgresStore(pool, embedder, cfg.Embeddings.Dimension, logger), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}

func embedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return vectors[0], nil
}
