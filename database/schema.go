package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureVectorSchema creates the pgvector-backed chunk table used by the
// postgres vector store backend.
func EnsureVectorSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_chunks (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_user_chunks_user ON user_chunks(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_user_chunks_embedding ON user_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// EnsureMemorySchema creates the sqlite tables backing conversation memory:
// the replaceable short-term chat history and the append-only long-term log.
func EnsureMemorySchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_messages (
			user_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (user_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			source TEXT NOT NULL,
			source_type TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_conversation_entries_user ON conversation_entries(user_id, created_at)",
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
