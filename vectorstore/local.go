package vectorstore

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/embeddings"
)

// LocalStore persists one chromem collection per user under a single
// directory, so the whole index lives on local disk with no external service.
type LocalStore struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewLocalStore(path string, embedder embeddings.Embedder, logger *log.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}

	return &LocalStore{db: db, embedder: embedder, logger: logger}, nil
}

func (s *LocalStore) Build(ctx context.Context, userID string, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
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

	collection, err := s.db.GetOrCreateCollection(collectionName(userID), map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return fmt.Errorf("open user collection: %w", err)
	}

	base := collection.Count()
	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = uuid.New().String()
		metadatas[i] = map[string]string{
			"chunk_index": strconv.Itoa(base + chunk.Index),
		}
	}

	if err := collection.Add(ctx, ids, vectors, metadatas, texts); err != nil {
		return fmt.Errorf("add chunks to collection: %w", err)
	}

	s.logger.Printf("indexed %d chunk(s) for user %s (%d total)", len(chunks), userID, collection.Count())
	return nil
}

func (s *LocalStore) Retrieve(ctx context.Context, userID, query string, k int) ([]Result, error) {
	collection := s.db.GetCollection(collectionName(userID), nil)
	if collection == nil || collection.Count() == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrIndexNotFound)
	}

	if k <= 0 {
		k = 4
	}
	if count := collection.Count(); k > count {
		k = count
	}

	vector, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	matches, err := collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query user collection: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		index := 0
		if raw, ok := match.Metadata["chunk_index"]; ok {
			if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
				index = parsed
			}
		}
		results = append(results, Result{
			Chunk: chunker.Chunk{Text: match.Content, Index: index},
			Score: float64(match.Similarity),
		})
	}

	return results, nil
}

func (s *LocalStore) Clear(_ context.Context, userID string) (bool, error) {
	name := collectionName(userID)
	if s.db.GetCollection(name, nil) == nil {
		s.logger.Printf("no vector index found for user %s", userID)
		return false, nil
	}

	if err := s.db.DeleteCollection(name); err != nil {
		return false, fmt.Errorf("delete user collection: %w", err)
	}

	s.logger.Printf("vector index cleared for user %s", userID)
	return true, nil
}

func collectionName(userID string) string {
	return "user-" + strings.ToLower(strings.TrimSpace(userID))
}

var _ Store = (*LocalStore)(nil)
