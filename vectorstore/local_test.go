package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/embeddings"
	"github.com/arogya-labs/medassist/vectorstore"
)

// stubEmbedder returns a fixed vector per known text so similarity ranking is
// fully controlled by the test.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no stub vector for %q", text)
		}
		results[i] = vec
	}
	return results, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

func testEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"The sky is blue.":   {1, 0, 0},
		"Grass is green.":    {0, 1, 0},
		"Roses are red.":     {0, 0, 1},
		"What color is sky?": {0.9, 0.1, 0},
	}}
}

func newLocalStore(t *testing.T, path string) *vectorstore.LocalStore {
	t.Helper()
	store, err := vectorstore.NewLocalStore(path, testEmbedder(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func testChunks() []chunker.Chunk {
	return []chunker.Chunk{
		{Text: "The sky is blue.", Index: 0},
		{Text: "Grass is green.", Index: 1},
		{Text: "Roses are red.", Index: 2},
	}
}

func TestLocalStoreBuildAndRetrieve(t *testing.T) {
	store := newLocalStore(t, t.TempDir())
	ctx := context.Background()

	chunks := testChunks()
	if err := store.Build(ctx, "alice", chunks); err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := store.Retrieve(ctx, "alice", "The sky is blue.", len(chunks))
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if len(results) != len(chunks) {
		t.Fatalf("expected %d results, got %d", len(chunks), len(results))
	}
	if results[0].Chunk.Text != "The sky is blue." {
		t.Fatalf("expected exact-match chunk first, got %q", results[0].Chunk.Text)
	}

	seen := make(map[string]bool)
	for _, result := range results {
		seen[result.Chunk.Text] = true
	}
	for _, chunk := range chunks {
		if !seen[chunk.Text] {
			t.Fatalf("chunk %q missing from results", chunk.Text)
		}
	}
}

func TestLocalStoreRetrieveClampsK(t *testing.T) {
	store := newLocalStore(t, t.TempDir())
	ctx := context.Background()

	if err := store.Build(ctx, "alice", testChunks()[:1]); err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := store.Retrieve(ctx, "alice", "What color is sky?", 4)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestLocalStoreRetrieveWithoutIndex(t *testing.T) {
	store := newLocalStore(t, t.TempDir())

	_, err := store.Retrieve(context.Background(), "ghost", "anything", 4)
	if !errors.Is(err, vectorstore.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLocalStoreBuildAppends(t *testing.T) {
	store := newLocalStore(t, t.TempDir())
	ctx := context.Background()

	chunks := testChunks()
	if err := store.Build(ctx, "alice", chunks[:2]); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := store.Build(ctx, "alice", []chunker.Chunk{{Text: chunks[2].Text, Index: 0}}); err != nil {
		t.Fatalf("second build: %v", err)
	}

	results, err := store.Retrieve(ctx, "alice", "Grass is green.", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected earlier chunks to survive a second build, got %d results", len(results))
	}
}

func TestLocalStoreClear(t *testing.T) {
	store := newLocalStore(t, t.TempDir())
	ctx := context.Background()

	found, err := store.Clear(ctx, "alice")
	if err != nil {
		t.Fatalf("clear absent index: %v", err)
	}
	if found {
		t.Fatal("expected found=false for absent index")
	}

	if err := store.Build(ctx, "alice", testChunks()); err != nil {
		t.Fatalf("build: %v", err)
	}

	found, err = store.Clear(ctx, "alice")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !found {
		t.Fatal("expected found=true after build")
	}

	if _, err := store.Retrieve(ctx, "alice", "The sky is blue.", 1); !errors.Is(err, vectorstore.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound after clear, got %v", err)
	}
}

func TestLocalStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := newLocalStore(t, dir)
	if err := store.Build(ctx, "alice", testChunks()); err != nil {
		t.Fatalf("build: %v", err)
	}

	reopened := newLocalStore(t, dir)
	results, err := reopened.Retrieve(ctx, "alice", "Roses are red.", 1)
	if err != nil {
		t.Fatalf("retrieve after reopen: %v", err)
	}
	if results[0].Chunk.Text != "Roses are red." {
		t.Fatalf("unexpected top result after reopen: %q", results[0].Chunk.Text)
	}
}

func TestLocalStoreIndexesAreIsolatedPerUser(t *testing.T) {
	store := newLocalStore(t, t.TempDir())
	ctx := context.Background()

	if err := store.Build(ctx, "alice", testChunks()); err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := store.Retrieve(ctx, "bob", "The sky is blue.", 1); !errors.Is(err, vectorstore.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound for other user, got %v", err)
	}
}
