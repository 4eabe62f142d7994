package config_test

import (
	"testing"

	"github.com/arogya-labs/medassist/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MEDASSIST_ADDR", "VECTOR_BACKEND", "CHUNK_SIZE", "RETRIEVAL_K"} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.VectorBackend != config.VectorBackendLocal {
		t.Fatalf("unexpected vector backend: %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 10000 || cfg.ChunkOverlap != 1000 {
		t.Fatalf("unexpected chunking defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 4 {
		t.Fatalf("unexpected retrieval k: %d", cfg.RetrievalK)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MEDASSIST_ADDR", ":9999")
	t.Setenv("VECTOR_BACKEND", config.VectorBackendPostgres)
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("EMBEDDINGS_PROVIDER", config.ProviderOllama)

	cfg := config.Load()

	if cfg.ListenAddr != ":9999" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.VectorBackend != config.VectorBackendPostgres {
		t.Fatalf("unexpected vector backend: %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 500 {
		t.Fatalf("unexpected chunk size: %d", cfg.ChunkSize)
	}
	if cfg.Embeddings.Provider != config.ProviderOllama {
		t.Fatalf("unexpected embeddings provider: %q", cfg.Embeddings.Provider)
	}
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")

	if cfg := config.Load(); cfg.ChunkSize != 10000 {
		t.Fatalf("expected fallback chunk size, got %d", cfg.ChunkSize)
	}
}
