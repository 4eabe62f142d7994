package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/arogya-labs/medassist/api"
	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/config"
	"github.com/arogya-labs/medassist/database"
	"github.com/arogya-labs/medassist/embeddings"
	"github.com/arogya-labs/medassist/llm"
	"github.com/arogya-labs/medassist/loader"
	"github.com/arogya-labs/medassist/medical"
	"github.com/arogya-labs/medassist/memory"
	"github.com/arogya-labs/medassist/rag"
	"github.com/arogya-labs/medassist/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("medassist: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	sqlDB, err := database.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.EnsureMemorySchema(ctx, sqlDB); err != nil {
		return err
	}

	var pool *pgxpool.Pool
	if cfg.VectorBackend == config.VectorBackendPostgres {
		pool, err = database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return err
	}

	vectors, err := vectorstore.New(cfg, pool, embedder, logger)
	if err != nil {
		return err
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, logger)
	if err != nil {
		return err
	}

	mem := memory.NewStore(sqlDB, logger)
	loaders := loader.NewRegistry(logger)
	ragSvc := rag.NewService(loaders, splitter, vectors, mem, llmClient, cfg.RetrievalK, logger)

	engine, err := medical.NewEngine(cfg.ModelPath, cfg.TablesDir, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.New(cfg, ragSvc, mem, vectors, engine, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Println("shutting down")
		return server.Shutdown(shutdownCtx)
	case serveErr := <-errCh:
		return serveErr
	}
}
