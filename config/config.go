package config

import (
	"os"
	"strconv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	VectorBackendLocal    = "local"
	VectorBackendPostgres = "postgres"
)

type EmbeddingSettings struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMSettings struct {
	Provider string
	Model    string
}

// Config carries every tunable the service needs. It is constructed once in
// main and passed down explicitly; no package keeps global configuration.
type Config struct {
	ListenAddr string
	DataDir    string

	VectorBackend string
	VectorPath    string
	PostgresDSN   string

	SQLitePath string

	ModelPath string
	TablesDir string

	Embeddings EmbeddingSettings
	LLM        LLMSettings

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	RetrievalK   int
	ChunkSize    int
	ChunkOverlap int
}

func Load() Config {
	return Config{
		ListenAddr: getEnv("MEDASSIST_ADDR", ":8080"),
		DataDir:    getEnv("MEDASSIST_DATA_DIR", "data"),

		VectorBackend: getEnv("VECTOR_BACKEND", VectorBackendLocal),
		VectorPath:    getEnv("VECTOR_PATH", "vectordb"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/medassist?sslmode=disable"),

		SQLitePath: getEnv("SQLITE_PATH", "medassist.db"),

		ModelPath: getEnv("SYMPTOM_MODEL_PATH", "models/symptom_classifier.gob"),
		TablesDir: getEnv("DISEASE_TABLES_DIR", "trainingdata"),

		Embeddings: EmbeddingSettings{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		LLM: LLMSettings{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		RetrievalK:   getEnvInt("RETRIEVAL_K", 4),
		ChunkSize:    getEnvInt("CHUNK_SIZE", 10000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 1000),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
