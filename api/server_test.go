package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arogya-labs/medassist/api"
	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/config"
	"github.com/arogya-labs/medassist/database"
	"github.com/arogya-labs/medassist/llm"
	"github.com/arogya-labs/medassist/loader"
	"github.com/arogya-labs/medassist/medical"
	"github.com/arogya-labs/medassist/memory"
	"github.com/arogya-labs/medassist/rag"
	"github.com/arogya-labs/medassist/vectorstore"
)

type memoryVectorStore struct {
	chunks map[string][]chunker.Chunk
}

func (s *memoryVectorStore) Build(_ context.Context, userID string, chunks []chunker.Chunk) error {
	s.chunks[userID] = append(s.chunks[userID], chunks...)
	return nil
}

func (s *memoryVectorStore) Retrieve(_ context.Context, userID, _ string, k int) ([]vectorstore.Result, error) {
	stored, ok := s.chunks[userID]
	if !ok {
		return nil, vectorstore.ErrIndexNotFound
	}
	if k > len(stored) {
		k = len(stored)
	}
	results := make([]vectorstore.Result, 0, k)
	for _, chunk := range stored[:k] {
		results = append(results, vectorstore.Result{Chunk: chunk, Score: 1})
	}
	return results, nil
}

func (s *memoryVectorStore) Clear(_ context.Context, userID string) (bool, error) {
	_, ok := s.chunks[userID]
	delete(s.chunks, userID)
	return ok, nil
}

type cannedLLM struct{ answer string }

func (c cannedLLM) Generate(context.Context, []llm.Message) (string, error) {
	return c.answer, nil
}

func writeClassifier(t *testing.T) string {
	t.Helper()
	weights := make([][]float64, 41)
	bias := make([]float64, 41)
	for i := range weights {
		weights[i] = make([]float64, 132)
		bias[i] = -1
	}
	weights[15][0] = 2 // itching drives the fungal infection row
	weights[15][1] = 2 // skin_rash

	path := filepath.Join(t.TempDir(), "classifier.gob")
	if err := medical.SaveClassifier(path, weights, bias); err != nil {
		t.Fatalf("save classifier: %v", err)
	}
	return path
}

func writeLookupTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tables := map[string]string{
		"description.csv":    "Disease,Description\nFungal infection,A common skin condition.\n",
		"precautions_df.csv": "Disease,Precaution_1,Precaution_2,Precaution_3,Precaution_4\nFungal infection,bath twice,use antifungal soap,,\n",
		"medications.csv":    "Disease,Medication\nFungal infection,Antifungal Cream\n",
		"diets.csv":          "Disease,Diet\nFungal infection,Probiotics\n",
		"workout_df.csv":     "disease,workout\nFungal infection,Avoid sugary foods\n",
	}
	for name, content := range tables {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestServer(t *testing.T) (*api.Server, *memoryVectorStore) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.EnsureMemorySchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	mem := memory.NewStore(db, logger)

	vectors := &memoryVectorStore{chunks: make(map[string][]chunker.Chunk)}
	splitter, err := chunker.NewSplitter(10000, 1000, logger)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	ragSvc := rag.NewService(loader.NewRegistry(logger), splitter, vectors, mem, cannedLLM{answer: "It is blue."}, 4, logger)

	engine, err := medical.NewEngine(writeClassifier(t), writeLookupTables(t), logger)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	cfg := config.Load()
	cfg.DataDir = t.TempDir()
	return api.New(cfg, ragSvc, mem, vectors, engine, logger), vectors
}

func doJSON(t *testing.T, server http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProcessContent(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"Alice","question":"What color is the sky?","source":"The sky is blue.","source_type":"raw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer     string `json:"answer"`
		SourceType string `json:"source_type"`
	}
	decodeBody(t, rec, &resp)
	if resp.Answer != "It is blue." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.SourceType != "raw" {
		t.Fatalf("unexpected source type: %q", resp.SourceType)
	}

	// The recorded exchange is visible through the history endpoint, under
	// the lowercased username.
	rec = doJSON(t, server, http.MethodGet, "/api/conversation-history/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []map[string]string
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0]["question"] != "What color is the sky?" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestProcessContentWithoutIndex(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"alice","question":"What color is the sky?"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing index, got %d", rec.Code)
	}
}

func TestProcessContentValidation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"bad user!","question":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid username, got %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"alice"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing question, got %d", rec.Code)
	}
}

func TestSaveHistoryEmpty(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/save-history/alice", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty history, got %d", rec.Code)
	}
}

func TestSaveHistoryWritesCSV(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"alice","question":"What color is the sky?","source":"The sky is blue.","source_type":"raw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	rec = doJSON(t, server, http.MethodPost, "/api/save-history/alice",
		`{"filename":"`+path+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "Question,Answer,Timestamp,Source,Source Type") {
		t.Fatalf("missing CSV header: %q", string(data))
	}
}

func TestClearAll(t *testing.T) {
	server, vectors := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/process-content",
		`{"username":"alice","question":"What color is the sky?","source":"The sky is blue.","source_type":"raw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, server, http.MethodDelete, "/api/clear-history/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, ok := vectors.chunks["alice"]; ok {
		t.Fatal("vector index was not cleared")
	}

	rec = doJSON(t, server, http.MethodGet, "/api/conversation-history/alice", "")
	var entries []map[string]string
	decodeBody(t, rec, &entries)
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %+v", entries)
	}
}

func TestPredictMedicineFromSymptoms(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/predict-medicine",
		`{"symptoms":["itching","skin_rash"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PredictedDisease string   `json:"predicted_disease"`
		Description      string   `json:"description"`
		Precautions      []string `json:"precautions"`
	}
	decodeBody(t, rec, &resp)
	if resp.PredictedDisease != "Fungal infection" {
		t.Fatalf("unexpected disease: %q", resp.PredictedDisease)
	}
	if resp.Description != "A common skin condition." {
		t.Fatalf("unexpected description: %q", resp.Description)
	}
}

func TestPredictMedicineFromText(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/predict-medicine",
		`{"text":"I have terrible itching and a skin rash on my arm"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Symptoms []string `json:"symptoms"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Symptoms) == 0 {
		t.Fatal("expected extracted symptoms in response")
	}
}

func TestPredictMedicineUnrecognized(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/predict-medicine",
		`{"symptoms":["not_a_real_symptom"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, server, http.MethodPost, "/api/predict-medicine", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty request, got %d", rec.Code)
	}
}

func TestExtractSymptoms(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/extract-symptoms",
		`{"text":"I have a headache and chest pain"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Symptoms []string `json:"symptoms"`
	}
	decodeBody(t, rec, &resp)

	found := make(map[string]bool)
	for _, symptom := range resp.Symptoms {
		found[symptom] = true
	}
	if !found["headache"] || !found["chest_pain"] {
		t.Fatalf("expected headache and chest_pain, got %v", resp.Symptoms)
	}

	rec = doJSON(t, server, http.MethodPost, "/api/extract-symptoms", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", rec.Code)
	}
}
