// Package api exposes the HTTP surface: thin request validation and dispatch
// into the RAG orchestrator, conversation memory and symptom engine.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/config"
	"github.com/arogya-labs/medassist/embeddings"
	"github.com/arogya-labs/medassist/llm"
	"github.com/arogya-labs/medassist/loader"
	"github.com/arogya-labs/medassist/medical"
	"github.com/arogya-labs/medassist/memory"
	"github.com/arogya-labs/medassist/rag"
	"github.com/arogya-labs/medassist/vectorstore"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Server wires the HTTP handlers to the core services.
type Server struct {
	cfg     config.Config
	rag     *rag.Service
	memory  *memory.Store
	vectors vectorstore.Store
	engine  *medical.Engine
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type processContentRequest struct {
	Username   string   `json:"username"`
	Question   string   `json:"question"`
	Source     string   `json:"source"`
	Sources    []string `json:"sources"`
	SourceType string   `json:"source_type"`
}

type exchangeResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	SourceType string `json:"source_type"`
	Timestamp  string `json:"timestamp"`
}

type historyEntryResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	SourceType string `json:"source_type"`
}

type exportRequest struct {
	Filename string `json:"filename"`
}

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
	Text     string   `json:"text"`
}

type predictResponse struct {
	PredictedDisease string   `json:"predicted_disease"`
	Description      string   `json:"description"`
	Precautions      []string `json:"precautions"`
	Medications      []string `json:"medications"`
	Diet             []string `json:"diet"`
	Workout          []string `json:"workout"`
	Symptoms         []string `json:"symptoms,omitempty"`
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Symptoms []string `json:"symptoms"`
}

func New(cfg config.Config, ragSvc *rag.Service, mem *memory.Store, vectors vectorstore.Store, engine *medical.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:     cfg,
		rag:     ragSvc,
		memory:  mem,
		vectors: vectors,
		engine:  engine,
		logger:  logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("POST /api/process-content", s.handleProcessContent)
	mux.HandleFunc("POST /api/process-file-content", s.handleProcessFileContent)
	mux.HandleFunc("GET /api/conversation-history/{username}", s.handleConversationHistory)
	mux.HandleFunc("POST /api/save-history/{username}", s.handleSaveHistory)
	mux.HandleFunc("DELETE /api/clear-history-text/{username}", s.handleClearConversation)
	mux.HandleFunc("DELETE /api/clear-history/{username}", s.handleClearAll)
	mux.HandleFunc("POST /api/predict-medicine", s.handlePredict)
	mux.HandleFunc("POST /api/extract-symptoms", s.handleExtract)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleProcessContent(w http.ResponseWriter, r *http.Request) {
	var req processContentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	username, err := validUsername(req.Username)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	sources := req.Sources
	if len(sources) == 0 && strings.TrimSpace(req.Source) != "" {
		sources = []string{req.Source}
	}

	exchange, err := s.rag.Handle(r.Context(), rag.Request{
		UserID:     username,
		Question:   req.Question,
		Sources:    sources,
		SourceType: req.SourceType,
	})
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toExchangeResponse(exchange))
}

func (s *Server) handleConversationHistory(w http.ResponseWriter, r *http.Request) {
	username, err := validUsername(r.PathValue("username"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := s.memory.LoadEntries(r.Context(), username)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	payload := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, historyEntryResponse{
			Question:   entry.Question,
			Answer:     entry.Answer,
			Timestamp:  entry.Timestamp,
			Source:     entry.Source,
			SourceType: entry.SourceType,
		})
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	username, err := validUsername(r.PathValue("username"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req exportRequest
	if decodeErr := decodeJSON(r, &req); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", decodeErr))
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = fmt.Sprintf("conversation_history_%s.csv", username)
	}

	if err := s.memory.ExportCSV(r.Context(), username, filename); err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Conversation history saved to %s for user %s", filename, username),
	})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	username, err := validUsername(r.PathValue("username"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	count, err := s.memory.ClearEntries(r.Context(), username)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Conversation history reset for user %s (%d entries removed)", username, count),
	})
}

// handleClearAll removes everything stored for a user: chat history, the
// long-term log and the vector index.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	username, err := validUsername(r.PathValue("username"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	messages, err := s.memory.ClearChat(r.Context(), username)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	if _, err := s.memory.ClearEntries(r.Context(), username); err != nil {
		s.writeCoreError(w, err)
		return
	}

	found, err := s.vectors.Clear(r.Context(), username)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	indexNote := "vector store cleared"
	if !found {
		indexNote = "no vector store found"
	}

	s.writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Chat history, conversation history cleared for user %s (had %d messages); %s", username, messages, indexNote),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	symptoms := req.Symptoms
	if len(symptoms) == 0 && strings.TrimSpace(req.Text) != "" {
		symptoms = s.engine.ExtractSymptoms(req.Text)
	}
	if len(symptoms) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("provide a symptoms list or a text description"))
		return
	}

	disease, err := s.engine.Predict(symptoms)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	record := s.engine.Lookup(disease)
	s.writeJSON(w, http.StatusOK, predictResponse{
		PredictedDisease: record.Disease,
		Description:      record.Description,
		Precautions:      record.Precautions,
		Medications:      record.Medications,
		Diet:             record.Diet,
		Workout:          record.Workout,
		Symptoms:         symptoms,
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("text is required"))
		return
	}

	s.writeJSON(w, http.StatusOK, extractResponse{Symptoms: s.engine.ExtractSymptoms(req.Text)})
}

// writeCoreError maps the core error taxonomy onto HTTP statuses.
func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	var providerEmbed *embeddings.ProviderError
	var providerGen *llm.ProviderError

	switch {
	case errors.Is(err, loader.ErrNoContent), errors.Is(err, chunker.ErrEmptyInput):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, vectorstore.ErrIndexNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, memory.ErrEmptyHistory):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, medical.ErrNoSymptomsRecognized):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, medical.ErrModelUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &providerEmbed), errors.As(err, &providerGen):
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("request failed (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func validUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if username == "" || !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("valid username is required")
	}
	return username, nil
}

func toExchangeResponse(exchange rag.Exchange) exchangeResponse {
	return exchangeResponse{
		Question:   exchange.Question,
		Answer:     exchange.Answer,
		Source:     exchange.Source,
		SourceType: exchange.SourceType,
		Timestamp:  exchange.Timestamp,
	}
}
