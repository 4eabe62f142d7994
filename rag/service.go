// Package rag composes loading, chunking, retrieval, reformulation and
// generation into a single grounded question/answer cycle per request.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/arogya-labs/medassist/chunker"
	"github.com/arogya-labs/medassist/llm"
	"github.com/arogya-labs/medassist/loader"
	"github.com/arogya-labs/medassist/memory"
	"github.com/arogya-labs/medassist/vectorstore"
)

const defaultRetrievalK = 4

// Step names the orchestrator stage that produced a failure.
type Step string

const (
	StepIngest        Step = "ingest"
	StepRetrieve      Step = "retrieve"
	StepContextualize Step = "contextualize"
	StepGenerate      Step = "generate"
	StepRecord        Step = "record"
)

// StepError identifies which stage of the request cycle failed. Side effects
// of earlier stages are not rolled back.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Memory is the slice of conversation storage the orchestrator needs.
type Memory interface {
	LoadChat(ctx context.Context, userID string) ([]memory.ChatMessage, error)
	SaveChat(ctx context.Context, userID string, messages []memory.ChatMessage) error
	AppendEntry(ctx context.Context, userID string, entry memory.ConversationEntry) error
}

// Request is one question from one user, with an optional source to ingest
// before answering.
type Request struct {
	UserID     string
	Question   string
	Sources    []string
	SourceType string
}

// Exchange is the completed cycle returned to the caller and recorded in the
// long-term log.
type Exchange struct {
	Question   string
	Answer     string
	Source     string
	SourceType string
	Timestamp  string
	Context    []vectorstore.Result
}

type Service struct {
	loaders    *loader.Registry
	splitter   *chunker.Splitter
	vectors    vectorstore.Store
	memory     Memory
	llm        llm.Client
	retrievalK int
	logger     *log.Logger
}

func NewService(loaders *loader.Registry, splitter *chunker.Splitter, vectors vectorstore.Store, mem Memory, llmClient llm.Client, retrievalK int, logger *log.Logger) *Service {
	if retrievalK <= 0 {
		retrievalK = defaultRetrievalK
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		loaders:    loaders,
		splitter:   splitter,
		vectors:    vectors,
		memory:     mem,
		llm:        llmClient,
		retrievalK: retrievalK,
		logger:     logger,
	}
}

// Handle runs one request through ingest (optional), retrieve, contextualize,
// generate and record. It stops at the first failing step and reports it via
// StepError; work already persisted by earlier steps stays persisted.
func (s *Service) Handle(ctx context.Context, req Request) (Exchange, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Exchange{}, fmt.Errorf("question cannot be empty")
	}
	userID := strings.ToLower(strings.TrimSpace(req.UserID))
	if userID == "" {
		return Exchange{}, fmt.Errorf("user id cannot be empty")
	}

	hasSource := len(req.Sources) > 0

	if hasSource {
		if err := s.ingest(ctx, userID, req); err != nil {
			return Exchange{}, &StepError{Step: StepIngest, Err: err}
		}
	}

	retrieved, err := s.vectors.Retrieve(ctx, userID, question, s.retrievalK)
	if err != nil {
		return Exchange{}, &StepError{Step: StepRetrieve, Err: err}
	}

	history, err := s.memory.LoadChat(ctx, userID)
	if err != nil {
		return Exchange{}, &StepError{Step: StepContextualize, Err: err}
	}

	standalone, err := s.contextualize(ctx, history, question)
	if err != nil {
		return Exchange{}, &StepError{Step: StepContextualize, Err: err}
	}

	answer, err := s.generate(ctx, history, standalone, retrieved)
	if err != nil {
		return Exchange{}, &StepError{Step: StepGenerate, Err: err}
	}

	exchange := Exchange{
		Question:   question,
		Answer:     answer,
		Source:     sourceLabel(req.Sources),
		SourceType: sourceTypeLabel(req.SourceType, hasSource),
		Timestamp:  time.Now().Format("2006-01-02 15:04:05"),
		Context:    retrieved,
	}

	if err := s.record(ctx, userID, history, exchange); err != nil {
		return Exchange{}, &StepError{Step: StepRecord, Err: err}
	}

	s.logger.Printf("answered question for user %s (context chunks: %d)", userID, len(retrieved))
	return exchange, nil
}

func (s *Service) ingest(ctx context.Context, userID string, req Request) error {
	docs, err := s.loaders.Load(ctx, req.SourceType, req.Sources)
	if err != nil {
		return err
	}

	chunks, err := s.splitter.Split(docs)
	if err != nil {
		return err
	}

	return s.vectors.Build(ctx, userID, chunks)
}

// contextualize rewrites the question so it stands alone without the chat
// history. With no history the original question passes through untouched.
func (s *Service) contextualize(ctx context.Context, history []memory.ChatMessage, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: contextualizePrompt})
	messages = append(messages, toLLMMessages(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	reformulated, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}

	reformulated = strings.TrimSpace(reformulated)
	if reformulated == "" {
		return question, nil
	}
	return reformulated, nil
}

func (s *Service) generate(ctx context.Context, history []memory.ChatMessage, question string, retrieved []vectorstore.Result) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: answerPrompt(retrieved)})
	messages = append(messages, toLLMMessages(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(answer), nil
}

func (s *Service) record(ctx context.Context, userID string, history []memory.ChatMessage, exchange Exchange) error {
	updated := make([]memory.ChatMessage, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		memory.ChatMessage{Role: memory.RoleHuman, Content: exchange.Question},
		memory.ChatMessage{Role: memory.RoleAssistant, Content: exchange.Answer},
	)

	if err := s.memory.SaveChat(ctx, userID, updated); err != nil {
		return err
	}

	return s.memory.AppendEntry(ctx, userID, memory.ConversationEntry{
		Question:   exchange.Question,
		Answer:     exchange.Answer,
		Timestamp:  exchange.Timestamp,
		Source:     exchange.Source,
		SourceType: exchange.SourceType,
	})
}

func toLLMMessages(history []memory.ChatMessage) []llm.Message {
	converted := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		role := llm.RoleUser
		if msg.Role == memory.RoleAssistant {
			role = llm.RoleAssistant
		}
		converted = append(converted, llm.Message{Role: role, Content: msg.Content})
	}
	return converted
}

func sourceLabel(sources []string) string {
	if len(sources) == 0 {
		return "existing_vector_store"
	}
	return strings.Join(sources, ", ")
}

func sourceTypeLabel(sourceType string, hasSource bool) string {
	if hasSource && strings.TrimSpace(sourceType) != "" {
		return sourceType
	}
	return "unknown"
}
