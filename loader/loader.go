package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
)

// Source tags understood by the registry. Adding a new source type means
// implementing Loader and registering it under a new tag; callers never
// branch on the tag themselves.
const (
	TypeRaw  = "raw"
	TypeText = "text"
	TypePDF  = "pdf"
	TypeWeb  = "web"
)

// ErrNoContent reports that a loader ran successfully but produced nothing.
var ErrNoContent = errors.New("no content loaded from source")

// Document is an immutable unit of loaded source material.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Loader turns a list of source references (paths, URLs or raw text,
// depending on the implementation) into documents.
type Loader interface {
	Load(ctx context.Context, sources []string) ([]Document, error)
}

// Registry resolves a source-type tag to its loader implementation.
type Registry struct {
	loaders map[string]Loader
	logger  *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}

	return &Registry{
		loaders: map[string]Loader{
			TypeRaw:  rawLoader{},
			TypeText: textLoader{},
			TypePDF:  pdfLoader{},
			TypeWeb:  newWebLoader(),
		},
		logger: logger,
	}
}

// Register adds or replaces the loader for a tag.
func (r *Registry) Register(sourceType string, l Loader) {
	r.loaders[sourceType] = l
}

func (r *Registry) Load(ctx context.Context, sourceType string, sources []string) ([]Document, error) {
	l, ok := r.loaders[strings.ToLower(strings.TrimSpace(sourceType))]
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %q", sourceType)
	}

	docs, err := l.Load(ctx, sources)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoContent
	}

	r.logger.Printf("loaded %d document(s) from %s source(s)", len(docs), sourceType)
	return docs, nil
}

type rawLoader struct{}

func (rawLoader) Load(_ context.Context, sources []string) ([]Document, error) {
	docs := make([]Document, 0, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		docs = append(docs, Document{
			Content:  src,
			Metadata: map[string]string{"source": "raw_input"},
		})
	}
	return docs, nil
}

type textLoader struct{}

func (textLoader) Load(_ context.Context, sources []string) ([]Document, error) {
	docs := make([]Document, 0, len(sources))
	for _, path := range sources {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read text file: %w", err)
		}
		docs = append(docs, Document{
			Content:  string(data),
			Metadata: map[string]string{"source": path},
		})
	}
	return docs, nil
}
