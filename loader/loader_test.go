package loader_test

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arogya-labs/medassist/loader"
)

func newRegistry() *loader.Registry {
	return loader.NewRegistry(log.New(io.Discard, "", 0))
}

func TestLoadRawSource(t *testing.T) {
	docs, err := newRegistry().Load(context.Background(), loader.TypeRaw, []string{"The sky is blue."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Content != "The sky is blue." {
		t.Fatalf("unexpected content: %q", docs[0].Content)
	}
	if docs[0].Metadata["source"] != "raw_input" {
		t.Fatalf("unexpected source metadata: %q", docs[0].Metadata["source"])
	}
}

func TestLoadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("hydration matters"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, err := newRegistry().Load(context.Background(), loader.TypeText, []string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(docs) != 1 || docs[0].Content != "hydration matters" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestLoadEmptyRawReportsNoContent(t *testing.T) {
	_, err := newRegistry().Load(context.Background(), loader.TypeRaw, []string{"   "})
	if !errors.Is(err, loader.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestLoadUnknownSourceType(t *testing.T) {
	if _, err := newRegistry().Load(context.Background(), "docx", []string{"x"}); err == nil {
		t.Fatal("expected error for unsupported source type")
	}
}

func TestStripHTML(t *testing.T) {
	raw := `<html><head><style>body { color: red; }</style>
<script>alert("hi")</script></head>
<body><h1>Dengue fever</h1><p>Rest &amp; fluids are essential.</p></body></html>`

	text := loader.StripHTML(raw)

	if strings.Contains(text, "<") || strings.Contains(text, "alert") || strings.Contains(text, "color") {
		t.Fatalf("markup leaked into text: %q", text)
	}
	if !strings.Contains(text, "Dengue fever") {
		t.Fatalf("expected heading text, got %q", text)
	}
	if !strings.Contains(text, "Rest & fluids are essential.") {
		t.Fatalf("expected decoded entity, got %q", text)
	}
}
