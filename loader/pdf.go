package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

type pdfLoader struct{}

func (pdfLoader) Load(_ context.Context, sources []string) ([]Document, error) {
	docs := make([]Document, 0, len(sources))
	for _, path := range sources {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pdf file: %w", err)
		}

		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open pdf: %w", err)
		}

		plain, err := reader.GetPlainText()
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}

		buf := &bytes.Buffer{}
		if _, err := io.Copy(buf, plain); err != nil {
			return nil, fmt.Errorf("read pdf text: %w", err)
		}

		content := normalizePlainText(buf.String())
		if content == "" {
			continue
		}

		docs = append(docs, Document{
			Content:  content,
			Metadata: map[string]string{"source": path},
		})
	}
	return docs, nil
}

func normalizePlainText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, "\n")
}
