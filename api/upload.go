package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arogya-labs/medassist/loader"
	"github.com/arogya-labs/medassist/rag"
)

const maxUploadBytes = 32 << 20

// handleProcessFileContent accepts a multipart upload, stores the file under
// the user's data directory and runs the question through the RAG pipeline
// with the saved file as the source.
func (s *Server) handleProcessFileContent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parse multipart form: %w", err))
		return
	}

	username, err := validUsername(r.FormValue("username"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	sourceType := strings.ToLower(strings.TrimSpace(r.FormValue("source_type")))
	if sourceType != loader.TypePDF && sourceType != loader.TypeText {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("source type must be %s or %s", loader.TypePDF, loader.TypeText))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("file is required"))
		return
	}
	defer file.Close()

	path, err := s.saveUpload(username, header.Filename, file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Printf("saved upload for user %s to %s", username, path)

	exchange, err := s.rag.Handle(r.Context(), rag.Request{
		UserID:     username,
		Question:   question,
		Sources:    []string{path},
		SourceType: sourceType,
	})
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toExchangeResponse(exchange))
}

func (s *Server) saveUpload(username, filename string, file io.Reader) (string, error) {
	userDir := filepath.Join(s.cfg.DataDir, username)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("create user data directory: %w", err)
	}

	safeName := sanitizeFilename(filename)
	path := filepath.Join(userDir, fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), safeName))

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return path, nil
}

// sanitizeFilename keeps only the base name and replaces characters that are
// unsafe in a path segment.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "upload"
	}
	return sb.String()
}
