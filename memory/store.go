package memory

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// Store persists both conversation logs in sqlite, keyed by user identifier.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

func NewStore(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger}
}

// LoadChat returns the user's session history oldest-first, or an empty slice
// when none exists.
func (s *Store) LoadChat(ctx context.Context, userID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM chat_messages WHERE user_id = ? ORDER BY position", userID)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	messages := make([]ChatMessage, 0)
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return messages, nil
}

// SaveChat replaces the user's entire session history with the given
// sequence. The delete and insert happen in a single transaction, so readers
// never observe an empty history mid-save. Saving an empty sequence is a
// no-op that leaves the stored history untouched.
func (s *Store) SaveChat(ctx context.Context, userID string, messages []ChatMessage) error {
	if len(messages) == 0 {
		s.logger.Printf("no messages to save for user %s", userID)
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}

	for i, msg := range messages {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chat_messages (user_id, position, role, content) VALUES (?, ?, ?, ?)",
			userID, i, msg.Role, msg.Content); err != nil {
			return fmt.Errorf("insert chat message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat history: %w", err)
	}

	s.logger.Printf("saved %d message(s) for user %s", len(messages), userID)
	return nil
}

// ClearChat empties the user's session history and reports how many messages
// were removed.
func (s *Store) ClearChat(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	return res.RowsAffected()
}

// AppendEntry adds one completed exchange to the user's long-term log.
func (s *Store) AppendEntry(ctx context.Context, userID string, entry ConversationEntry) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_entries (id, user_id, question, answer, timestamp, source, source_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), userID, entry.Question, entry.Answer, entry.Timestamp,
		entry.Source, entry.SourceType, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("append conversation entry: %w", err)
	}

	s.logger.Printf("conversation entry recorded for user %s", userID)
	return nil
}

// LoadEntries returns the user's long-term log oldest-first.
func (s *Store) LoadEntries(ctx context.Context, userID string) ([]ConversationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, timestamp, source, source_type
		FROM conversation_entries WHERE user_id = ? ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversation entries: %w", err)
	}
	defer rows.Close()

	entries := make([]ConversationEntry, 0)
	for rows.Next() {
		var entry ConversationEntry
		if err := rows.Scan(&entry.Question, &entry.Answer, &entry.Timestamp, &entry.Source, &entry.SourceType); err != nil {
			return nil, fmt.Errorf("scan conversation entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}

// ClearEntries empties the user's long-term log and reports how many entries
// existed, for user-facing confirmation.
func (s *Store) ClearEntries(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversation_entries WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("clear conversation entries: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.Printf("cleared %d conversation entr(ies) for user %s", count, userID)
	return count, nil
}

// ExportCSV writes the user's full long-term log to a CSV file at the given
// path. It fails with ErrEmptyHistory when there is nothing to export.
func (s *Store) ExportCSV(ctx context.Context, userID, path string) error {
	entries, err := s.LoadEntries(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrEmptyHistory)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	if err := writeEntriesCSV(file, entries); err != nil {
		return err
	}

	s.logger.Printf("exported %d entr(ies) for user %s to %s", len(entries), userID, path)
	return nil
}

func writeEntriesCSV(file *os.File, entries []ConversationEntry) error {
	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Question", "Answer", "Timestamp", "Source", "Source Type"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range entries {
		record := []string{entry.Question, entry.Answer, entry.Timestamp, entry.Source, entry.SourceType}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
