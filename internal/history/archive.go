// Package history persists a local archive of chat messages so past
// conversations stay searchable offline. Backed by SQLite.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/duochat/duochat/internal/types"
)

// Entry is one archived message row.
type Entry struct {
	MessageID      int64
	ConversationID int64
	Author         string
	Text           string
	IsSelf         bool
	CreatedAt      time.Time
	ArchivedAt     time.Time
}

type Manager struct {
	db *sql.DB
}

func NewManager(dbPath string) (*Manager, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	m := &Manager{db: db}
	if err := m.initSchema(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id INTEGER NOT NULL,
		conversation_id INTEGER NOT NULL,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		is_self INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		archived_at DATETIME NOT NULL,
		PRIMARY KEY (conversation_id, message_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author);
	`

	_, err := m.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	return nil
}

// Record upserts one message keyed by (conversation, message) id, so
// re-delivery through polling or reconnects never duplicates a row.
// Tombstoned messages overwrite the original text with the deletion label.
func (m *Manager) Record(msg *types.Message) error {
	if msg == nil || msg.ID == 0 || msg.ConversationID == 0 {
		return nil
	}

	query := `
		INSERT OR REPLACE INTO messages (
			message_id, conversation_id, author, text, is_self, created_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	createdStr := msg.CreatedAt.Local().Format("2006-01-02 15:04:05")
	archivedStr := time.Now().Local().Format("2006-01-02 15:04:05")

	_, err := m.db.Exec(query,
		msg.ID,
		msg.ConversationID,
		msg.AuthorName(),
		msg.Body(),
		msg.IsSelf,
		createdStr,
		archivedStr,
	)

	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}

	return nil
}

// Recent returns the newest archived messages for one conversation,
// oldest first so they render in reading order.
func (m *Manager) Recent(conversationID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT message_id, conversation_id, author, text, is_self, created_at, archived_at
		FROM (
			SELECT message_id, conversation_id, author, text, is_self, created_at, archived_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, message_id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, message_id ASC
	`

	rows, err := m.db.Query(query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

// Search matches archived messages by substring across every conversation,
// newest first.
func (m *Manager) Search(term string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT message_id, conversation_id, author, text, is_self, created_at, archived_at
		FROM messages
		WHERE text LIKE ? OR author LIKE ?
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?
	`

	pattern := "%" + term + "%"

	rows, err := m.db.Query(query, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search archive: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

func (m *Manager) scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry

	for rows.Next() {
		var e Entry
		var createdStr string
		var archivedStr string

		err := rows.Scan(
			&e.MessageID,
			&e.ConversationID,
			&e.Author,
			&e.Text,
			&e.IsSelf,
			&createdStr,
			&archivedStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archive entry: %w", err)
		}

		e.CreatedAt = parseArchiveTime(createdStr)
		e.ArchivedAt = parseArchiveTime(archivedStr)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func parseArchiveTime(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func (m *Manager) GetCount() (int, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get archive count: %w", err)
	}
	return count, nil
}

func (m *Manager) Clear() error {
	_, err := m.db.Exec("DELETE FROM messages")
	if err != nil {
		return fmt.Errorf("failed to clear archive: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
