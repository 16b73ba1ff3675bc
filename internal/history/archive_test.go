package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/duochat/duochat/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func archiveMsg(id, convID int64, author, text string, at time.Time) *types.Message {
	return &types.Message{
		ID:             id,
		ConversationID: convID,
		Author:         &types.User{Name: author},
		Text:           text,
		DisplayText:    text,
		CreatedAt:      at,
	}
}

func TestArchive_RecordAndRecent(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := m.Record(archiveMsg(1, 7, "ana", "first", base)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := m.Record(archiveMsg(2, 7, "ana", "second", base.Add(time.Minute))); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := m.Record(archiveMsg(3, 8, "bruno", "elsewhere", base)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := m.Recent(7, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for conversation 7, got %d", len(entries))
	}
	if entries[0].Text != "first" || entries[1].Text != "second" {
		t.Errorf("entries not in reading order: %q, %q", entries[0].Text, entries[1].Text)
	}
}

func TestArchive_RecordIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := archiveMsg(1, 7, "ana", "hello", base)
	if err := m.Record(msg); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := m.Record(msg); err != nil {
		t.Fatalf("repeat Record failed: %v", err)
	}

	count, err := m.GetCount()
	if err != nil {
		t.Fatalf("GetCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("re-delivery must not duplicate rows, got %d", count)
	}
}

func TestArchive_TombstoneOverwritesText(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := m.Record(archiveMsg(1, 7, "ana", "secret", base)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	deleted := archiveMsg(1, 7, "ana", "secret", base)
	deleted.IsDeletedForAll = true
	deleted.DeletedLabel = "Message deleted"
	if err := m.Record(deleted); err != nil {
		t.Fatalf("Record of tombstone failed: %v", err)
	}

	entries, err := m.Recent(7, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "Message deleted" {
		t.Errorf("tombstone should replace archived text, got %q", entries[0].Text)
	}
}

func TestArchive_UnkeyedMessagesIgnored(t *testing.T) {
	m := newTestManager(t)

	if err := m.Record(&types.Message{Text: "no ids"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	count, err := m.GetCount()
	if err != nil {
		t.Fatalf("GetCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("messages without ids must be skipped, got %d rows", count)
	}
}

func TestArchive_Search(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Record(archiveMsg(1, 7, "ana", "meet at noon", base))
	m.Record(archiveMsg(2, 8, "bruno", "running late", base.Add(time.Minute)))
	m.Record(archiveMsg(3, 9, "carla", "noon works", base.Add(2*time.Minute)))

	entries, err := m.Search("noon", 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(entries))
	}
	if entries[0].Text != "noon works" {
		t.Errorf("search results should be newest first, got %q", entries[0].Text)
	}

	byAuthor, err := m.Search("bruno", 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(byAuthor) != 1 {
		t.Errorf("author match expected 1 result, got %d", len(byAuthor))
	}
}

func TestArchive_Clear(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Record(archiveMsg(1, 7, "ana", "hello", base))
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	count, _ := m.GetCount()
	if count != 0 {
		t.Errorf("archive should be empty after Clear, got %d", count)
	}
}
