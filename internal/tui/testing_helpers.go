package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/duochat/duochat/internal/api"
	"github.com/duochat/duochat/internal/config"
	"github.com/duochat/duochat/internal/types"
)

// CreateTestModel creates a Model instance for testing with minimal
// dependencies. No network call is made unless a returned command is run.
func CreateTestModel(t *testing.T) *Model {
	t.Helper()

	client, err := api.New("http://127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Failed to create test client: %v", err)
	}

	m := New(config.Default(), client, nil)
	m.width = 120
	m.height = 40
	return m
}

// CreateNarrowTestModel is CreateTestModel at a width below the split
// threshold.
func CreateNarrowTestModel(t *testing.T) *Model {
	t.Helper()
	m := CreateTestModel(t)
	m.width = 60
	m.height = 40
	return m
}

// AssertModelField is a generic helper for checking model field values
func AssertModelField[T comparable](t *testing.T, fieldName string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %v, want %v", fieldName, got, want)
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func seedConversation(m *Model, id int64, name string, at time.Time) {
	conv := types.Conversation{
		ID:      id,
		Partner: &types.User{ID: id, Name: name, Handle: "@" + name},
	}
	if !at.IsZero() {
		t := at
		conv.LastMessageAt = &t
	}
	m.coord.Conversations().Upsert(conv)
}
