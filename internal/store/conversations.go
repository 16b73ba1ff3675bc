// Package store owns the client-side conversation list and per-conversation
// message buffers. Both structures are merge targets for every delivery path
// (initial fetch, push channel, polling), so all writes go through idempotent
// upserts keyed by id.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/duochat/duochat/internal/types"
)

// ConversationStore owns the ordered conversation list. The list is always
// sorted descending by last-message time; a thread with no messages sorts
// last.
type ConversationStore struct {
	mu            sync.Mutex
	conversations []types.Conversation
}

// NewConversationStore returns an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

// Upsert replaces the conversation with the same id, or prepends it, then
// restores descending order.
func (s *ConversationStore) Upsert(conv types.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			s.conversations[i] = conv
			replaced = true
			break
		}
	}
	if !replaced {
		s.conversations = append([]types.Conversation{conv}, s.conversations...)
	}
	s.sortLocked()
}

// Reconcile replaces the list wholesale with a fresh server snapshot and
// reports whether activeID (if non-zero) is still present.
func (s *ConversationStore) Reconcile(fresh []types.Conversation, activeID int64) (stillPresent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = append(s.conversations[:0:0], fresh...)
	s.sortLocked()

	if activeID == 0 {
		return true
	}
	for i := range s.conversations {
		if s.conversations[i].ID == activeID {
			return true
		}
	}
	return false
}

// Get returns a copy of the conversation with the given id.
func (s *ConversationStore) Get(id int64) (types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return s.conversations[i], true
		}
	}
	return types.Conversation{}, false
}

// All returns a copy of the full ordered list.
func (s *ConversationStore) All() []types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Conversation(nil), s.conversations...)
}

// Len returns the number of conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Filter returns the conversations whose partner name or handle contains
// term, case-insensitively. A blank term returns the unfiltered list.
func (s *ConversationStore) Filter(term string) []types.Conversation {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.All()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	var out []types.Conversation
	for i := range s.conversations {
		partner := s.conversations[i].Partner
		var name, handle string
		if partner != nil {
			name = partner.Name
			handle = partner.Handle
		}
		haystack := strings.ToLower(name + " " + handle)
		if strings.Contains(haystack, needle) {
			out = append(out, s.conversations[i])
		}
	}
	return out
}

func (s *ConversationStore) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageTime().After(s.conversations[j].LastMessageTime())
	})
}
