package store

import (
	"context"
	"sort"
	"sync"

	"github.com/duochat/duochat/internal/types"
)

// MessageFetcher loads the full message list for a conversation from the
// server. Failures should wrap types.NetworkError.
type MessageFetcher func(ctx context.Context, conversationID int64) ([]types.Message, error)

// MessageCache owns the per-conversation ordered message buffers. Entries
// are kept ascending by creation time and unique by id, so the push channel
// and the polling loop can both merge through Upsert without coordination.
type MessageCache struct {
	mu    sync.Mutex
	cache map[int64][]types.Message
	fetch MessageFetcher
}

// NewMessageCache returns an empty cache backed by the given fetcher.
func NewMessageCache(fetch MessageFetcher) *MessageCache {
	return &MessageCache{
		cache: make(map[int64][]types.Message),
		fetch: fetch,
	}
}

// Ensure returns the cached messages for a conversation, fetching them if
// absent or when force is set. On fetch failure any previous entry is left
// untouched.
func (c *MessageCache) Ensure(ctx context.Context, conversationID int64, force bool) ([]types.Message, error) {
	c.mu.Lock()
	if cached, ok := c.cache[conversationID]; ok && !force {
		out := append([]types.Message(nil), cached...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	messages, err := c.fetch(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sorted := append([]types.Message(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	c.mu.Lock()
	c.cache[conversationID] = sorted
	out := append([]types.Message(nil), sorted...)
	c.mu.Unlock()
	return out, nil
}

// Upsert merges one message into its conversation's buffer. A message with a
// known id replaces the previous entry in place; a new id is inserted and the
// buffer re-sorted ascending by creation time. Applying the same message
// twice is a no-op beyond the replacement.
func (c *MessageCache) Upsert(msg types.Message) {
	if msg.ID == 0 || msg.ConversationID == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.cache[msg.ConversationID]
	for i := range buf {
		if buf[i].ID == msg.ID {
			buf[i] = msg
			c.cache[msg.ConversationID] = buf
			return
		}
	}

	buf = append(buf, msg)
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].CreatedAt.Before(buf[j].CreatedAt)
	})
	c.cache[msg.ConversationID] = buf
}

// Invalidate drops a conversation's buffer entirely; the next Ensure
// triggers a fresh fetch.
func (c *MessageCache) Invalidate(conversationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, conversationID)
}

// Cached returns a copy of the buffer for a conversation without fetching.
func (c *MessageCache) Cached(conversationID int64) ([]types.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.cache[conversationID]
	if !ok {
		return nil, false
	}
	return append([]types.Message(nil), buf...), true
}

// Len returns the number of cached messages for a conversation.
func (c *MessageCache) Len(conversationID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache[conversationID])
}
