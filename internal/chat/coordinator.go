// Package chat holds the synchronization coordinator: the one component that
// owns the active selection and routes every update path (user intents,
// transport events, periodic refreshes) into the conversation and message
// stores.
package chat

import (
	"strings"
	"sync"

	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/store"
	"github.com/duochat/duochat/internal/types"
)

// Coordinator owns the active conversation id and the fencing generation for
// asynchronous loads. Every load started on behalf of a selection carries the
// generation current at start time; a completion whose generation no longer
// matches is discarded instead of applied, so a stale response can never be
// attributed to the wrong conversation.
type Coordinator struct {
	mu sync.Mutex

	convs *store.ConversationStore
	cache *store.MessageCache

	activeID   int64
	gen        uint64
	refreshing bool
	hidden     bool
	sending    bool
	loadedOnce bool
}

// NewCoordinator wires the coordinator to its two stores.
func NewCoordinator(convs *store.ConversationStore, cache *store.MessageCache) *Coordinator {
	return &Coordinator{convs: convs, cache: cache}
}

// Conversations returns the conversation store.
func (c *Coordinator) Conversations() *store.ConversationStore { return c.convs }

// Messages returns the message cache.
func (c *Coordinator) Messages() *store.MessageCache { return c.cache }

// Active returns the active conversation id, 0 when none is selected.
func (c *Coordinator) Active() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Select makes a conversation active and returns the generation tag for the
// message load that follows. The previous selection's outstanding loads are
// fenced off by the bump.
func (c *Coordinator) Select(conversationID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = conversationID
	c.gen++
	logger.Debug("chat: select conversation %d (load gen %d)", conversationID, c.gen)
	return c.gen
}

// Deselect clears the active conversation and fences outstanding loads.
func (c *Coordinator) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = 0
	c.gen++
}

// Gen returns the current load generation.
func (c *Coordinator) Gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// AcceptLoad reports whether a load tagged with gen may be applied to the
// view. Stale loads are logged and dropped.
func (c *Coordinator) AcceptLoad(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		logger.Debug("chat: discarding stale load (gen %d, current %d)", gen, c.gen)
		return false
	}
	return true
}

// ValidateSend rejects a send locally before any network call.
func (c *Coordinator) ValidateSend(text string) error {
	if strings.TrimSpace(text) == "" {
		return &types.ValidationError{Reason: "cannot send an empty message"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == 0 {
		return &types.ValidationError{Reason: "select or start a conversation first"}
	}
	if c.sending {
		return &types.ValidationError{Reason: "a send is already in progress"}
	}
	return nil
}

// BeginSend marks the send affordance busy.
func (c *Coordinator) BeginSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = true
}

// EndSend re-enables the send affordance. Called on success and failure.
func (c *Coordinator) EndSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
}

// Sending reports whether a send is in flight.
func (c *Coordinator) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// ApplySent merges the canonical server copy of a just-sent message and
// refreshes the conversation's preview fields.
func (c *Coordinator) ApplySent(msg *types.Message) {
	if msg == nil {
		return
	}
	c.cache.Upsert(*msg)
	if conv, ok := c.convs.Get(msg.ConversationID); ok {
		conv.LastMessage = msg.Body()
		at := msg.CreatedAt
		conv.LastMessageAt = &at
		c.convs.Upsert(conv)
	}
}

// Reconcile replaces the conversation list with a fresh snapshot. When the
// active conversation vanished from the snapshot the selection is cleared
// (fencing outstanding loads) and true is returned so the caller can tear
// down its transport.
func (c *Coordinator) Reconcile(fresh []types.Conversation) (vanished bool) {
	c.mu.Lock()
	active := c.activeID
	c.mu.Unlock()

	still := c.convs.Reconcile(fresh, active)
	if still {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check: the selection may have moved while the store sorted.
	if c.activeID != active {
		return false
	}
	logger.Info("chat: active conversation %d vanished from refresh", active)
	c.activeID = 0
	c.gen++
	return true
}

// MarkLoaded records that the first successful list load happened and
// reports whether this call was the first.
func (c *Coordinator) MarkLoaded() (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadedOnce {
		return false
	}
	c.loadedOnce = true
	return true
}

// Loaded reports whether at least one list load succeeded.
func (c *Coordinator) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedOnce
}

// BeginRefresh claims the periodic list refresh slot. It returns false while
// another refresh is in flight or the view is hidden, in which case the tick
// is skipped.
func (c *Coordinator) BeginRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing || c.hidden {
		return false
	}
	c.refreshing = true
	return true
}

// EndRefresh releases the refresh slot.
func (c *Coordinator) EndRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
}

// SetHidden records view visibility. Hidden pauses periodic refreshes; the
// transport teardown is the caller's job.
func (c *Coordinator) SetHidden(hidden bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = hidden
}

// Hidden reports whether the view is hidden.
func (c *Coordinator) Hidden() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hidden
}

// ApplyEnvelope routes one recognized realtime frame into the stores. It
// returns whether the active conversation's messages changed (the caller
// re-renders only then) and, when the frame refreshed the active
// conversation's metadata, the refreshed copy for the header.
func (c *Coordinator) ApplyEnvelope(env *types.Envelope) (activeUpdated bool, header *types.Conversation) {
	if env == nil {
		return false, nil
	}

	c.mu.Lock()
	active := c.activeID
	c.mu.Unlock()

	if env.Conversation != nil {
		c.convs.Upsert(*env.Conversation)
		if env.Conversation.ID == active {
			conv := *env.Conversation
			header = &conv
		}
	}
	if env.Message != nil {
		c.cache.Upsert(*env.Message)
		if env.Message.ConversationID == active {
			activeUpdated = true
		}
	}
	return activeUpdated, header
}
