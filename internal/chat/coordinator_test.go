package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duochat/duochat/internal/store"
	"github.com/duochat/duochat/internal/types"
)

func newTestCoordinator(fetch store.MessageFetcher) *Coordinator {
	if fetch == nil {
		fetch = func(ctx context.Context, conversationID int64) ([]types.Message, error) {
			return nil, nil
		}
	}
	return NewCoordinator(store.NewConversationStore(), store.NewMessageCache(fetch))
}

func testConv(id int64, name string, at time.Time) types.Conversation {
	c := types.Conversation{ID: id, Partner: &types.User{ID: id, Name: name, Handle: "@" + name}}
	if !at.IsZero() {
		t := at
		c.LastMessageAt = &t
	}
	return c
}

func testMsg(id, convID int64, text string, at time.Time) types.Message {
	return types.Message{ID: id, ConversationID: convID, Text: text, DisplayText: text, CreatedAt: at}
}

func TestCoordinator_FencingDiscardsStaleLoads(t *testing.T) {
	c := newTestCoordinator(nil)

	gen1 := c.Select(1)
	gen2 := c.Select(2)

	if c.AcceptLoad(gen1) {
		t.Error("load for the superseded selection must be discarded")
	}
	if !c.AcceptLoad(gen2) {
		t.Error("load for the current selection must be accepted")
	}
	if c.Active() != 2 {
		t.Errorf("expected active conversation 2, got %d", c.Active())
	}
}

func TestCoordinator_DeselectFencesOutstandingLoads(t *testing.T) {
	c := newTestCoordinator(nil)
	gen := c.Select(1)
	c.Deselect()

	if c.AcceptLoad(gen) {
		t.Error("deselect must fence the outstanding load")
	}
	if c.Active() != 0 {
		t.Error("deselect clears the active id")
	}
}

func TestCoordinator_ValidateSend(t *testing.T) {
	c := newTestCoordinator(nil)

	var valErr *types.ValidationError
	if err := c.ValidateSend("hello"); !errors.As(err, &valErr) {
		t.Error("send without a selection must fail validation")
	}

	c.Select(1)
	if err := c.ValidateSend("   "); !errors.As(err, &valErr) {
		t.Error("blank text must fail validation")
	}
	if err := c.ValidateSend("hello"); err != nil {
		t.Errorf("valid send rejected: %v", err)
	}

	c.BeginSend()
	if err := c.ValidateSend("hello"); !errors.As(err, &valErr) {
		t.Error("overlapping send must fail validation")
	}
	c.EndSend()
	if err := c.ValidateSend("hello"); err != nil {
		t.Errorf("send should be re-enabled after EndSend: %v", err)
	}
}

func TestCoordinator_ApplySentUpdatesCacheAndPreview(t *testing.T) {
	c := newTestCoordinator(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Conversations().Upsert(testConv(1, "ana", base))
	c.Select(1)

	sent := testMsg(10, 1, "on my way", base.Add(time.Minute))
	c.ApplySent(&sent)

	if c.Messages().Len(1) != 1 {
		t.Fatalf("sent message should be cached, got %d entries", c.Messages().Len(1))
	}
	conv, _ := c.Conversations().Get(1)
	if conv.LastMessage != "on my way" {
		t.Errorf("preview text not updated: %q", conv.LastMessage)
	}
	if conv.LastMessageAt == nil || !conv.LastMessageAt.Equal(base.Add(time.Minute)) {
		t.Error("preview timestamp not updated")
	}
}

func TestCoordinator_ReconcileClearsVanishedActive(t *testing.T) {
	c := newTestCoordinator(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Conversations().Upsert(testConv(1, "ana", base))
	gen := c.Select(1)

	vanished := c.Reconcile([]types.Conversation{testConv(2, "bruno", base)})
	if !vanished {
		t.Fatal("reconcile should report the vanished active conversation")
	}
	if c.Active() != 0 {
		t.Error("vanished active conversation must clear the selection")
	}
	if c.AcceptLoad(gen) {
		t.Error("loads for the vanished selection must be fenced")
	}

	// Reconcile with the selection intact reports nothing.
	c.Select(2)
	if c.Reconcile([]types.Conversation{testConv(2, "bruno", base)}) {
		t.Error("present active conversation must not be reported vanished")
	}
}

func TestCoordinator_RefreshSlotDedupes(t *testing.T) {
	c := newTestCoordinator(nil)

	if !c.BeginRefresh() {
		t.Fatal("first refresh should claim the slot")
	}
	if c.BeginRefresh() {
		t.Error("overlapping refresh must be skipped")
	}
	c.EndRefresh()
	if !c.BeginRefresh() {
		t.Error("slot should be free after EndRefresh")
	}
	c.EndRefresh()
}

func TestCoordinator_RefreshSkippedWhileHidden(t *testing.T) {
	c := newTestCoordinator(nil)

	c.SetHidden(true)
	if c.BeginRefresh() {
		t.Error("refresh must be skipped while hidden")
	}
	c.SetHidden(false)
	if !c.BeginRefresh() {
		t.Error("refresh should resume when visible")
	}
	c.EndRefresh()
}

func TestCoordinator_ApplyEnvelopeRoutesIntoStores(t *testing.T) {
	c := newTestCoordinator(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Conversations().Upsert(testConv(1, "ana", base))
	c.Select(1)

	msg := testMsg(5, 1, "ping", base.Add(time.Minute))
	conv := testConv(1, "ana", base.Add(time.Minute))
	updated, header := c.ApplyEnvelope(&types.Envelope{
		Event:        types.EventMessage,
		Conversation: &conv,
		Message:      &msg,
	})

	if !updated {
		t.Error("frame for the active conversation must trigger a re-render")
	}
	if header == nil || header.ID != 1 {
		t.Error("frame carrying the active conversation must refresh the header")
	}
	if c.Messages().Len(1) != 1 {
		t.Errorf("message not merged, cache has %d entries", c.Messages().Len(1))
	}
}

func TestCoordinator_ApplyEnvelopeForInactiveConversationIsSilent(t *testing.T) {
	c := newTestCoordinator(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Conversations().Upsert(testConv(1, "ana", base))
	c.Select(1)

	msg := testMsg(7, 2, "other thread", base)
	updated, header := c.ApplyEnvelope(&types.Envelope{Event: types.EventMessage, Message: &msg})
	if updated {
		t.Error("frame for an inactive conversation must not trigger a re-render")
	}
	if header != nil {
		t.Error("no header refresh for an inactive conversation")
	}
	if c.Messages().Len(2) != 1 {
		t.Error("the message is still merged into its own buffer")
	}
}

func TestCoordinator_ApplyEnvelopeIsIdempotent(t *testing.T) {
	c := newTestCoordinator(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Select(1)

	msg := testMsg(5, 1, "once", base)
	env := &types.Envelope{Event: types.EventMessage, Message: &msg}

	// The push channel and the polling loop may both deliver this frame.
	c.ApplyEnvelope(env)
	c.ApplyEnvelope(env)

	if c.Messages().Len(1) != 1 {
		t.Errorf("duplicate delivery must merge to one entry, got %d", c.Messages().Len(1))
	}
}

func TestCoordinator_MarkLoadedFiresOnce(t *testing.T) {
	c := newTestCoordinator(nil)
	if !c.MarkLoaded() {
		t.Error("first load should be reported")
	}
	if c.MarkLoaded() {
		t.Error("subsequent loads are not first")
	}
}
