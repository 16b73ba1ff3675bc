package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/transport"
	"github.com/duochat/duochat/internal/types"
)

// apiTimeout bounds commands launched from the update loop.
const apiTimeout = 15 * time.Second

// loadConversations fetches the conversation list.
func (m *Model) loadConversations() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		convs, err := client.ListConversations(ctx)
		return conversationsLoadedMsg{conversations: convs, err: err}
	}
}

// loadMessages ensures the message buffer for one conversation. The result
// carries the fencing generation so stale completions are discarded.
func (m *Model) loadMessages(gen uint64, conversationID int64, force bool) tea.Cmd {
	cache := m.coord.Messages()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		msgs, err := cache.Ensure(ctx, conversationID, force)
		return messagesLoadedMsg{gen: gen, conversationID: conversationID, messages: msgs, err: err}
	}
}

func (m *Model) sendMessage(conversationID int64, text string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		msg, err := client.SendMessage(ctx, conversationID, text)
		return messageSentMsg{message: msg, err: err}
	}
}

func (m *Model) deleteMessage(messageID, conversationID int64, scope types.DeleteScope) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		conv, err := client.DeleteMessage(ctx, messageID, scope)
		return messageDeletedMsg{conversationID: conversationID, conversation: conv, err: err}
	}
}

func (m *Model) startConversation(username string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		conv, err := client.StartConversation(ctx, username)
		return conversationStartedMsg{conversation: conv, err: err}
	}
}

func (m *Model) searchUsers(gen uint64, term string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		users, err := client.SearchUsers(ctx, term)
		return searchResultsMsg{gen: gen, results: users, err: err}
	}
}

// dialChannel opens the push channel for the active conversation.
func (m *Model) dialChannel(gen uint64, conversationID int64) tea.Cmd {
	rawurl := m.client.SocketURL(conversationID)
	header := m.client.SocketHeader()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transport.HandshakeTimeout)
		defer cancel()
		conn, err := transport.Dial(ctx, rawurl, header)
		return dialResultMsg{gen: gen, conn: conn, err: err}
	}
}

// waitSocket blocks on the channel until a frame arrives or it closes.
func (m *Model) waitSocket(gen uint64, conn *transport.Conn) tea.Cmd {
	return func() tea.Msg {
		select {
		case raw, ok := <-conn.Frames():
			if !ok {
				ev := <-conn.Closed()
				return socketClosedMsg{gen: gen, code: ev.Code}
			}
			return socketFrameMsg{gen: gen, raw: raw}
		case ev := <-conn.Closed():
			return socketClosedMsg{gen: gen, code: ev.Code}
		}
	}
}

func (m *Model) refreshTick() tea.Cmd {
	interval := time.Duration(m.cfg.Realtime.RefreshSeconds) * time.Second
	gen := m.refreshGen
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return refreshTickMsg{gen: gen}
	})
}

func (m *Model) pollTick(gen uint64) tea.Cmd {
	return tea.Tick(m.transport.PollInterval(), func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

func (m *Model) reconnectTimer(gen uint64, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return reconnectTimerMsg{gen: gen}
	})
}

func (m *Model) searchDebounce(gen uint64) tea.Cmd {
	delay := time.Duration(m.cfg.Realtime.SearchDebounceMillis) * time.Millisecond
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return searchDebounceMsg{gen: gen}
	})
}

// notify raises one desktop notification. Failures are ignored; the message
// still rendered in the TUI.
func (m *Model) notify(title, body string) tea.Cmd {
	if !m.cfg.Notifications {
		return nil
	}
	return func() tea.Msg {
		if err := beeep.Notify(title, body, ""); err != nil {
			logger.Debug("notification failed: %v", err)
		}
		return nil
	}
}

// applyPlan maps a transport transition onto commands. Cancelled timers and
// stopped tickers need no action here: pending ticks carry a generation that
// the handlers reject once stale.
func (m *Model) applyPlan(plan transport.Plan) tea.Cmd {
	var cmds []tea.Cmd
	gen := m.transport.Gen()

	if plan.Dial {
		cmds = append(cmds, m.dialChannel(gen, m.transport.ConversationID()))
	}
	if plan.StartPolling {
		cmds = append(cmds, m.pollTick(gen))
	}
	if plan.ReconnectIn > 0 {
		cmds = append(cmds, m.reconnectTimer(gen, plan.ReconnectIn))
	}
	if plan.Notice != "" {
		cmds = append(cmds, m.setStatusMessage(plan.Notice))
	}

	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// selectConversation sets the active conversation and loads its messages.
// The previous channel is torn down immediately; the new one is dialed only
// after the load succeeds.
func (m *Model) selectConversation(conversationID int64) tea.Cmd {
	gen := m.coord.Select(conversationID)
	m.applyPlan(m.transport.Teardown())
	m.loadingMsgs = true
	m.loadFailed = ""
	m.gone = false
	m.msgIndex = 0
	if m.narrow() {
		m.viewMode = ViewChat
	}
	m.focusedPanel = "chat"
	m.syncListIndex(conversationID)
	return m.loadMessages(gen, conversationID, false)
}

// syncListIndex points the list cursor at the given conversation.
func (m *Model) syncListIndex(conversationID int64) {
	for i, conv := range m.coord.Conversations().All() {
		if conv.ID == conversationID {
			m.listIndex = i
			return
		}
	}
}

func (m *Model) handleConversationsLoaded(msg conversationsLoadedMsg) tea.Cmd {
	m.coord.EndRefresh()

	if msg.err != nil {
		// Background refresh failures stay silent; the next tick retries.
		logger.Debug("conversation refresh failed: %v", msg.err)
		return nil
	}

	vanished := m.coord.Reconcile(msg.conversations)
	var cmds []tea.Cmd
	if vanished {
		m.gone = false
		m.composing = false
		if m.narrow() {
			m.viewMode = ViewList
		}
		m.focusedPanel = "list"
		cmds = append(cmds, m.applyPlan(m.transport.Teardown()))
		cmds = append(cmds, m.setStatusMessage("This conversation is no longer available."))
	}

	if m.listIndex >= m.coord.Conversations().Len() {
		m.listIndex = 0
		m.listOffset = 0
	}

	// First successful load on a wide terminal opens the newest conversation.
	// The store keeps the list sorted by last activity; the server's order is
	// not trusted for this.
	if m.coord.MarkLoaded() && !m.narrow() {
		if all := m.coord.Conversations().All(); len(all) > 0 {
			cmds = append(cmds, m.selectConversation(all[0].ID))
		}
	}

	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleMessagesLoaded(msg messagesLoadedMsg) tea.Cmd {
	if !m.coord.AcceptLoad(msg.gen) {
		logger.Debug("dropping stale message load for conversation %d", msg.conversationID)
		return nil
	}

	m.loadingMsgs = false

	if msg.err != nil {
		var notFound *types.NotFoundError
		if errors.As(msg.err, &notFound) {
			m.gone = true
			m.loadFailed = ""
			return nil
		}
		m.loadFailed = "Could not load messages. Select the conversation again to retry."
		logger.Debug("message load failed for conversation %d: %v", msg.conversationID, msg.err)
		return nil
	}

	m.loadFailed = ""
	m.gone = false
	m.clampMsgIndex()
	m.updateChatViewport()
	m.chatView.GotoBottom()

	// Channel comes up only once the pane has content to keep fresh.
	if m.transport.ConversationID() != msg.conversationID {
		return m.applyPlan(m.transport.Select(msg.conversationID))
	}
	return nil
}

func (m *Model) handleMessageSent(msg messageSentMsg) tea.Cmd {
	m.coord.EndSend()

	if msg.err != nil {
		return m.setErrorMessage(fmt.Sprintf("Send failed: %v", msg.err))
	}

	m.coord.ApplySent(msg.message)
	m.input = ""
	m.inputCursor = 0
	m.updateChatViewport()
	m.chatView.GotoBottom()

	if m.archive != nil {
		if err := m.archive.Record(msg.message); err != nil {
			logger.Debug("archive record failed: %v", err)
		}
	}
	return nil
}

func (m *Model) handleMessageDeleted(msg messageDeletedMsg) tea.Cmd {
	if msg.err != nil {
		return m.setErrorMessage(fmt.Sprintf("Delete failed: %v", msg.err))
	}

	if msg.conversation != nil {
		m.coord.Conversations().Upsert(*msg.conversation)
	}
	m.coord.Messages().Invalidate(msg.conversationID)

	if m.coord.Active() == msg.conversationID {
		gen := m.coord.Gen()
		return m.loadMessages(gen, msg.conversationID, true)
	}
	return nil
}

func (m *Model) handleConversationStarted(msg conversationStartedMsg) tea.Cmd {
	if msg.err != nil {
		return m.setErrorMessage(fmt.Sprintf("Could not start conversation: %v", msg.err))
	}

	m.coord.Conversations().Upsert(*msg.conversation)
	m.exitSearch()
	return m.selectConversation(msg.conversation.ID)
}

func (m *Model) handleSearchDebounce(msg searchDebounceMsg) tea.Cmd {
	if msg.gen != m.searchGen || m.mode != ModeSearch {
		return nil
	}
	term := strings.TrimSpace(m.searchQuery)
	if term == "" {
		return nil
	}
	m.searchPending = true
	return m.searchUsers(msg.gen, term)
}

func (m *Model) handleSearchResults(msg searchResultsMsg) tea.Cmd {
	if msg.gen != m.searchGen || m.mode != ModeSearch {
		return nil
	}
	m.searchPending = false
	if msg.err != nil {
		logger.Debug("user search failed: %v", msg.err)
		return nil
	}
	m.searchResults = msg.results
	m.searchIndex = 0
	m.searchOverlay = len(msg.results) > 0
	return nil
}

func (m *Model) handleDialResult(msg dialResultMsg) tea.Cmd {
	plan := m.transport.HandleDialResult(msg.gen, msg.conn, msg.err)
	cmd := m.applyPlan(plan)

	if m.transport.State() == transport.StateConnected && m.transport.Conn() != nil {
		wait := m.waitSocket(m.transport.Gen(), m.transport.Conn())
		if cmd != nil {
			return tea.Batch(cmd, wait)
		}
		return wait
	}
	return cmd
}

func (m *Model) handleSocketFrame(msg socketFrameMsg) tea.Cmd {
	if !m.transport.Current(msg.gen) {
		return nil
	}

	// Keep listening regardless of what the frame contained.
	cmds := []tea.Cmd{m.waitSocket(msg.gen, m.transport.Conn())}

	m.recordFrame(msg.raw)

	env, err := transport.ParseEnvelope(msg.raw)
	if err != nil {
		logger.Debug("dropping frame: %v", err)
		return tea.Batch(cmds...)
	}

	_, _ = m.coord.ApplyEnvelope(env)

	if env.Message != nil {
		if m.archive != nil {
			if err := m.archive.Record(env.Message); err != nil {
				logger.Debug("archive record failed: %v", err)
			}
		}
		if !env.Message.IsSelf && env.Message.ConversationID != m.coord.Active() {
			author := env.Message.AuthorName()
			if author == "" {
				author = "New message"
			}
			cmds = append(cmds, m.notify(author, truncate(env.Message.Body(), 120)))
		}
		if env.Message.ConversationID == m.coord.Active() {
			atBottom := m.chatView.AtBottom()
			m.updateChatViewport()
			if atBottom {
				m.chatView.GotoBottom()
			}
		}
	}

	return tea.Batch(cmds...)
}

func (m *Model) handleRefreshTick(msg refreshTickMsg) tea.Cmd {
	// A tick from before the last hide carries a stale generation and must
	// not reschedule, or every hide/show cycle would add a second chain.
	if msg.gen != m.refreshGen || m.coord.Hidden() {
		return nil
	}
	if !m.coord.BeginRefresh() {
		return m.refreshTick()
	}
	return tea.Batch(m.loadConversations(), m.refreshTick())
}

func (m *Model) handlePollTick(msg pollTickMsg) tea.Cmd {
	if !m.transport.Current(msg.gen) || !m.transport.Polling() {
		return nil
	}
	active := m.coord.Active()
	if active == 0 {
		return m.pollTick(msg.gen)
	}
	gen := m.coord.Gen()
	return tea.Batch(m.loadMessages(gen, active, true), m.pollTick(msg.gen))
}

// handleHidden cancels every timer and closes the channel: the stores keep
// their state, but nothing runs until the terminal is focused again.
func (m *Model) handleHidden() tea.Cmd {
	m.coord.SetHidden(true)
	m.refreshGen++
	return m.applyPlan(m.transport.Suspend())
}

// handleVisible performs one silent refresh, restarts the ticker, and
// reattempts the channel with a fresh retry budget.
func (m *Model) handleVisible() tea.Cmd {
	if !m.coord.Hidden() {
		return nil
	}
	m.coord.SetHidden(false)

	cmds := []tea.Cmd{m.refreshTick(), m.applyPlan(m.transport.Resume())}
	if m.coord.BeginRefresh() {
		cmds = append(cmds, m.loadConversations())
	}
	if active := m.coord.Active(); active != 0 {
		cmds = append(cmds, m.loadMessages(m.coord.Gen(), active, true))
	}
	return tea.Batch(cmds...)
}

// submitSend validates and posts the composer content.
func (m *Model) submitSend() tea.Cmd {
	text := strings.TrimSpace(m.input)
	if err := m.coord.ValidateSend(text); err != nil {
		var valErr *types.ValidationError
		if errors.As(err, &valErr) && valErr.Reason != "" {
			return m.setErrorMessage(valErr.Reason)
		}
		return nil
	}
	m.coord.BeginSend()
	return m.sendMessage(m.coord.Active(), text)
}

// yankSelected copies the selected message's rendered text.
func (m *Model) yankSelected() tea.Cmd {
	msg := m.selectedMessage()
	if msg == nil {
		return nil
	}
	if err := clipboard.WriteAll(msg.Body()); err != nil {
		return m.setErrorMessage(fmt.Sprintf("Copy failed: %v", err))
	}
	return m.setStatusMessage("Copied message to clipboard")
}

func (m *Model) exitSearch() {
	m.mode = ModeNormal
	m.searchQuery = ""
	m.searchResults = nil
	m.searchOverlay = false
	m.searchPending = false
	m.searchGen++
}

// openArchive loads the archive modal for the active conversation.
func (m *Model) openArchive() tea.Cmd {
	if m.archive == nil {
		return m.setStatusMessage("Archiving is disabled in config.yaml")
	}
	active := m.coord.Active()
	if active == 0 {
		return m.setStatusMessage("Select a conversation first")
	}

	entries, err := m.archive.Recent(active, 200)
	if err != nil {
		return m.setErrorMessage(fmt.Sprintf("Archive unavailable: %v", err))
	}
	total, err := m.archive.GetCount()
	if err != nil {
		logger.Debug("archive count failed: %v", err)
	}
	m.archiveEntries = entries
	m.archiveTotal = total
	m.archiveIndex = 0
	m.archiveQuery = ""
	m.archiveSearch = false
	m.mode = ModeArchive
	return nil
}

// clearArchive wipes the local archive across all conversations.
func (m *Model) clearArchive() tea.Cmd {
	if err := m.archive.Clear(); err != nil {
		return m.setErrorMessage(fmt.Sprintf("Archive clear failed: %v", err))
	}
	m.archiveEntries = nil
	m.archiveTotal = 0
	m.archiveIndex = 0
	return m.setStatusMessage("Local archive cleared")
}

func (m *Model) runArchiveSearch() tea.Cmd {
	term := strings.TrimSpace(m.archiveQuery)
	if term == "" {
		return m.openArchive()
	}
	entries, err := m.archive.Search(term, 200)
	if err != nil {
		return m.setErrorMessage(fmt.Sprintf("Archive search failed: %v", err))
	}
	m.archiveEntries = entries
	m.archiveIndex = 0
	return nil
}
