package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/duochat/duochat/internal/api"
	"github.com/duochat/duochat/internal/chat"
	"github.com/duochat/duochat/internal/config"
	"github.com/duochat/duochat/internal/history"
	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/transport"
	"github.com/duochat/duochat/internal/types"
)

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeHelp
	ModeInspector
	ModeArchive
	ModeDeleteConfirm
	ModeStatusDetail
)

// ViewMode is which pane a narrow terminal shows. Meaningless at or above
// the split threshold, where both panes are visible.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewChat
)

// splitThreshold is the terminal width below which only one pane fits.
const splitThreshold = 80

// frameRingSize bounds the raw-frame ring kept for the inspector.
const frameRingSize = 50

// Model represents the TUI state
type Model struct {
	// Core state
	cfg       *config.Config
	client    *api.Client
	coord     *chat.Coordinator
	transport *transport.Manager
	archive   *history.Manager // nil when archiving is disabled

	mode     Mode
	viewMode ViewMode
	width    int
	height   int

	// Conversation list
	listIndex  int
	listOffset int

	// Chat pane
	chatView     viewport.Model
	msgIndex     int  // Selected message in browse mode
	composing    bool // True while the composer has key focus
	input        string
	inputCursor  int
	loadingMsgs  bool
	loadFailed   string // Inline error shown in the chat pane, "" when none
	gone         bool   // Active conversation is no longer available
	focusedPanel string // "list" or "chat"

	// Search state
	searchQuery   string
	searchGen     uint64
	searchResults []types.User
	searchIndex   int
	searchOverlay bool
	searchPending bool

	// Inspector state
	frames         [][]byte // Raw realtime frames, newest last
	frameIndex     int
	inspectorQuery string
	inspectorOut   string
	inspectorErr   string
	inspectorEdit  bool

	// Archive state
	archiveEntries []history.Entry
	archiveIndex   int
	archiveQuery   string
	archiveSearch  bool
	archiveTotal   int // Rows across all conversations, shown in the modal

	// Delete confirmation state
	deleteTarget *types.Message

	// Periodic refresh chain, bumped on hide so pre-hide ticks die stale.
	refreshGen uint64

	// UI state
	statusMsg     string
	errorMsg      string
	fullStatusMsg string
	fullErrorMsg  string
	gPressed      bool // Track if 'g' was pressed for 'gg' vim motion
}

// Init starts the periodic list refresh and the first load.
func (m *Model) Init() tea.Cmd {
	if !m.coord.BeginRefresh() {
		return m.refreshTick()
	}
	return tea.Batch(m.loadConversations(), m.refreshTick())
}

// Cleanup closes database connections.
func (m *Model) Cleanup() {
	if m.archive != nil {
		if err := m.archive.Close(); err != nil {
			logger.Warn("error closing archive database: %v", err)
		}
	}
}

// Update handles messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKeyPress(msg)

	case tea.MouseMsg:
		// Keyboard-only; swallow scroll so the terminal buffer stays put.

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width >= splitThreshold {
			// Widening resets the narrow-mode pane choice.
			m.viewMode = ViewList
		}
		m.updateChatViewport()

	case tea.FocusMsg:
		cmd = m.handleVisible()

	case tea.BlurMsg:
		cmd = m.handleHidden()

	case conversationsLoadedMsg:
		cmd = m.handleConversationsLoaded(msg)

	case messagesLoadedMsg:
		cmd = m.handleMessagesLoaded(msg)

	case messageSentMsg:
		cmd = m.handleMessageSent(msg)

	case messageDeletedMsg:
		cmd = m.handleMessageDeleted(msg)

	case conversationStartedMsg:
		cmd = m.handleConversationStarted(msg)

	case searchDebounceMsg:
		cmd = m.handleSearchDebounce(msg)

	case searchResultsMsg:
		cmd = m.handleSearchResults(msg)

	case dialResultMsg:
		cmd = m.handleDialResult(msg)

	case socketFrameMsg:
		cmd = m.handleSocketFrame(msg)

	case socketClosedMsg:
		cmd = m.applyPlan(m.transport.HandleClosed(msg.gen, msg.code))

	case reconnectTimerMsg:
		cmd = m.applyPlan(m.transport.HandleReconnectTimer(msg.gen))

	case refreshTickMsg:
		cmd = m.handleRefreshTick(msg)

	case pollTickMsg:
		cmd = m.handlePollTick(msg)

	case clearStatusMsg:
		m.statusMsg = ""

	case clearErrorMsg:
		m.errorMsg = ""
		m.fullErrorMsg = ""

	case errorMsg:
		cmd = m.setErrorMessage(string(msg))
	}

	return m, cmd
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.mode {
	case ModeHelp:
		return m.renderHelp()
	case ModeInspector:
		return m.renderInspector()
	case ModeArchive:
		return m.renderArchive()
	case ModeDeleteConfirm:
		return m.renderDeleteConfirm()
	case ModeStatusDetail:
		return m.renderStatusDetail()
	default:
		return m.renderMain()
	}
}

// Custom message types
type conversationsLoadedMsg struct {
	conversations []types.Conversation
	err           error
}

type messagesLoadedMsg struct {
	gen            uint64
	conversationID int64
	messages       []types.Message
	err            error
}

type messageSentMsg struct {
	message *types.Message
	err     error
}

type messageDeletedMsg struct {
	conversationID int64
	conversation   *types.Conversation
	err            error
}

type conversationStartedMsg struct {
	conversation *types.Conversation
	err          error
}

type searchDebounceMsg struct {
	gen uint64
}

type searchResultsMsg struct {
	gen     uint64
	results []types.User
	err     error
}

type dialResultMsg struct {
	gen  uint64
	conn *transport.Conn
	err  error
}

type socketFrameMsg struct {
	gen uint64
	raw []byte
}

type socketClosedMsg struct {
	gen  uint64
	code int
}

type reconnectTimerMsg struct {
	gen uint64
}

type refreshTickMsg struct {
	gen uint64
}

type pollTickMsg struct {
	gen uint64
}

type clearStatusMsg struct{}
type clearErrorMsg struct{}

type errorMsg string

// messageTimeout auto-clears footer notices.
const messageTimeout = 5 * time.Second

// Helper methods for setting messages with auto-clear
func (m *Model) setStatusMessage(msg string) tea.Cmd {
	m.fullStatusMsg = msg
	if len(msg) > 100 {
		m.statusMsg = msg[:97] + "..."
	} else {
		m.statusMsg = msg
	}
	return tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m *Model) setErrorMessage(msg string) tea.Cmd {
	m.fullErrorMsg = msg
	if len(msg) > 100 {
		m.errorMsg = msg[:97] + "..."
	} else {
		m.errorMsg = msg
	}
	return tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

// narrow reports whether only one pane fits.
func (m *Model) narrow() bool {
	return m.width < splitThreshold
}

// visibleConversations is the list as filtered by the current search term.
func (m *Model) visibleConversations() []types.Conversation {
	if m.mode == ModeSearch && m.searchQuery != "" {
		return m.coord.Conversations().Filter(m.searchQuery)
	}
	return m.coord.Conversations().All()
}

// recordFrame appends one raw frame to the inspector ring.
func (m *Model) recordFrame(raw []byte) {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	m.frames = append(m.frames, buf)
	if len(m.frames) > frameRingSize {
		m.frames = m.frames[len(m.frames)-frameRingSize:]
	}
}

// transportBadge is the header's connection indicator.
func (m *Model) transportBadge() string {
	if m.coord.Active() == 0 {
		return ""
	}
	switch m.transport.State() {
	case transport.StateConnected:
		return styleSuccess.Render("● live")
	case transport.StateConnecting:
		return styleWarning.Render("◌ connecting")
	case transport.StateReconnecting:
		return styleWarning.Render("◌ reconnecting")
	case transport.StatePollingOnly:
		return styleSubtle.Render("○ polling")
	default:
		return styleSubtle.Render("○ offline")
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func (m *Model) selectedMessage() *types.Message {
	active := m.coord.Active()
	if active == 0 {
		return nil
	}
	msgs, ok := m.coord.Messages().Cached(active)
	if !ok || len(msgs) == 0 {
		return nil
	}
	if m.msgIndex < 0 || m.msgIndex >= len(msgs) {
		return nil
	}
	msg := msgs[m.msgIndex]
	return &msg
}

func (m *Model) clampMsgIndex() {
	active := m.coord.Active()
	if active == 0 {
		m.msgIndex = 0
		return
	}
	msgs, _ := m.coord.Messages().Cached(active)
	if len(msgs) == 0 {
		m.msgIndex = 0
		return
	}
	if m.msgIndex >= len(msgs) {
		m.msgIndex = len(msgs) - 1
	}
	if m.msgIndex < 0 {
		m.msgIndex = 0
	}
}

func (m *Model) statusLabel() string {
	if m.errorMsg != "" {
		return styleError.Render(m.errorMsg)
	}
	if m.statusMsg != "" {
		return m.statusMsg
	}
	return ""
}

func conversationLabel(conv *types.Conversation) string {
	if conv == nil {
		return ""
	}
	label := conv.PartnerLabel()
	if conv.Partner != nil && conv.Partner.Handle != "" {
		label = fmt.Sprintf("%s (%s)", label, conv.Partner.Handle)
	}
	return label
}
