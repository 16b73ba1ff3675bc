package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/duochat/duochat/internal/types"
)

// handleKeyPress routes a key by mode.
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	switch m.mode {
	case ModeSearch:
		return m.handleSearchKeys(msg)
	case ModeHelp:
		return m.handleHelpKeys(msg)
	case ModeInspector:
		return m.handleInspectorKeys(msg)
	case ModeArchive:
		return m.handleArchiveKeys(msg)
	case ModeDeleteConfirm:
		return m.handleDeleteConfirmKeys(msg)
	case ModeStatusDetail:
		if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
			m.mode = ModeNormal
		}
		return nil
	default:
		if m.composing {
			return m.handleComposerKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}
}

func (m *Model) handleNormalKeys(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	// 'gg' jumps to the top of whichever pane is focused.
	if m.gPressed {
		m.gPressed = false
		if key == "g" {
			if m.focusedPanel == "chat" {
				m.msgIndex = 0
				m.updateChatViewport()
				m.chatView.GotoTop()
			} else {
				m.listIndex = 0
				m.listOffset = 0
			}
			return nil
		}
	}

	switch key {
	case "q":
		return tea.Quit

	case "?":
		m.mode = ModeHelp
		return nil

	case "/":
		m.mode = ModeSearch
		m.searchQuery = ""
		m.searchResults = nil
		m.searchOverlay = false
		return nil

	case "I":
		m.mode = ModeInspector
		m.frameIndex = len(m.frames) - 1
		if m.frameIndex < 0 {
			m.frameIndex = 0
		}
		m.inspectorEdit = false
		m.refreshInspector()
		return nil

	case "A":
		return m.openArchive()

	case "S":
		if m.fullErrorMsg != "" || m.fullStatusMsg != "" {
			m.mode = ModeStatusDetail
		}
		return nil

	case "tab":
		if m.focusedPanel == "list" && m.coord.Active() != 0 {
			m.focusedPanel = "chat"
		} else {
			m.focusedPanel = "list"
		}
		return nil

	case "g":
		m.gPressed = true
		return nil

	case "G":
		if m.focusedPanel == "chat" {
			m.clampMsgIndex()
			active := m.coord.Active()
			if msgs, _ := m.coord.Messages().Cached(active); len(msgs) > 0 {
				m.msgIndex = len(msgs) - 1
			}
			m.updateChatViewport()
			m.chatView.GotoBottom()
		}
		return nil
	}

	if m.focusedPanel == "chat" {
		return m.handleChatBrowseKeys(msg)
	}
	return m.handleListKeys(msg)
}

func (m *Model) handleListKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		m.navigateList(1)
	case "k", "up":
		m.navigateList(-1)
	case "enter", "l":
		convs := m.coord.Conversations().All()
		if m.listIndex >= 0 && m.listIndex < len(convs) {
			return m.selectConversation(convs[m.listIndex].ID)
		}
	}
	return nil
}

func (m *Model) handleChatBrowseKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "h":
		m.focusedPanel = "list"
		if m.narrow() {
			m.viewMode = ViewList
		}
	case "j", "down":
		m.moveMessageSelection(1)
	case "k", "up":
		m.moveMessageSelection(-1)
	case "ctrl+d", "pgdown":
		m.chatView.HalfViewDown()
	case "ctrl+u", "pgup":
		m.chatView.HalfViewUp()
	case "i", "enter":
		if m.coord.Active() != 0 && !m.gone {
			m.composing = true
		}
	case "y":
		return m.yankSelected()
	case "d":
		return m.beginDelete()
	}
	return nil
}

func (m *Model) handleComposerKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.composing = false
		return nil
	case "enter":
		return m.submitSend()
	case "backspace":
		if m.inputCursor > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:m.inputCursor-1]) + string(runes[m.inputCursor:])
			m.inputCursor--
		}
		return nil
	case "left":
		if m.inputCursor > 0 {
			m.inputCursor--
		}
		return nil
	case "right":
		if m.inputCursor < len([]rune(m.input)) {
			m.inputCursor++
		}
		return nil
	case "ctrl+a", "home":
		m.inputCursor = 0
		return nil
	case "ctrl+e", "end":
		m.inputCursor = len([]rune(m.input))
		return nil
	}

	if msg.Type == tea.KeyRunes || msg.String() == " " {
		runes := []rune(m.input)
		insert := msg.Runes
		if msg.String() == " " {
			insert = []rune{' '}
		}
		m.input = string(runes[:m.inputCursor]) + string(insert) + string(runes[m.inputCursor:])
		m.inputCursor += len(insert)
	}
	return nil
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.exitSearch()
		return nil

	case "enter":
		// Overlay selection wins; otherwise start by the typed handle.
		if m.searchOverlay && m.searchIndex < len(m.searchResults) {
			handle := strings.TrimPrefix(m.searchResults[m.searchIndex].Handle, "@")
			return m.startConversation(handle)
		}
		term := strings.TrimSpace(m.searchQuery)
		if term == "" {
			m.exitSearch()
			return nil
		}
		return m.startConversation(strings.TrimPrefix(term, "@"))

	case "ctrl+n", "down":
		if m.searchOverlay && m.searchIndex < len(m.searchResults)-1 {
			m.searchIndex++
		}
		return nil

	case "ctrl+p", "up":
		if m.searchOverlay && m.searchIndex > 0 {
			m.searchIndex--
		}
		return nil

	case "backspace":
		if len(m.searchQuery) > 0 {
			runes := []rune(m.searchQuery)
			m.searchQuery = string(runes[:len(runes)-1])
		}
		return m.queueSearchLookup()
	}

	if msg.Type == tea.KeyRunes || msg.String() == " " {
		if msg.String() == " " {
			m.searchQuery += " "
		} else {
			m.searchQuery += string(msg.Runes)
		}
		return m.queueSearchLookup()
	}
	return nil
}

// queueSearchLookup retags the debounce window after every edit. The list
// filter itself is synchronous and needs no command.
func (m *Model) queueSearchLookup() tea.Cmd {
	m.searchGen++
	m.searchOverlay = false
	m.searchResults = nil
	if strings.TrimSpace(m.searchQuery) == "" {
		return nil
	}
	return m.searchDebounce(m.searchGen)
}

func (m *Model) handleHelpKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q", "?":
		m.mode = ModeNormal
	}
	return nil
}

func (m *Model) handleInspectorKeys(msg tea.KeyMsg) tea.Cmd {
	if m.inspectorEdit {
		switch msg.String() {
		case "esc":
			m.inspectorEdit = false
		case "enter":
			m.inspectorEdit = false
			m.refreshInspector()
		case "backspace":
			if len(m.inspectorQuery) > 0 {
				runes := []rune(m.inspectorQuery)
				m.inspectorQuery = string(runes[:len(runes)-1])
			}
		default:
			if msg.Type == tea.KeyRunes {
				m.inspectorQuery += string(msg.Runes)
			} else if msg.String() == " " {
				m.inspectorQuery += " "
			}
		}
		return nil
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = ModeNormal
	case "j", "down":
		if m.frameIndex < len(m.frames)-1 {
			m.frameIndex++
			m.refreshInspector()
		}
	case "k", "up":
		if m.frameIndex > 0 {
			m.frameIndex--
			m.refreshInspector()
		}
	case "/", "e":
		m.inspectorEdit = true
	case "x":
		m.inspectorQuery = ""
		m.refreshInspector()
	}
	return nil
}

func (m *Model) handleArchiveKeys(msg tea.KeyMsg) tea.Cmd {
	if m.archiveSearch {
		switch msg.String() {
		case "esc":
			m.archiveSearch = false
			m.archiveQuery = ""
			return m.openArchive()
		case "enter":
			m.archiveSearch = false
			return m.runArchiveSearch()
		case "backspace":
			if len(m.archiveQuery) > 0 {
				runes := []rune(m.archiveQuery)
				m.archiveQuery = string(runes[:len(runes)-1])
			}
		default:
			if msg.Type == tea.KeyRunes {
				m.archiveQuery += string(msg.Runes)
			} else if msg.String() == " " {
				m.archiveQuery += " "
			}
		}
		return nil
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = ModeNormal
	case "j", "down":
		if m.archiveIndex < len(m.archiveEntries)-1 {
			m.archiveIndex++
		}
	case "k", "up":
		if m.archiveIndex > 0 {
			m.archiveIndex--
		}
	case "/":
		m.archiveSearch = true
		m.archiveQuery = ""
	case "x":
		return m.clearArchive()
	}
	return nil
}

func (m *Model) handleDeleteConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	target := m.deleteTarget
	switch msg.String() {
	case "esc", "q", "n":
		m.mode = ModeNormal
		m.deleteTarget = nil
	case "s":
		if target != nil && target.CanDeleteForSelf {
			m.mode = ModeNormal
			m.deleteTarget = nil
			return m.deleteMessage(target.ID, target.ConversationID, types.DeleteForSelf)
		}
	case "a":
		if target != nil && target.CanDeleteForAll {
			m.mode = ModeNormal
			m.deleteTarget = nil
			return m.deleteMessage(target.ID, target.ConversationID, types.DeleteForAll)
		}
	}
	return nil
}

// beginDelete opens the confirmation modal for the selected message.
func (m *Model) beginDelete() tea.Cmd {
	msg := m.selectedMessage()
	if msg == nil {
		return nil
	}
	if msg.IsDeletedForAll {
		return m.setStatusMessage("Message is already deleted")
	}
	if !msg.CanDeleteForSelf && !msg.CanDeleteForAll {
		return m.setStatusMessage("This message cannot be deleted")
	}
	m.deleteTarget = msg
	m.mode = ModeDeleteConfirm
	return nil
}

// navigateList moves the conversation selection up or down, wrapping.
func (m *Model) navigateList(delta int) {
	convs := m.coord.Conversations().All()
	if len(convs) == 0 {
		return
	}

	m.listIndex += delta
	if m.listIndex < 0 {
		m.listIndex = len(convs) - 1
	} else if m.listIndex >= len(convs) {
		m.listIndex = 0
	}

	pageSize := m.listPageSize()
	if m.listIndex < m.listOffset {
		m.listOffset = m.listIndex
	} else if m.listIndex >= m.listOffset+pageSize {
		m.listOffset = m.listIndex - pageSize + 1
	}
}

func (m *Model) moveMessageSelection(delta int) {
	active := m.coord.Active()
	if active == 0 {
		return
	}
	msgs, _ := m.coord.Messages().Cached(active)
	if len(msgs) == 0 {
		return
	}

	m.msgIndex += delta
	if m.msgIndex < 0 {
		m.msgIndex = 0
	}
	if m.msgIndex >= len(msgs) {
		m.msgIndex = len(msgs) - 1
	}
	m.updateChatViewport()
	m.scrollToSelection(len(msgs))
}

// scrollToSelection keeps the selected message inside the viewport.
func (m *Model) scrollToSelection(total int) {
	if total == 0 {
		return
	}
	// Messages render two lines each (header + body); approximate.
	line := m.msgIndex * 2
	if line < m.chatView.YOffset {
		m.chatView.SetYOffset(line)
	} else if line >= m.chatView.YOffset+m.chatView.Height {
		m.chatView.SetYOffset(line - m.chatView.Height + 2)
	}
}

func (m *Model) listPageSize() int {
	size := m.height - 6
	if size < 1 {
		size = 1
	}
	return size
}

// deleteScopeHint describes the keys available for the pending deletion.
func deleteScopeHint(msg *types.Message) string {
	if msg == nil {
		return ""
	}
	var opts []string
	if msg.CanDeleteForSelf {
		opts = append(opts, "[s] delete for me")
	}
	if msg.CanDeleteForAll {
		opts = append(opts, "[a] delete for everyone")
	}
	opts = append(opts, "[esc] cancel")
	return strings.Join(opts, "   ")
}
