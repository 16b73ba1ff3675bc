package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/duochat/duochat/internal/types"
)

// Adaptive color definitions for light/dark terminal support
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}
)

// Style definitions
var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleSelected = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#d3d3d3", Dark: "#3a3a3a"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)

	styleSelf = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	stylePartner = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)
)

// renderMain renders the conversation list beside (or instead of) the chat.
func (m Model) renderMain() string {
	if m.width == 0 {
		return ""
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - 2

	var body string
	if m.narrow() {
		if m.viewMode == ViewChat && m.coord.Active() != 0 {
			body = m.renderChatPane(m.width-4, bodyHeight)
		} else {
			body = m.renderListPane(m.width-4, bodyHeight)
		}
		body = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGreen).
			Width(m.width - 2).
			Height(bodyHeight).
			Render(body)
	} else {
		listWidth := m.width * 35 / 100
		if listWidth < 30 {
			listWidth = 30
		}
		chatWidth := m.width - listWidth - 4

		listBorder := colorGray
		chatBorder := colorGray
		if m.focusedPanel == "list" {
			listBorder = colorGreen
		} else {
			chatBorder = colorGreen
		}

		listBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(listBorder).
			Width(listWidth).
			Height(bodyHeight).
			Render(m.renderListPane(listWidth-2, bodyHeight))

		chatBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(chatBorder).
			Width(chatWidth).
			Height(bodyHeight).
			Render(m.renderChatPane(chatWidth-2, bodyHeight))

		body = lipgloss.JoinHorizontal(lipgloss.Top, listBox, chatBox)
	}

	sections := []string{header, body, footer}
	if m.mode == ModeSearch && m.searchOverlay {
		sections = []string{header, m.renderSearchOverlay(body), footer}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := styleTitle.Render("duochat")

	var active string
	if conv, ok := m.coord.Conversations().Get(m.coord.Active()); ok {
		active = conversationLabel(&conv)
	}

	badge := m.transportBadge()

	left := title
	if active != "" {
		left = fmt.Sprintf("%s  %s", title, active)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(badge) - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + badge
}

func (m Model) renderFooter() string {
	if m.mode == ModeSearch {
		prompt := fmt.Sprintf("/%s█", m.searchQuery)
		hint := styleSubtle.Render("  enter: start chat   esc: cancel")
		if m.searchPending {
			hint = styleSubtle.Render("  searching...")
		}
		return prompt + hint
	}

	if m.composing {
		return m.renderComposer()
	}

	if status := m.statusLabel(); status != "" {
		return status
	}

	if m.focusedPanel == "chat" {
		return styleSubtle.Render("i: write   j/k: select   y: copy   d: delete   esc: back   ?: help")
	}
	return styleSubtle.Render("j/k: move   enter: open   /: search   ?: help   q: quit")
}

func (m Model) renderComposer() string {
	runes := []rune(m.input)
	cursor := m.inputCursor
	if cursor > len(runes) {
		cursor = len(runes)
	}
	line := string(runes[:cursor]) + "█" + string(runes[cursor:])
	label := "> "
	if m.coord.Sending() {
		label = styleSubtle.Render("sending… ")
	}
	return label + line
}

// renderListPane renders the conversation list.
func (m Model) renderListPane(width, height int) string {
	var lines []string
	lines = append(lines, styleTitle.Render("Conversations"))
	lines = append(lines, "")

	convs := m.visibleConversations()
	if len(convs) == 0 {
		if m.mode == ModeSearch && m.searchQuery != "" {
			lines = append(lines, styleSubtle.Render("No matches."))
			lines = append(lines, styleSubtle.Render("Press enter to start a chat with "+m.searchQuery+"."))
		} else if !m.coord.Loaded() {
			lines = append(lines, styleSubtle.Render("Loading conversations..."))
		} else {
			lines = append(lines, styleSubtle.Render("No conversations yet."))
			lines = append(lines, styleSubtle.Render("Press / and type a handle to start one."))
		}
		return strings.Join(lines, "\n")
	}

	pageSize := height - 3
	if pageSize < 1 {
		pageSize = 1
	}
	offset := m.listOffset
	if offset > len(convs)-1 {
		offset = 0
	}
	end := offset + pageSize
	if end > len(convs) {
		end = len(convs)
	}

	for i := offset; i < end; i++ {
		lines = append(lines, m.renderListRow(convs[i], width, i == m.listIndex))
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderListRow(conv types.Conversation, width int, selected bool) string {
	name := conv.PartnerLabel()
	when := formatTimestamp(conv.LastMessageTime())

	nameWidth := width - len(when) - 3
	if nameWidth < 8 {
		nameWidth = 8
	}
	top := fmt.Sprintf("%-*s %s", nameWidth, truncate(name, nameWidth), when)

	preview := conv.LastMessage
	if preview == "" {
		preview = "No messages yet"
	}
	bottom := "  " + truncate(preview, width-2)

	row := top + "\n" + styleSubtle.Render(bottom)
	if selected {
		return styleSelected.Render(top) + "\n" + styleSubtle.Render(bottom)
	}
	if conv.ID == m.coord.Active() {
		return stylePartner.Render(top) + "\n" + styleSubtle.Render(bottom)
	}
	return row
}

// renderChatPane renders the message viewport for the active conversation.
func (m Model) renderChatPane(width, height int) string {
	active := m.coord.Active()
	if active == 0 {
		return styleSubtle.Render("\n  Select a conversation to start chatting.")
	}
	if m.gone {
		return styleSubtle.Render("\n  This conversation is no longer available.")
	}
	if m.loadingMsgs {
		return styleSubtle.Render("\n  Loading messages...")
	}
	if m.loadFailed != "" {
		return styleError.Render("\n  " + m.loadFailed)
	}

	msgs, _ := m.coord.Messages().Cached(active)
	if len(msgs) == 0 {
		return styleSubtle.Render("\n  No messages yet. Say hello.")
	}

	return m.chatView.View()
}

// chatContent formats every message for the viewport.
func (m *Model) chatContent(width int) string {
	active := m.coord.Active()
	msgs, _ := m.coord.Messages().Cached(active)

	var b strings.Builder
	for i, msg := range msgs {
		author := msg.AuthorName()
		if msg.IsSelf {
			author = "you"
		}
		when := formatTimestamp(msg.CreatedAt)

		header := fmt.Sprintf("%s  %s", author, styleSubtle.Render(when))
		if msg.IsSelf {
			header = fmt.Sprintf("%s  %s", styleSelf.Render(author), styleSubtle.Render(when))
		} else {
			header = fmt.Sprintf("%s  %s", stylePartner.Render(author), styleSubtle.Render(when))
		}

		body := truncate(msg.Body(), width-4)
		if msg.IsDeletedForAll {
			body = styleSubtle.Italic(true).Render(body)
		}

		line := header + "\n  " + body
		if i == m.msgIndex && m.focusedPanel == "chat" && !m.composing {
			line = "▌" + line
		} else {
			line = " " + line
		}
		b.WriteString(line)
		if i < len(msgs)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// updateChatViewport resizes and refills the message viewport.
func (m *Model) updateChatViewport() {
	width := m.width
	if !m.narrow() {
		width = m.width - m.width*35/100 - 6
	}
	height := m.height - 6
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	m.chatView.Width = width
	m.chatView.Height = height
	m.chatView.SetContent(m.chatContent(width))
}

// renderSearchOverlay draws the remote user results over the body.
func (m Model) renderSearchOverlay(body string) string {
	var lines []string
	lines = append(lines, styleTitle.Render("Users"))
	for i, u := range m.searchResults {
		row := fmt.Sprintf("%s  %s", u.Name, styleSubtle.Render(u.Handle))
		if i == m.searchIndex {
			row = styleSelected.Render(fmt.Sprintf("%s  %s", u.Name, u.Handle))
		}
		lines = append(lines, row)
	}
	lines = append(lines, "")
	lines = append(lines, styleSubtle.Render("enter: start chat   esc: dismiss"))

	overlay := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, lipgloss.Height(body), lipgloss.Center, lipgloss.Center, overlay)
}
