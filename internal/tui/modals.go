package tui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/duochat/duochat/internal/filter"
)

func (m Model) renderModalFrame(title, content string) string {
	width := m.width - 8
	if width < 30 {
		width = m.width - 2
	}
	height := m.height - 6

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Width(width).
		Height(height).
		Padding(0, 1).
		Render(styleTitle.Render(title) + "\n\n" + content)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderHelp() string {
	help := strings.Join([]string{
		styleTitle.Render("Navigation"),
		"  j/k, up/down   move selection",
		"  enter / l      open conversation",
		"  tab            switch pane focus",
		"  esc / h        back to the list",
		"  gg / G         jump to top / bottom",
		"",
		styleTitle.Render("Messaging"),
		"  i or enter     compose (esc to stop)",
		"  enter          send the typed message",
		"  y              copy the selected message",
		"  d              delete the selected message",
		"",
		styleTitle.Render("Search"),
		"  /              filter conversations / find users",
		"  enter          start a chat with the typed handle",
		"",
		styleTitle.Render("Tools"),
		"  I              realtime frame inspector",
		"  A              local message archive",
		"  S              full status / error detail",
		"  ?              this help",
		"  q, ctrl+c      quit",
	}, "\n")

	return m.renderModalFrame("duochat help", help)
}

func (m Model) renderInspector() string {
	if len(m.frames) == 0 {
		return m.renderModalFrame("Frame inspector", styleSubtle.Render("No realtime frames captured yet."))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Frame %d of %d (j/k to move)\n", m.frameIndex+1, len(m.frames))

	query := m.inspectorQuery
	if m.inspectorEdit {
		b.WriteString("Query: " + query + "█\n\n")
	} else if query != "" {
		b.WriteString("Query: " + query + styleSubtle.Render("   (/ edit, x clear)") + "\n\n")
	} else {
		b.WriteString(styleSubtle.Render("Press / to enter a JMESPath query.") + "\n\n")
	}

	if m.inspectorErr != "" {
		b.WriteString(styleError.Render(m.inspectorErr))
	} else {
		b.WriteString(m.inspectorOut)
	}

	return m.renderModalFrame("Frame inspector", b.String())
}

// refreshInspector re-evaluates the query against the selected frame and
// re-highlights the output.
func (m *Model) refreshInspector() {
	m.inspectorOut = ""
	m.inspectorErr = ""

	if m.frameIndex < 0 || m.frameIndex >= len(m.frames) {
		return
	}

	result, err := filter.Apply(string(m.frames[m.frameIndex]), m.inspectorQuery)
	if err != nil {
		m.inspectorErr = err.Error()
		return
	}

	m.inspectorOut = highlightJSON(result)
}

// highlightJSON renders JSON with terminal colors; plain text on failure.
func highlightJSON(src string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, src, "json", "terminal256", "monokai"); err != nil {
		return src
	}
	return buf.String()
}

func (m Model) renderArchive() string {
	var b strings.Builder

	if m.archiveSearch {
		b.WriteString("Search: " + m.archiveQuery + "█\n\n")
	} else {
		b.WriteString(styleSubtle.Render("j/k: move   /: search   x: clear all   esc: close") + "\n\n")
	}

	if len(m.archiveEntries) == 0 {
		b.WriteString(styleSubtle.Render("Nothing archived yet."))
		return m.renderModalFrame("Message archive", b.String())
	}

	b.WriteString(styleSubtle.Render(fmt.Sprintf("%d messages archived across all conversations", m.archiveTotal)) + "\n\n")

	pageSize := m.height - 12
	if pageSize < 1 {
		pageSize = 1
	}
	offset := 0
	if m.archiveIndex >= pageSize {
		offset = m.archiveIndex - pageSize + 1
	}
	end := offset + pageSize
	if end > len(m.archiveEntries) {
		end = len(m.archiveEntries)
	}

	for i := offset; i < end; i++ {
		e := m.archiveEntries[i]
		author := e.Author
		if e.IsSelf {
			author = "you"
		}
		row := fmt.Sprintf("%s  %s  %s",
			formatTimestamp(e.CreatedAt), author, truncate(e.Text, m.width-40))
		if i == m.archiveIndex {
			row = styleSelected.Render(row)
		}
		b.WriteString(row + "\n")
	}

	return m.renderModalFrame("Message archive", b.String())
}

func (m Model) renderDeleteConfirm() string {
	target := m.deleteTarget
	if target == nil {
		return m.renderMain()
	}

	var b strings.Builder
	b.WriteString("Delete this message?\n\n")
	b.WriteString("  " + styleSubtle.Render(truncate(target.Body(), m.width-20)) + "\n\n")
	b.WriteString(deleteScopeHint(target))

	return m.renderModalFrame("Confirm deletion", b.String())
}

func (m Model) renderStatusDetail() string {
	var b strings.Builder
	if m.fullErrorMsg != "" {
		b.WriteString(styleError.Render("Error") + "\n\n")
		b.WriteString(m.fullErrorMsg + "\n\n")
	}
	if m.fullStatusMsg != "" {
		b.WriteString(styleTitle.Render("Status") + "\n\n")
		b.WriteString(m.fullStatusMsg + "\n")
	}
	if b.Len() == 0 {
		b.WriteString(styleSubtle.Render("Nothing to show."))
	}
	return m.renderModalFrame("Details", b.String())
}
