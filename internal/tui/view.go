package tui

import (
	"fmt"
	"slices"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/drag"
)

const (
	boardTop       = 2
	laneHeaderRows = 2
	footerRows     = 2
	minColumnWidth = 16
	maxColumnWidth = 36
)

var (
	accentColor = lipgloss.Color("62")
	mutedColor  = lipgloss.Color("241")
	ghostColor  = lipgloss.Color("214")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(accentColor)
	ghostStyle    = lipgloss.NewStyle().Italic(true).Foreground(ghostColor)
	headerStyle   = lipgloss.NewStyle().Bold(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(0, 1)
)

// View renders the current state.
func (m Model) View() tea.View {
	v := tea.NewView(m.content())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	return v
}

// content returns the screen text for the current state.
func (m Model) content() string {
	switch {
	case m.err != nil:
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.loaded:
		return "loading..."
	default:
		return m.renderScreen()
	}
}

// renderScreen renders header, body, and footer.
func (m Model) renderScreen() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	switch m.mode {
	case modeBoardPicker:
		b.WriteString(m.renderBoardPicker())
	case modeCardInfo:
		b.WriteString(m.renderCardInfo())
	default:
		if m.boardID == "" {
			b.WriteString(mutedStyle.Render("no board open"))
		} else {
			b.WriteString(m.renderBoard())
		}
	}
	b.WriteString("\n")

	if prompt := m.renderPrompt(); prompt != "" {
		b.WriteString(prompt)
		b.WriteString("\n")
	}
	if m.drag.State() == drag.StateDragging {
		b.WriteString(m.help.ShortHelpView(m.keys.dragHelp()))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) renderHeader() string {
	title := "tavla"
	if m.board.ID != "" {
		title += " › " + m.board.Title
	}
	return titleStyle.Render(title)
}

// renderStatus shows the status message and the most recent change.
func (m Model) renderStatus() string {
	line := m.status
	if m.width > 0 {
		line = truncate(line, m.width)
	}
	if len(m.events) > 0 {
		line += mutedStyle.Render("  · " + describeEvent(m.events[0]))
	}
	return line
}

func (m Model) renderPrompt() string {
	switch m.mode {
	case modeAddCard, modeEditCardTitle, modeEditCardDescription, modeAddColumn, modeRenameColumn, modeNewBoard:
		return m.input.View()
	}
	return ""
}

// renderBoard renders lanes in preview order while a move is in progress.
func (m Model) renderBoard() string {
	width := m.columnWidth()
	lanes := m.lanes
	preview, dragging := m.drag.Preview()
	ghostID := ""
	if dragging {
		lanes = arrangePreview(lanes, preview)
		ghostID = preview.ItemID
	}
	selectedCol, _ := m.selectedColumnValue()
	selectedCard, _ := m.selectedCardValue()

	if len(lanes) == 0 {
		return mutedStyle.Render("no columns, press " + m.keys.addColumn.Help().Key + " to add one")
	}
	views := make([]string, 0, len(lanes))
	for _, l := range lanes {
		views = append(views, renderLane(l, width, selectedCol.ID, selectedCard.ID, ghostID))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderLane renders one column: title row, rule row, one row per card.
func renderLane(l lane, width int, selectedColumnID, selectedCardID, ghostID string) string {
	inner := max(1, width-1)
	header := truncate(fmt.Sprintf("%s (%d)", l.column.Title, len(l.cards)), inner)
	switch l.column.ID {
	case ghostID:
		header = ghostStyle.Render(header)
	case selectedColumnID:
		header = titleStyle.Render(header)
	default:
		header = headerStyle.Render(header)
	}
	lines := []string{header, mutedStyle.Render(strings.Repeat("─", inner))}
	for _, card := range l.cards {
		switch card.ID {
		case ghostID:
			lines = append(lines, ghostStyle.Render(truncate("▸ "+card.Title, inner)))
		case selectedCardID:
			lines = append(lines, selectedStyle.Render(truncate("› "+card.Title, inner)))
		default:
			lines = append(lines, truncate("  "+card.Title, inner))
		}
	}
	if len(l.cards) == 0 {
		lines = append(lines, mutedStyle.Render(truncate("  empty", inner)))
	}
	return lipgloss.NewStyle().Width(width).PaddingRight(1).Render(strings.Join(lines, "\n"))
}

// arrangePreview returns a copy of lanes with the dragged item moved to the preview target.
func arrangePreview(lanes []lane, p drag.Preview) []lane {
	out := make([]lane, len(lanes))
	for i, l := range lanes {
		out[i] = lane{column: l.column, cards: slices.Clone(l.cards)}
	}
	switch p.Kind {
	case domain.ItemKindColumn:
		from := slices.IndexFunc(out, func(l lane) bool { return l.column.ID == p.ItemID })
		if from < 0 {
			return out
		}
		moved := out[from]
		out = slices.Delete(out, from, from+1)
		return slices.Insert(out, clamp(p.Target.Index, 0, len(out)), moved)
	case domain.ItemKindCard:
		var moved domain.Card
		found := false
		for i := range out {
			if j := slices.IndexFunc(out[i].cards, func(c domain.Card) bool { return c.ID == p.ItemID }); j >= 0 {
				moved = out[i].cards[j]
				out[i].cards = slices.Delete(out[i].cards, j, j+1)
				found = true
				break
			}
		}
		if !found {
			return out
		}
		for i := range out {
			if out[i].column.ID == p.Target.ContainerID {
				out[i].cards = slices.Insert(out[i].cards, clamp(p.Target.Index, 0, len(out[i].cards)), moved)
				break
			}
		}
	}
	return out
}

func (m Model) renderBoardPicker() string {
	lines := []string{headerStyle.Render("boards")}
	for i, b := range m.boards {
		line := "  " + b.Title
		if i == m.pickerIndex {
			line = selectedStyle.Render("› " + b.Title)
		}
		lines = append(lines, line)
	}
	lines = append(lines, mutedStyle.Render("enter open • esc close"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderCardInfo renders the selected card with its markdown description and recent activity.
func (m Model) renderCardInfo() string {
	card, ok := m.selectedCardValue()
	if !ok {
		return mutedStyle.Render("no card selected")
	}
	width := m.width - 4
	if width <= 0 {
		width = 76
	}
	lines := []string{
		titleStyle.Render(card.Title),
		mutedStyle.Render(fmt.Sprintf("%s · %s · rev %d · updated %s", card.ID, m.columnTitle(card.ColumnID), card.Revision, card.UpdatedAt.Local().Format("2006-01-02 15:04"))),
		"",
	}
	if desc := m.md.render(card.Description, width); desc != "" {
		lines = append(lines, desc)
	} else {
		lines = append(lines, mutedStyle.Render("no description"))
	}
	var activity []string
	for _, ev := range m.events {
		if ev.ItemID == card.ID {
			activity = append(activity, "  "+describeEvent(ev))
		}
	}
	if len(activity) > 0 {
		lines = append(lines, "", headerStyle.Render("activity"))
		lines = append(lines, activity...)
	}
	lines = append(lines, "", mutedStyle.Render("E edit description • y copy • esc close"))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// describeEvent summarizes a ledger entry.
func describeEvent(ev domain.ChangeEvent) string {
	out := fmt.Sprintf("rev %d %s %s %s", ev.ID, ev.Operation, ev.ItemKind, ev.ItemID)
	if title := ev.Metadata["title"]; title != "" {
		out += " " + fmt.Sprintf("%q", title)
	}
	return out
}

// columnWidth splits the terminal width across lanes within fixed bounds.
func (m Model) columnWidth() int {
	n := max(1, len(m.lanes))
	w := m.width
	if w <= 0 {
		w = 100
	}
	return clamp(w/n, minColumnWidth, maxColumnWidth)
}

// laneHeight is the hit-test height of a lane: the board area, or the tallest lane plus a drop row.
func (m Model) laneHeight() int {
	tallest := 0
	for _, l := range m.lanes {
		tallest = max(tallest, len(l.cards))
	}
	h := laneHeaderRows + tallest + 1
	if m.height > 0 {
		h = max(h, m.height-boardTop-footerRows)
	}
	return h
}

// truncate shortens s to width runes with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
