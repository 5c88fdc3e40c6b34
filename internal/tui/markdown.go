package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const minMarkdownWidth = 24

// markdownRenderer renders card descriptions, rebuilding the glamour renderer
// only when the wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	width = max(width, minMarkdownWidth)
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return markdown
		}
		r.renderer, r.width = renderer, width
	}
	out, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
