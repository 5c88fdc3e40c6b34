package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides selected default bindings. Blank fields keep the default.
type KeyConfig struct {
	GrabCard   string
	GrabColumn string
	Yank       string
	Boards     string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveLeft     key.Binding
	moveRight    key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	grabCard     key.Binding
	grabColumn   key.Binding
	drop         key.Binding
	cancelDrag   key.Binding
	addCard      key.Binding
	cardInfo     key.Binding
	editCard     key.Binding
	editDetails  key.Binding
	deleteCard   key.Binding
	addColumn    key.Binding
	renameColumn key.Binding
	deleteColumn key.Binding
	newBoard     key.Binding
	boards       key.Binding
	yank         key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		grabCard:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "grab card")),
		grabColumn:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "grab column")),
		drop:         key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space/enter", "drop")),
		cancelDrag:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel move")),
		addCard:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new card")),
		cardInfo:     key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "card info")),
		editCard:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit title")),
		editDetails:  key.NewBinding(key.WithKeys("E", "shift+e"), key.WithHelp("E", "edit description")),
		deleteCard:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete card")),
		addColumn:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "new column")),
		renameColumn: key.NewBinding(key.WithKeys("C", "shift+c"), key.WithHelp("C", "rename column")),
		deleteColumn: key.NewBinding(key.WithKeys("X", "shift+x"), key.WithHelp("X", "delete column")),
		newBoard:     key.NewBinding(key.WithKeys("N", "shift+n"), key.WithHelp("N", "new board")),
		boards:       key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "board picker")),
		yank:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card")),
	}
}

// applyConfig applies configured overrides.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.grabCard, cfg.GrabCard, "space", "grab card")
	configureBinding(&k.grabColumn, cfg.GrabColumn, "m", "grab column")
	configureBinding(&k.yank, cfg.Yank, "y", "copy card")
	configureBinding(&k.boards, cfg.Boards, "b", "board picker")
}

// configureBinding replaces a binding's keys and help text.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns a configured key into matcher keys and help text.
// Uppercase runes also match their shift+ form; "space" matches both spellings.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if raw == "space" || raw == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grabCard, k.addCard, k.cardInfo, k.editCard, k.boards, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addCard, k.cardInfo, k.editCard, k.editDetails, k.deleteCard, k.yank},
		{k.addColumn, k.renameColumn, k.deleteColumn, k.newBoard, k.boards, k.reload},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.grabCard, k.grabColumn, k.drop, k.cancelDrag, k.toggleHelp, k.quit},
	}
}

// dragHelp lists the bindings active while a move is in progress.
func (k keyMap) dragHelp() []key.Binding {
	return []key.Binding{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.drop, k.cancelDrag}
}
