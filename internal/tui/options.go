package tui

type Option func(*Model)

// WithInitialBoard opens the given board instead of the first listed one.
func WithInitialBoard(boardID string) Option {
	return func(m *Model) {
		m.boardID = boardID
	}
}

// WithClipboard replaces the system clipboard writer used by the yank action.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

func WithEventLimit(limit int) Option {
	return func(m *Model) {
		if limit > 0 {
			m.eventLimit = limit
		}
	}
}
