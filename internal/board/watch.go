package board

// Watch returns a channel signalled after any change to the board.
// Signals coalesce: a slow reader observes at most one pending notification.
// The returned func unsubscribes and closes the channel.
func (m *Model) Watch(boardID string) (<-chan struct{}, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	id := m.nextWID
	m.nextWID++
	if m.watchers[boardID] == nil {
		m.watchers[boardID] = map[int]chan struct{}{}
	}
	m.watchers[boardID][id] = ch

	stopped := false
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if stopped {
			return
		}
		stopped = true
		delete(m.watchers[boardID], id)
		if len(m.watchers[boardID]) == 0 {
			delete(m.watchers, boardID)
		}
		close(ch)
	}
}

// notifyLocked signals watchers without blocking.
func (m *Model) notifyLocked(boardID string) {
	for _, ch := range m.watchers[boardID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
