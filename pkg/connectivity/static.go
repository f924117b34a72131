package connectivity

import "sync"

// StaticMonitor is a Monitor whose state is flipped by hand. It backs tests
// and deployments that have no meaningful probe target.
type StaticMonitor struct {
	mu          sync.Mutex
	online      bool
	subscribers []func(bool)
}

// NewStaticMonitor creates a monitor fixed at the given initial state.
func NewStaticMonitor(online bool) *StaticMonitor {
	return &StaticMonitor{online: online}
}

func (m *StaticMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *StaticMonitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// SetOnline flips the state and notifies subscribers on a change.
func (m *StaticMonitor) SetOnline(online bool) {
	m.mu.Lock()
	flipped := online != m.online
	m.online = online
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	if !flipped {
		return
	}
	for _, fn := range subscribers {
		fn(online)
	}
}
