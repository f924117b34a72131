package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor exposes the current online/offline state and notifies subscribers
// whenever reachability flips. It is a pass-through signal source: no retry
// logic of its own.
type Monitor interface {
	IsOnline() bool
	// Subscribe registers a callback invoked on every state flip. Callbacks
	// are invoked from the monitor's goroutine and must not block.
	Subscribe(fn func(online bool))
}

// ProbeMonitor determines reachability by issuing a lightweight HEAD request
// against a probe URL on a fixed interval. The initial state is resolved
// synchronously in Start so dependents never observe an undefined state.
type ProbeMonitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client

	mu          sync.Mutex
	online      bool
	subscribers []func(bool)

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewProbeMonitor creates a monitor polling probeURL every interval.
func NewProbeMonitor(probeURL string, interval time.Duration) *ProbeMonitor {
	return &ProbeMonitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		stopChan: make(chan struct{}),
	}
}

// Start resolves the initial state and begins polling.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.online = m.probe(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runLoop(ctx)
}

// Stop terminates the polling goroutine.
func (m *ProbeMonitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *ProbeMonitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *ProbeMonitor) runLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.update(m.probe(ctx))
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *ProbeMonitor) update(online bool) {
	m.mu.Lock()
	flipped := online != m.online
	m.online = online
	subscribers := make([]func(bool), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	if !flipped {
		return
	}
	logrus.WithField("online", online).Info("connectivity state changed")
	for _, fn := range subscribers {
		fn(online)
	}
}

func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
