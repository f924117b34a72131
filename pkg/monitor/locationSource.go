package monitor

import (
	"time"

	"github.com/pulsefit/checkin-sync/schema"
)

// ChannelSource is a LocationSource fed by hand. Platform location callbacks
// push readings through Publish; the buffered channel decouples the callback
// context from the monitor goroutine.
type ChannelSource struct {
	ch chan Update
}

// NewChannelSource creates a source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{ch: make(chan Update, buffer)}
}

func (s *ChannelSource) Updates() <-chan Update {
	return s.ch
}

// Publish delivers a reading. Drops the update when the buffer is full
// rather than blocking the platform callback.
func (s *ChannelSource) Publish(loc schema.Location) {
	select {
	case s.ch <- Update{Location: loc, Time: time.Now()}:
	default:
	}
}

// Close ends the stream; the monitor loop exits once the channel drains.
func (s *ChannelSource) Close() {
	close(s.ch)
}
