package ingest

import (
	"context"

	"pnt-integrity-alerts/internal/monitor"
)

// StaticSource replays a fixed slice of messages. Used by the simulate
// command and in tests.
type StaticSource struct {
	messages []monitor.Message
	next     int
}

// NewStaticSource builds a source over the given messages.
func NewStaticSource(messages []monitor.Message) *StaticSource {
	return &StaticSource{messages: messages}
}

// Next returns the next queued message, or ErrEndOfStream when drained.
func (s *StaticSource) Next(ctx context.Context) (monitor.Message, error) {
	if err := ctx.Err(); err != nil {
		return monitor.Message{}, err
	}
	if s.next >= len(s.messages) {
		return monitor.Message{}, ErrEndOfStream
	}
	msg := s.messages[s.next]
	s.next++
	return msg, nil
}

// Close is a no-op for the in-memory source.
func (s *StaticSource) Close() error { return nil }

var _ Source = (*StaticSource)(nil)
