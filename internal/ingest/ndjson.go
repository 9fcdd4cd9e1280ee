package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/monitor"
)

// NDJSONSource reads newline-delimited JSON messages from a reader, one
// message object per line. Blank lines are skipped; malformed lines are
// logged and skipped rather than aborting the stream.
type NDJSONSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	logger  zerolog.Logger
	line    int
}

// NewNDJSONSource wraps a reader in an NDJSON source. If the reader is also
// an io.Closer it is closed by Close.
func NewNDJSONSource(r io.Reader, logger zerolog.Logger) *NDJSONSource {
	scanner := bufio.NewScanner(r)
	// Messages carrying full satellite tables can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	closer, _ := r.(io.Closer)
	return &NDJSONSource{
		scanner: scanner,
		closer:  closer,
		logger:  logger.With().Str("component", "ndjson_source").Logger(),
	}
}

// Next returns the next decodable message, or ErrEndOfStream once the
// underlying reader is exhausted.
func (s *NDJSONSource) Next(ctx context.Context) (monitor.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return monitor.Message{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return monitor.Message{}, err
			}
			return monitor.Message{}, ErrEndOfStream
		}
		s.line++

		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}

		var msg monitor.Message
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			s.logger.Warn().Int("line", s.line).Err(err).Msg("skipping malformed message")
			continue
		}
		return msg, nil
	}
}

// Close closes the underlying reader when it supports closing.
func (s *NDJSONSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

var _ Source = (*NDJSONSource)(nil)
