// Package ingest supplies monitor messages from external inputs. Sources
// decode one message per call; monitors never read input themselves.
package ingest

import (
	"context"
	"errors"
	"io"

	"pnt-integrity-alerts/internal/monitor"
)

// ErrEndOfStream signals that a source has no further messages.
var ErrEndOfStream = errors.New("ingest: end of stream")

// Source yields monitor messages in stream order.
type Source interface {
	Next(ctx context.Context) (monitor.Message, error)
	io.Closer
}
