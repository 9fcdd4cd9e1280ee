package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusSnapshot is one persisted observation of a monitor's status, written
// by the periodic flush or at end of replay. Snapshots are write-only
// telemetry; nothing is ever read back into a monitor.
type StatusSnapshot struct {
	Monitor     string
	MonitorType string
	ReceiverID  string
	// RxTime is the receiver-local time of the last event the monitor
	// consumed, in the stream's own units.
	RxTime       decimal.Decimal
	Metric       *decimal.Decimal
	Threshold    decimal.Decimal
	Alarm        bool
	SpoofingFlag *bool
	CreatedAt    time.Time
}

// AlarmRecord captures an alarm transition for auditing and alert
// de-duplication.
type AlarmRecord struct {
	ID          int64
	Monitor     string
	MonitorType string
	ReceiverID  string
	RxTime      decimal.Decimal
	Metric      *decimal.Decimal
	Threshold   decimal.Decimal
	Channels    []string
	CreatedAt   time.Time
}
