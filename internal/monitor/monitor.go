// Package monitor implements streaming statistical monitors that watch a
// sequence of navigation/timing messages and raise an alarm when a computed
// test statistic crosses a threshold. Each monitor is an independent state
// machine: messages are validated, stale history is dropped on a data-driven
// timeout, a detector-specific metric is computed from rolling buffers, and
// the metric is compared against the monitor's threshold.
//
// Monitors are single-writer: one instance must only ever be updated by one
// logical message stream. They never block and never panic on bad input;
// malformed or out-of-order messages are rejected and logged, leaving state
// untouched.
package monitor

import (
	"math"

	"github.com/rs/zerolog"
)

// Outcome is the tri-state result of feeding one message to a monitor.
// Rejected and Pending both mean "no decision", but for different reasons:
// a rejected message failed validation and changed nothing, while a pending
// update was accepted and accumulated without enough history for a metric.
type Outcome int

const (
	// OutcomeRejected means the message failed validation; state is untouched.
	OutcomeRejected Outcome = iota
	// OutcomePending means the message was consumed but the monitor does not
	// yet have enough history to compute a metric.
	OutcomePending
	// OutcomeNominal means a metric was computed and did not trip the alarm.
	OutcomeNominal
	// OutcomeAlarm means a metric was computed and tripped the alarm.
	OutcomeAlarm
)

// Decided reports whether a metric was computed for the update.
func (o Outcome) Decided() bool { return o == OutcomeNominal || o == OutcomeAlarm }

// Alarm reports whether the update tripped the alarm.
func (o Outcome) Alarm() bool { return o == OutcomeAlarm }

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomePending:
		return "pending"
	case OutcomeNominal:
		return "nominal"
	case OutcomeAlarm:
		return "alarm"
	default:
		return "unknown"
	}
}

// Status is a read-only snapshot of a monitor's externally visible state,
// suitable for serialization by a telemetry collaborator. Metric is nil until
// the monitor has computed at least one metric since construction or reset.
// SpoofingFlag is only present for M-of-N filtered monitors, where it carries
// the raw per-sample decision before debouncing.
type Status struct {
	Alarm        bool     `json:"alarm"`
	Metric       *float64 `json:"metric"`
	Threshold    float64  `json:"threshold"`
	SpoofingFlag *bool    `json:"spoofing_flag,omitempty"`
}

// Monitor is the contract every detector in this package satisfies.
type Monitor interface {
	// Update feeds one message through the monitor pipeline.
	Update(msg Message) Outcome
	// Reset clears all accumulated sample history but preserves
	// configuration (thresholds, windows, receiver ids).
	Reset()
	// Status returns a snapshot of the monitor's current state.
	Status() Status
}

// core carries the state and update protocol shared by every monitor:
// identity, timeout bookkeeping, threshold, and the last status. Concrete
// monitors embed it and drive it through step with their metric hooks.
type core struct {
	receiverIDs []string
	timeout     float64 // in message-time units; <= 0 means never time out
	threshold   float64

	lastEventTime float64
	seen          bool

	alarm     bool
	metric    float64
	hasMetric bool

	logger zerolog.Logger
}

func newCore(name string, receiverIDs []string, timeout, threshold float64, logger zerolog.Logger) core {
	ctx := logger.With().Str("component", "monitor").Str("monitor", name)
	if len(receiverIDs) == 1 {
		ctx = ctx.Str("receiver_id", receiverIDs[0])
	}
	return core{
		receiverIDs: receiverIDs,
		timeout:     timeout,
		threshold:   threshold,
		logger:      ctx.Logger(),
	}
}

// verifyMessage guards the update pipeline: the message must be flagged
// valid, come from one of this monitor's receivers, and not move backwards
// in time relative to the last accepted event.
func (c *core) verifyMessage(msg Message) bool {
	if msg.ReceiverID == "" {
		c.logger.Debug().Msg("dropping message with no receiver id")
		return false
	}

	if !msg.Validity {
		c.logger.Debug().Float64("rx_time", msg.RxTime).Msg("dropping message that flagged itself invalid")
		return false
	}

	known := false
	for _, id := range c.receiverIDs {
		if msg.ReceiverID == id {
			known = true
			break
		}
	}
	if !known {
		c.logger.Debug().Str("from", msg.ReceiverID).Msg("dropping message from a different receiver")
		return false
	}

	if c.seen && msg.RxTime < c.lastEventTime {
		c.logger.Warn().
			Float64("rx_time", msg.RxTime).
			Float64("last_event_time", c.lastEventTime).
			Msg("dropping out-of-order message")
		return false
	}

	return true
}

// step runs the shared update protocol around the detector hooks. calc
// returns the metric and whether one could be computed; compare maps a metric
// to the alarm decision; reset is the monitor's full reset, invoked when the
// timeout guard fires.
func (c *core) step(msg Message, calc func(Message) (float64, bool), compare func(float64) bool, reset func()) Outcome {
	if !c.verifyMessage(msg) {
		return OutcomeRejected
	}

	// Unlike verification failures, a timeout resets accumulated history;
	// the triggering message is still processed afterwards.
	if c.timeout > 0 && c.seen && msg.RxTime-c.lastEventTime >= c.timeout {
		c.logger.Info().
			Float64("rx_time", msg.RxTime).
			Float64("last_event_time", c.lastEventTime).
			Msg("monitor timed out, resetting")
		reset()
	}

	c.lastEventTime = msg.RxTime
	c.seen = true

	metric, ok := calc(msg)
	if !ok {
		return OutcomePending
	}

	alarm := compare(metric)

	c.metric = metric
	c.hasMetric = true
	c.alarm = alarm

	if alarm {
		return OutcomeAlarm
	}
	return OutcomeNominal
}

// compareAbove is the default comparison: alarm when the metric exceeds the
// threshold.
func (c *core) compareAbove(metric float64) bool {
	return metric > c.threshold
}

// reset clears event bookkeeping and the derived status fields. Monitors
// call this from their own Reset alongside clearing their buffers.
func (c *core) reset() {
	c.logger.Info().Msg("resetting monitor")
	c.lastEventTime = 0
	c.seen = false
	c.alarm = false
	c.metric = 0
	c.hasMetric = false
}

func (c *core) status() Status {
	st := Status{
		Alarm:     c.alarm,
		Threshold: c.threshold,
	}
	if c.hasMetric {
		m := c.metric
		st.Metric = &m
	}
	return st
}

// requirePositive validates a tunable that must be strictly positive.
func requirePositive(name string, v float64) error {
	if v <= 0 || math.IsNaN(v) {
		return &ConfigError{Field: name, Reason: "must be positive", Value: v}
	}
	return nil
}

// requireNonNegative validates a tunable that must not be negative.
func requireNonNegative(name string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return &ConfigError{Field: name, Reason: "must be non-negative", Value: v}
	}
	return nil
}
