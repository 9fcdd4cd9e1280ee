package monitor

import (
	"math"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/buffers"
)

// DualAntennaDistanceConfig configures a dual-antenna distance monitor.
type DualAntennaDistanceConfig struct {
	ReceiverID1 string `mapstructure:"receiver_id_1"`
	ReceiverID2 string `mapstructure:"receiver_id_2"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// MinimumSamples is how many positions each receiver must contribute to
	// its window before a distance is computed.
	MinimumSamples int `mapstructure:"minimum_samples"`
	// Threshold is the separation in meters at or below which the alarm
	// fires: two independently spoofed receivers collapse onto a single
	// spoofed location.
	Threshold float64 `mapstructure:"threshold"`
	// TimeRange is the window span of position history per receiver.
	TimeRange float64 `mapstructure:"time_range"`
}

// DefaultDualAntennaDistanceConfig returns the standard tuning.
func DefaultDualAntennaDistanceConfig() DualAntennaDistanceConfig {
	return DualAntennaDistanceConfig{
		MinimumSamples: 10,
		Threshold:      2,
		TimeRange:      15,
	}
}

// positionTracker is the per-receiver sub-monitor: a plain monitor core in
// front of a strictly evicted window of ECEF positions. It exists so each
// receiver keeps its own ordering, validity, and timeout bookkeeping.
type positionTracker struct {
	core    core
	samples *buffers.TimedVecRunningSum
}

func newPositionTracker(receiverID string, timeout, timeRange float64, logger zerolog.Logger) (*positionTracker, error) {
	samples, err := buffers.NewTimedVecRunningSum(timeRange)
	if err != nil {
		return nil, err
	}
	return &positionTracker{
		core:    newCore("DualAntennaDistanceMonitor", []string{receiverID}, timeout, math.Inf(1), logger),
		samples: samples,
	}, nil
}

func (t *positionTracker) update(msg Message) Outcome {
	return t.core.step(msg, t.calculateMetric, t.core.compareAbove, t.reset)
}

func (t *positionTracker) calculateMetric(msg Message) (float64, bool) {
	if msg.ECEFPosition == nil {
		return 0, false
	}
	// Strict eviction: positions older than the window are dropped outright,
	// no grace sample.
	t.samples.Append(msg.RxTime, *msg.ECEFPosition)
	return 0, false
}

func (t *positionTracker) reset() {
	t.core.reset()
	t.samples.Reset()
}

// DualAntennaDistanceMonitor detects a single-point spoofer that has fully
// captured two nearby receivers: their position solutions collapse onto one
// spoofed location, so the distance between their per-window average
// positions becomes abnormally small. The alarm comparison is therefore
// inverted relative to the other monitors: metric <= threshold trips it.
//
// The monitor only detects full capture of both receivers; partial capture
// needs the other detectors.
type DualAntennaDistanceMonitor struct {
	core core

	rx1 *positionTracker
	rx2 *positionTracker

	minSamples int
	// lastCombined is the time of the last combined metric; a new one is
	// only computed after both receivers have advanced past it.
	lastCombined float64
}

// NewDualAntennaDistanceMonitor validates the configuration and constructs
// the monitor.
func NewDualAntennaDistanceMonitor(cfg DualAntennaDistanceConfig, logger zerolog.Logger) (*DualAntennaDistanceMonitor, error) {
	if err := requirePositive("threshold", cfg.Threshold); err != nil {
		return nil, err
	}
	if err := requirePositive("time_range", cfg.TimeRange); err != nil {
		return nil, err
	}
	if cfg.MinimumSamples < 1 {
		return nil, &ConfigError{Field: "minimum_samples", Reason: "must be at least 1", Value: cfg.MinimumSamples}
	}
	if cfg.ReceiverID1 == cfg.ReceiverID2 {
		return nil, &ConfigError{Field: "receiver_id_2", Reason: "must differ from receiver_id_1", Value: cfg.ReceiverID2}
	}

	rx1, err := newPositionTracker(cfg.ReceiverID1, cfg.MonitorTimeout, cfg.TimeRange, logger)
	if err != nil {
		return nil, err
	}
	rx2, err := newPositionTracker(cfg.ReceiverID2, cfg.MonitorTimeout, cfg.TimeRange, logger)
	if err != nil {
		return nil, err
	}

	return &DualAntennaDistanceMonitor{
		core: newCore("DualAntennaDistanceMonitor",
			[]string{cfg.ReceiverID1, cfg.ReceiverID2},
			cfg.MonitorTimeout, cfg.Threshold, logger),
		rx1:          rx1,
		rx2:          rx2,
		minSamples:   cfg.MinimumSamples,
		lastCombined: math.Inf(-1),
	}, nil
}

// Update feeds one message through the monitor. Messages from either
// configured receiver are accepted and routed to that receiver's window.
func (m *DualAntennaDistanceMonitor) Update(msg Message) Outcome {
	return m.core.step(msg, m.calculateMetric, m.compareMetric, m.Reset)
}

func (m *DualAntennaDistanceMonitor) calculateMetric(msg Message) (float64, bool) {
	switch msg.ReceiverID {
	case m.rx1.core.receiverIDs[0]:
		m.rx1.update(msg)
	case m.rx2.core.receiverIDs[0]:
		m.rx2.update(msg)
	}

	// Both receivers must have contributed since the last combined metric.
	if !(m.rx1.samples.NewestTime() > m.lastCombined && m.rx2.samples.NewestTime() > m.lastCombined) {
		return 0, false
	}

	if m.rx1.samples.Len() < m.minSamples || m.rx2.samples.Len() < m.minSamples {
		m.core.logger.Debug().
			Int("rx1_samples", m.rx1.samples.Len()).
			Int("rx2_samples", m.rx2.samples.Len()).
			Int("required", m.minSamples).
			Msg("a receiver has not seen enough samples yet")
		return 0, false
	}

	m.lastCombined = msg.RxTime

	avg1, _ := m.rx1.samples.Mean()
	avg2, _ := m.rx2.samples.Mean()

	return avg1.Sub(avg2).Norm(), true
}

// compareMetric is inverted relative to the default: a small separation is
// the alarm condition.
func (m *DualAntennaDistanceMonitor) compareMetric(metric float64) bool {
	return metric <= m.core.threshold
}

// Reset clears both receivers' histories; thresholds and windows are
// preserved.
func (m *DualAntennaDistanceMonitor) Reset() {
	m.core.reset()
	m.rx1.reset()
	m.rx2.reset()
	m.lastCombined = math.Inf(-1)
}

// Status returns a snapshot of the monitor's state.
func (m *DualAntennaDistanceMonitor) Status() Status { return m.core.status() }

// SetThreshold changes the separation threshold; it must stay positive.
func (m *DualAntennaDistanceMonitor) SetThreshold(v float64) error {
	if err := requirePositive("threshold", v); err != nil {
		return err
	}
	m.core.threshold = v
	return nil
}

// TimeRange returns the per-receiver window span.
func (m *DualAntennaDistanceMonitor) TimeRange() float64 {
	return m.rx1.samples.TargetElapsedTime()
}

// SetTimeRange changes the per-receiver window span; it must stay positive.
func (m *DualAntennaDistanceMonitor) SetTimeRange(v float64) error {
	if err := requirePositive("time_range", v); err != nil {
		return err
	}
	if err := m.rx1.samples.SetTargetElapsedTime(v); err != nil {
		return err
	}
	return m.rx2.samples.SetTargetElapsedTime(v)
}

// RequiredNumSamples returns the minimum samples per receiver for a metric.
func (m *DualAntennaDistanceMonitor) RequiredNumSamples() int { return m.minSamples }

var _ Monitor = (*DualAntennaDistanceMonitor)(nil)
