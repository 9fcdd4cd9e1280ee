package monitor

import (
	"math"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/buffers"
)

// StationaryPositionConfig configures a stationary position monitor.
type StationaryPositionConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	MinDetections  int     `mapstructure:"min_detections"`
	SampleWindow   int     `mapstructure:"sample_window"`
	// RejectionThreshold is the offset in meters beyond which a measurement
	// is not folded into the running average. Negative values are coerced to
	// their absolute value with a warning.
	RejectionThreshold float64 `mapstructure:"rejection_threshold"`
	// SpoofingThreshold is the offset in meters beyond which a measurement
	// raises the per-sample spoofing flag. Same coercion rule.
	SpoofingThreshold float64 `mapstructure:"spoofing_threshold"`
	// NumInitSamples is how many samples are accepted unconditionally while
	// the average bootstraps. Must be at least 3.
	NumInitSamples int `mapstructure:"num_init_samples"`
}

// DefaultStationaryPositionConfig returns the standard tuning.
func DefaultStationaryPositionConfig() StationaryPositionConfig {
	return StationaryPositionConfig{
		MonitorTimeout:     60,
		MinDetections:      3,
		SampleWindow:       4,
		RejectionThreshold: 21.1,
		SpoofingThreshold:  21.1,
		NumInitSamples:     30,
	}
}

// StationaryPositionMonitor flags position solutions that sit abnormally far
// from a stationary receiver's running average position. The average is
// computed incrementally with outlier rejection: after a bootstrap phase of
// unconditionally accepted samples, measurements further than the rejection
// threshold from the average are excluded from it. The metric is always the
// offset from the average, and the per-sample spoofing flags feed an M-of-N
// detector before the alarm surfaces.
type StationaryPositionMonitor struct {
	core   core
	filter *mofN

	average     buffers.Vec3
	numAccepted int

	numInitSamples     int
	rejectionThreshold float64
}

// NewStationaryPositionMonitor validates the configuration and constructs
// the monitor.
func NewStationaryPositionMonitor(cfg StationaryPositionConfig, logger zerolog.Logger) (*StationaryPositionMonitor, error) {
	if cfg.NumInitSamples < 3 {
		return nil, &ConfigError{Field: "num_init_samples", Reason: "must be at least 3", Value: cfg.NumInitSamples}
	}

	filter, err := newMofN(cfg.MinDetections, cfg.SampleWindow)
	if err != nil {
		return nil, err
	}

	c := newCore("StationaryPositionMonitor", []string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.SpoofingThreshold, logger)

	m := &StationaryPositionMonitor{
		core:           c,
		filter:         filter,
		numInitSamples: cfg.NumInitSamples,
	}
	m.setSpoofingThreshold(cfg.SpoofingThreshold)
	m.setRejectionThreshold(cfg.RejectionThreshold)
	return m, nil
}

// Update feeds one message through the monitor and the M-of-N filter.
func (m *StationaryPositionMonitor) Update(msg Message) Outcome {
	raw := m.core.step(msg, m.calculateMetric, m.core.compareAbove, m.Reset)
	return m.filter.apply(&m.core, raw)
}

func (m *StationaryPositionMonitor) calculateMetric(msg Message) (float64, bool) {
	if msg.ECEFPosition == nil {
		m.core.logger.Debug().Msg("message carries no ecef position")
		return 0, false
	}
	position := *msg.ECEFPosition

	// First measurement seeds the average directly.
	if m.numAccepted == 0 {
		m.core.logger.Debug().Msg("accepted first position measurement")
		m.average = position
		m.numAccepted = 1
		return 0, false
	}

	// Bootstrap: accept everything until the average has enough support for
	// the rejection test to mean anything.
	if m.numAccepted < m.numInitSamples {
		m.core.logger.Debug().
			Int("accepted", m.numAccepted).
			Int("required", m.numInitSamples).
			Msg("initializing position statistics")
		m.foldIntoAverage(position)
		return 0, false
	}

	offset := position.Sub(m.average).Norm()

	if offset < m.rejectionThreshold {
		m.foldIntoAverage(position)
	} else {
		m.core.logger.Info().
			Float64("offset", offset).
			Float64("rejection_threshold", m.rejectionThreshold).
			Msg("rejected position measurement from average")
	}

	// The offset is the metric whether or not it was accepted into the
	// average.
	return offset, true
}

func (m *StationaryPositionMonitor) foldIntoAverage(position buffers.Vec3) {
	delta := position.Sub(m.average).Scale(1 / float64(m.numAccepted+1))
	m.average = m.average.Add(delta)
	m.numAccepted++
}

// HotStart seeds the running average as though the monitor had been
// accumulating for a long time, bypassing the bootstrap phase. numAccepted
// must be positive.
func (m *StationaryPositionMonitor) HotStart(average buffers.Vec3, numAccepted int) error {
	if numAccepted <= 0 {
		return &ConfigError{Field: "num_accepted", Reason: "must be positive", Value: numAccepted}
	}
	m.average = average
	m.numAccepted = numAccepted
	return nil
}

// Average returns the current running average position.
func (m *StationaryPositionMonitor) Average() buffers.Vec3 { return m.average }

// NumAccepted returns how many measurements the average is built on.
func (m *StationaryPositionMonitor) NumAccepted() int { return m.numAccepted }

// Reset clears the average and detection window; thresholds are preserved.
// The average is reset to the origin, not to "unset": the next measurement
// re-seeds it through the first-sample path because the accepted count is
// zero.
func (m *StationaryPositionMonitor) Reset() {
	m.core.reset()
	m.filter.reset()
	m.average = buffers.Vec3{}
	m.numAccepted = 0
}

// Status returns a snapshot including the raw per-sample spoofing flag.
func (m *StationaryPositionMonitor) Status() Status {
	return m.filter.status(m.core.status())
}

// SetSpoofingThreshold changes the spoofing threshold. A negative value is
// coerced to its absolute value with a warning rather than rejected.
func (m *StationaryPositionMonitor) SetSpoofingThreshold(v float64) {
	m.setSpoofingThreshold(v)
}

func (m *StationaryPositionMonitor) setSpoofingThreshold(v float64) {
	if v < 0 {
		m.core.logger.Warn().
			Float64("given", v).
			Float64("using", math.Abs(v)).
			Msg("coercing negative spoofing threshold to its absolute value")
		v = math.Abs(v)
	}
	m.core.threshold = v
}

// RejectionThreshold returns the offset beyond which measurements are
// excluded from the average.
func (m *StationaryPositionMonitor) RejectionThreshold() float64 { return m.rejectionThreshold }

// SetRejectionThreshold changes the rejection threshold with the same
// negative-coercion rule as the spoofing threshold.
func (m *StationaryPositionMonitor) SetRejectionThreshold(v float64) {
	m.setRejectionThreshold(v)
}

func (m *StationaryPositionMonitor) setRejectionThreshold(v float64) {
	if v < 0 {
		m.core.logger.Warn().
			Float64("given", v).
			Float64("using", math.Abs(v)).
			Msg("coercing negative rejection threshold to its absolute value")
		v = math.Abs(v)
	}
	m.rejectionThreshold = v
}

var _ Monitor = (*StationaryPositionMonitor)(nil)
