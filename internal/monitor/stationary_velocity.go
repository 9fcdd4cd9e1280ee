package monitor

import (
	"math"

	"github.com/rs/zerolog"
)

// StationaryVelocityConfig configures a stationary velocity monitor.
type StationaryVelocityConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	MinDetections  int     `mapstructure:"min_detections"`
	SampleWindow   int     `mapstructure:"sample_window"`
	// Threshold is the squared-speed threshold in m^2/s^2. The metric is the
	// squared speed, so the threshold is compared in squared units too.
	// Negative values are coerced to their absolute value with a warning.
	Threshold float64 `mapstructure:"threshold"`
}

// DefaultStationaryVelocityConfig returns the standard tuning.
func DefaultStationaryVelocityConfig() StationaryVelocityConfig {
	return StationaryVelocityConfig{
		MonitorTimeout: 60,
		MinDetections:  3,
		SampleWindow:   4,
		Threshold:      0.5,
	}
}

// StationaryVelocityMonitor flags abnormally large velocity solutions from a
// stationary receiver. A stationary receiver has zero true velocity; noise
// produces small nonzero solutions, and large ones suggest an inauthentic
// signal has entered the navigation solution. The metric is the squared
// speed (sum of squares of the ECEF velocity components) and the per-sample
// flags feed an M-of-N detector.
type StationaryVelocityMonitor struct {
	core   core
	filter *mofN
}

// NewStationaryVelocityMonitor validates the configuration and constructs
// the monitor.
func NewStationaryVelocityMonitor(cfg StationaryVelocityConfig, logger zerolog.Logger) (*StationaryVelocityMonitor, error) {
	filter, err := newMofN(cfg.MinDetections, cfg.SampleWindow)
	if err != nil {
		return nil, err
	}

	m := &StationaryVelocityMonitor{
		core:   newCore("StationaryVelocityMonitor", []string{cfg.ReceiverID}, cfg.MonitorTimeout, 0, logger),
		filter: filter,
	}
	m.SetThreshold(cfg.Threshold)

	m.core.logger.Info().
		Float64("threshold", m.core.threshold).
		Msg("created stationary velocity monitor")
	return m, nil
}

// Update feeds one message through the monitor and the M-of-N filter.
func (m *StationaryVelocityMonitor) Update(msg Message) Outcome {
	raw := m.core.step(msg, m.calculateMetric, m.core.compareAbove, m.Reset)
	return m.filter.apply(&m.core, raw)
}

func (m *StationaryVelocityMonitor) calculateMetric(msg Message) (float64, bool) {
	if msg.ECEFVelocity == nil {
		m.core.logger.Debug().Msg("message carries no ecef velocity")
		return 0, false
	}

	v := *msg.ECEFVelocity
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2], true
}

// Reset clears the detection window; the threshold is preserved.
func (m *StationaryVelocityMonitor) Reset() {
	m.core.reset()
	m.filter.reset()
}

// Status returns a snapshot including the raw per-sample spoofing flag.
func (m *StationaryVelocityMonitor) Status() Status {
	return m.filter.status(m.core.status())
}

// SetThreshold changes the squared-speed threshold. A negative value is
// coerced to its absolute value with a warning, never rejected.
func (m *StationaryVelocityMonitor) SetThreshold(v float64) {
	if v < 0 {
		m.core.logger.Warn().
			Float64("given", v).
			Float64("using", math.Abs(v)).
			Msg("coercing negative squared-speed threshold to its absolute value")
		v = math.Abs(v)
	}
	m.core.threshold = v
}

var _ Monitor = (*StationaryVelocityMonitor)(nil)
