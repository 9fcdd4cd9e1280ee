package monitor

import (
	"math"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/buffers"
)

// ClockRateConfig configures a clock-rate-of-change monitor.
type ClockRateConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// Threshold is the alarm threshold on the clock rate's rate of change,
	// in m/s^2 equivalent.
	Threshold float64 `mapstructure:"threshold"`
	MinDeltaT float64 `mapstructure:"min_delta_t"`
	MaxDeltaT float64 `mapstructure:"max_delta_t"`
}

// DefaultClockRateConfig returns the standard tuning.
func DefaultClockRateConfig() ClockRateConfig {
	return ClockRateConfig{
		MonitorTimeout: 10,
		Threshold:      0.0015,
		MinDeltaT:      60,
		MaxDeltaT:      120,
	}
}

// ClockRateMonitor watches the clock rate solution for changes outside the
// oscillator's normal drift. A receiver's oscillator is stable, so the rate
// should vary slowly; an attacker steering the rate faster than that is
// detectable.
type ClockRateMonitor struct {
	core core

	samples   *buffers.TimedBuffer[float64]
	maxDeltaT float64
}

// NewClockRateMonitor validates the configuration and constructs the monitor.
func NewClockRateMonitor(cfg ClockRateConfig, logger zerolog.Logger) (*ClockRateMonitor, error) {
	if err := requirePositive("threshold", cfg.Threshold); err != nil {
		return nil, err
	}
	if err := requirePositive("min_delta_t", cfg.MinDeltaT); err != nil {
		return nil, err
	}
	if err := requirePositive("max_delta_t", cfg.MaxDeltaT); err != nil {
		return nil, err
	}
	if cfg.MinDeltaT > cfg.MaxDeltaT {
		return nil, &ConfigError{Field: "min_delta_t", Reason: "must not exceed max_delta_t", Value: cfg.MinDeltaT}
	}

	samples, err := buffers.NewTimedBuffer[float64](cfg.MinDeltaT)
	if err != nil {
		return nil, err
	}

	return &ClockRateMonitor{
		core:      newCore("ClockRateMonitor", []string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.Threshold, logger),
		samples:   samples,
		maxDeltaT: cfg.MaxDeltaT,
	}, nil
}

// Update feeds one message through the monitor.
func (m *ClockRateMonitor) Update(msg Message) Outcome {
	return m.core.step(msg, m.calculateMetric, m.core.compareAbove, m.Reset)
}

func (m *ClockRateMonitor) calculateMetric(msg Message) (float64, bool) {
	if msg.ClockRate == nil {
		return 0, false
	}

	m.samples.Append(msg.RxTime, *msg.ClockRate)

	// Only one sample arrives per update, so at most one pop is needed to
	// keep the grace sample from stretching the window past max_delta_t.
	if m.samples.ElapsedTime() > m.maxDeltaT {
		m.samples.PopLeft()
	}

	if m.samples.ElapsedTime() < m.samples.TargetElapsedTime() {
		m.core.logger.Debug().
			Int("samples", m.samples.Len()).
			Float64("elapsed", m.samples.ElapsedTime()).
			Float64("required", m.samples.TargetElapsedTime()).
			Msg("not enough elapsed time to compute rate change")
		return 0, false
	}

	newest, _ := m.samples.NewestSample()
	oldest, _ := m.samples.OldestSample()

	return math.Abs(newest-oldest) / m.samples.ElapsedTime(), true
}

// Reset clears the sample history; thresholds and windows are preserved.
func (m *ClockRateMonitor) Reset() {
	m.core.reset()
	m.samples.Reset()
}

// Status returns a snapshot of the monitor's state.
func (m *ClockRateMonitor) Status() Status { return m.core.status() }

// SetThreshold changes the rate-of-change threshold; it must stay positive.
func (m *ClockRateMonitor) SetThreshold(v float64) error {
	if err := requirePositive("threshold", v); err != nil {
		return err
	}
	m.core.threshold = v
	return nil
}

// MinDeltaT returns the minimum window span.
func (m *ClockRateMonitor) MinDeltaT() float64 { return m.samples.TargetElapsedTime() }

// SetMinDeltaT changes the minimum window span.
func (m *ClockRateMonitor) SetMinDeltaT(v float64) error {
	if err := requirePositive("min_delta_t", v); err != nil {
		return err
	}
	return m.samples.SetTargetElapsedTime(v)
}

// MaxDeltaT returns the maximum window span.
func (m *ClockRateMonitor) MaxDeltaT() float64 { return m.maxDeltaT }

// SetMaxDeltaT changes the maximum window span.
func (m *ClockRateMonitor) SetMaxDeltaT(v float64) error {
	if err := requirePositive("max_delta_t", v); err != nil {
		return err
	}
	m.maxDeltaT = v
	return nil
}

var _ Monitor = (*ClockRateMonitor)(nil)
