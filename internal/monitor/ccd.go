package monitor

import (
	"math"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/buffers"
)

// CCDConfig configures a clock-consistency divergence monitor.
type CCDConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// Threshold is the divergence alarm threshold in meters equivalent.
	Threshold float64 `mapstructure:"threshold"`
	// MinDeltaT is the smallest window span over which to compute the
	// divergence; the monitor aligns its data as closely as possible to it.
	MinDeltaT float64 `mapstructure:"min_delta_t"`
	// MaxDeltaT caps the window span so the monitor keeps working across
	// short outages without assuming oscillator stability forever.
	MaxDeltaT float64 `mapstructure:"max_delta_t"`
}

// DefaultCCDConfig returns the tuning a stationary C/A-code receiver starts
// from.
func DefaultCCDConfig() CCDConfig {
	return CCDConfig{
		MonitorTimeout: 10,
		Threshold:      43.6,
		MinDeltaT:      30,
		MaxDeltaT:      40,
	}
}

// CCDMonitor watches for inconsistency between the clock bias and clock rate
// of the PNT solution. For an honest clock the change in bias over a window
// must match the integral of the rate over the same window; spoofing that
// pulls the timing solution induces a large divergence between the two.
//
// The monitor keeps two windows in lock step: the delta clock biases, and the
// trapezoid terms approximating the rate integral. The metric is the absolute
// difference of their sums, in meters equivalent.
type CCDMonitor struct {
	core core

	biasSamples  *buffers.TimedRunningSum
	rateIntegral *buffers.TimedRunningSum

	lastRate    float64
	lastTime    float64
	hasLastRate bool

	maxDeltaT float64
}

// NewCCDMonitor validates the configuration and constructs the monitor.
func NewCCDMonitor(cfg CCDConfig, logger zerolog.Logger) (*CCDMonitor, error) {
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

	bias, err := buffers.NewTimedRunningSum(cfg.MinDeltaT)
	if err != nil {
		return nil, err
	}
	integral, err := buffers.NewTimedRunningSum(cfg.MinDeltaT)
	if err != nil {
		return nil, err
	}

	return &CCDMonitor{
		core:         newCore("CCDMonitor", []string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.Threshold, logger),
		biasSamples:  bias,
		rateIntegral: integral,
		maxDeltaT:    cfg.MaxDeltaT,
	}, nil
}

// Update feeds one message through the monitor.
func (m *CCDMonitor) Update(msg Message) Outcome {
	return m.core.step(msg, m.calculateMetric, m.core.compareAbove, m.Reset)
}

func (m *CCDMonitor) calculateMetric(msg Message) (float64, bool) {
	if msg.ClockRate == nil || msg.ClockBias == nil {
		return 0, false
	}

	time := msg.RxTime
	rate := *msg.ClockRate

	// The trapezoid term needs a previous rate sample.
	if !m.hasLastRate {
		m.lastRate = rate
		m.lastTime = time
		m.hasLastRate = true
		return 0, false
	}

	m.biasSamples.Append(time, *msg.ClockBias)

	rateTerm := (rate + m.lastRate) / 2 * (time - m.lastTime)
	m.rateIntegral.Append(time, rateTerm)

	m.lastRate = rate
	m.lastTime = time

	// The grace sample kept beyond min_delta_t must not stretch the window
	// past max_delta_t; pop both buffers in lock step to keep them aligned
	// sample-for-sample.
	for m.biasSamples.ElapsedTime() > m.maxDeltaT {
		m.biasSamples.PopLeft()
		m.rateIntegral.PopLeft()
	}

	if m.biasSamples.ElapsedTime() < m.biasSamples.TargetElapsedTime() {
		m.core.logger.Debug().
			Int("samples", m.biasSamples.Len()).
			Float64("elapsed", m.biasSamples.ElapsedTime()).
			Float64("required", m.biasSamples.TargetElapsedTime()).
			Msg("not enough elapsed time to compute divergence")
		return 0, false
	}

	return math.Abs(m.biasSamples.Sum() - m.rateIntegral.Sum()), true
}

// Reset clears the sample history; thresholds and windows are preserved.
func (m *CCDMonitor) Reset() {
	m.core.reset()
	m.biasSamples.Reset()
	m.rateIntegral.Reset()
	m.lastRate = 0
	m.lastTime = 0
	m.hasLastRate = false
}

// Status returns a snapshot of the monitor's state.
func (m *CCDMonitor) Status() Status { return m.core.status() }

// SetThreshold changes the divergence threshold; it must stay positive.
func (m *CCDMonitor) SetThreshold(v float64) error {
	if err := requirePositive("threshold", v); err != nil {
		return err
	}
	m.core.threshold = v
	return nil
}

// MinDeltaT returns the minimum window span.
func (m *CCDMonitor) MinDeltaT() float64 { return m.biasSamples.TargetElapsedTime() }

// SetMinDeltaT changes the minimum window span for both lock-step buffers.
func (m *CCDMonitor) SetMinDeltaT(v float64) error {
	if err := requirePositive("min_delta_t", v); err != nil {
		return err
	}
	if err := m.biasSamples.SetTargetElapsedTime(v); err != nil {
		return err
	}
	return m.rateIntegral.SetTargetElapsedTime(v)
}

// MaxDeltaT returns the maximum window span.
func (m *CCDMonitor) MaxDeltaT() float64 { return m.maxDeltaT }

// SetMaxDeltaT changes the maximum window span.
func (m *CCDMonitor) SetMaxDeltaT(v float64) error {
	if err := requirePositive("max_delta_t", v); err != nil {
		return err
	}
	m.maxDeltaT = v
	return nil
}

var _ Monitor = (*CCDMonitor)(nil)
