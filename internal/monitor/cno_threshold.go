package monitor

import (
	"github.com/rs/zerolog"
)

// CnoThresholdConfig configures a carrier-to-noise threshold jamming
// monitor.
type CnoThresholdConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// Threshold is the C/N0 in dBHz that the strongest tracked channel must
	// stay above; the alarm fires when even the best signal falls below it.
	Threshold float64 `mapstructure:"threshold"`
	// TimeWindow is how long a channel's last reading stays usable, measured
	// against the time of the message that triggers the evaluation.
	TimeWindow float64 `mapstructure:"time_window"`
}

// DefaultCnoThresholdConfig returns the standard tuning: 20 dBHz is near the
// tracking floor of a consumer receiver, and readings older than 5 time units
// are stale.
func DefaultCnoThresholdConfig() CnoThresholdConfig {
	return CnoThresholdConfig{
		Threshold:  20,
		TimeWindow: 5,
	}
}

type cnoReading struct {
	time float64
	cno  float64
}

// CnoThresholdJammingMonitor keeps the latest carrier-to-noise reading per
// satellite channel and alarms when the strongest of them falls below the
// threshold. Broadband jamming suppresses every channel at once, so the
// maximum is the last signal to go.
type CnoThresholdJammingMonitor struct {
	core core

	// readings maps "gnssId.svId" to that channel's freshest reading. A nil
	// entry marks a channel that went stale and has not reported since.
	readings   map[string]*cnoReading
	timeWindow float64
}

// NewCnoThresholdJammingMonitor validates the configuration and constructs
// the monitor.
func NewCnoThresholdJammingMonitor(cfg CnoThresholdConfig, logger zerolog.Logger) (*CnoThresholdJammingMonitor, error) {
	if err := requirePositive("threshold", cfg.Threshold); err != nil {
		return nil, err
	}
	if err := requireNonNegative("time_window", cfg.TimeWindow); err != nil {
		return nil, err
	}
	return &CnoThresholdJammingMonitor{
		core: newCore("CnoThresholdJammingMonitor",
			[]string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.Threshold, logger),
		readings:   make(map[string]*cnoReading),
		timeWindow: cfg.TimeWindow,
	}, nil
}

// Update feeds one message through the monitor.
func (m *CnoThresholdJammingMonitor) Update(msg Message) Outcome {
	return m.core.step(msg, m.calculateMetric, func(metric float64) bool {
		return metric < m.core.threshold
	}, m.Reset)
}

func (m *CnoThresholdJammingMonitor) calculateMetric(msg Message) (float64, bool) {
	for _, sv := range msg.Svs {
		if sv.QualityInd < 4 || sv.Cno <= 0 {
			continue
		}
		key := channelKey(sv.GnssID, sv.SvID)
		if stored, ok := m.readings[key]; ok && stored != nil && msg.RxTime < stored.time {
			m.core.logger.Debug().
				Str("channel", key).
				Float64("stored_time", stored.time).
				Float64("message_time", msg.RxTime).
				Msg("discarding reading older than the stored one")
			continue
		}
		m.readings[key] = &cnoReading{time: msg.RxTime, cno: sv.Cno}
	}

	// Staleness is judged against the triggering message's time, so a
	// channel absent from this message ages out even while others keep
	// reporting.
	cutoff := msg.RxTime - m.timeWindow
	best := 0.0
	found := false
	for key, stored := range m.readings {
		if stored == nil {
			continue
		}
		if stored.time < cutoff {
			m.core.logger.Debug().
				Str("channel", key).
				Float64("stored_time", stored.time).
				Msg("channel reading went stale")
			m.readings[key] = nil
			continue
		}
		if !found || stored.cno > best {
			best = stored.cno
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return best, true
}

// Reset discards all channel readings; thresholds and windows are
// preserved.
func (m *CnoThresholdJammingMonitor) Reset() {
	m.core.reset()
	m.readings = make(map[string]*cnoReading)
}

// Status returns a snapshot of the monitor's state.
func (m *CnoThresholdJammingMonitor) Status() Status { return m.core.status() }

// SetThreshold changes the minimum acceptable C/N0; it must stay positive.
func (m *CnoThresholdJammingMonitor) SetThreshold(v float64) error {
	if err := requirePositive("threshold", v); err != nil {
		return err
	}
	m.core.threshold = v
	return nil
}

// TimeWindow returns how long a reading stays usable.
func (m *CnoThresholdJammingMonitor) TimeWindow() float64 { return m.timeWindow }

// SetTimeWindow changes how long a reading stays usable; it must be
// non-negative.
func (m *CnoThresholdJammingMonitor) SetTimeWindow(v float64) error {
	if err := requireNonNegative("time_window", v); err != nil {
		return err
	}
	m.timeWindow = v
	return nil
}

var _ Monitor = (*CnoThresholdJammingMonitor)(nil)
