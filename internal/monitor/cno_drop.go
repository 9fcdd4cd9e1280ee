package monitor

import (
	"fmt"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/buffers"
)

// CnoDropConfig configures a carrier-to-noise drop jamming monitor.
type CnoDropConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// Threshold is the C/N0 drop in dBHz that every tracked channel must
	// exceed, oldest sample minus newest, for the alarm to fire.
	Threshold float64 `mapstructure:"threshold"`
	// TimeWindow is the per-channel history span. Zero keeps only samples
	// with identical times.
	TimeWindow float64 `mapstructure:"time_window"`
}

// DefaultCnoDropConfig returns the standard tuning. The default threshold is
// negative: any simultaneous drop, however small, fires the alarm until the
// operator tunes a dBHz margin.
func DefaultCnoDropConfig() CnoDropConfig {
	return CnoDropConfig{
		Threshold:  -1,
		TimeWindow: 5,
	}
}

// CnoDropJammingMonitor watches the carrier-to-noise density of every
// tracked satellite channel. A jammer raises the noise floor across the
// whole sky, so the signature is a simultaneous C/N0 drop on all channels;
// a drop on a few channels is ordinary fading or obstruction and is ignored.
type CnoDropJammingMonitor struct {
	core core

	// channels maps "gnssId.svId" to that channel's strictly evicted C/N0
	// history.
	channels   map[string]*buffers.TimedBuffer[float64]
	timeWindow float64
}

// NewCnoDropJammingMonitor validates the configuration and constructs the
// monitor.
func NewCnoDropJammingMonitor(cfg CnoDropConfig, logger zerolog.Logger) (*CnoDropJammingMonitor, error) {
	if err := requireNonNegative("time_window", cfg.TimeWindow); err != nil {
		return nil, err
	}
	return &CnoDropJammingMonitor{
		core: newCore("CnoDropJammingMonitor",
			[]string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.Threshold, logger),
		channels:   make(map[string]*buffers.TimedBuffer[float64]),
		timeWindow: cfg.TimeWindow,
	}, nil
}

// Update feeds one message through the monitor.
func (m *CnoDropJammingMonitor) Update(msg Message) Outcome {
	// The metric is already the alarm decision, so the comparison is the
	// identity.
	return m.core.step(msg, m.calculateMetric, func(metric float64) bool {
		return metric != 0
	}, m.Reset)
}

func (m *CnoDropJammingMonitor) calculateMetric(msg Message) (float64, bool) {
	for _, sv := range msg.Svs {
		if sv.QualityInd < 4 || sv.Cno <= 0 {
			m.core.logger.Debug().
				Int("gnss_id", sv.GnssID).
				Int("sv_id", sv.SvID).
				Int("quality", sv.QualityInd).
				Float64("cno", sv.Cno).
				Msg("skipping channel without a locked signal")
			continue
		}
		key := channelKey(sv.GnssID, sv.SvID)
		buf, ok := m.channels[key]
		if !ok {
			// TimeWindow was validated non-negative at construction.
			buf, _ = buffers.NewTimedBufferStrict[float64](m.timeWindow)
			m.channels[key] = buf
		}
		buf.Append(msg.RxTime, sv.Cno)
	}

	examined := 0
	allDropped := true
	for key, buf := range m.channels {
		if buf.Len() < 2 {
			continue
		}
		examined++
		oldest, _ := buf.OldestSample()
		newest, _ := buf.NewestSample()
		drop := oldest - newest
		if drop > m.core.threshold {
			m.core.logger.Debug().
				Str("channel", key).
				Float64("drop", drop).
				Msg("channel exceeded cno drop threshold")
		} else {
			allDropped = false
		}
	}
	if examined == 0 {
		return 0, false
	}
	if allDropped {
		return 1, true
	}
	return 0, true
}

// Reset discards all channel histories; thresholds and windows are
// preserved.
func (m *CnoDropJammingMonitor) Reset() {
	m.core.reset()
	m.channels = make(map[string]*buffers.TimedBuffer[float64])
}

// Status returns a snapshot of the monitor's state.
func (m *CnoDropJammingMonitor) Status() Status { return m.core.status() }

// SetThreshold changes the drop threshold. Any value is allowed: the drop
// comparison is meaningful at zero and below.
func (m *CnoDropJammingMonitor) SetThreshold(v float64) {
	m.core.threshold = v
}

// TimeWindow returns the per-channel history span.
func (m *CnoDropJammingMonitor) TimeWindow() float64 { return m.timeWindow }

// SetTimeWindow changes the per-channel history span; it must be
// non-negative and applies to existing channels immediately.
func (m *CnoDropJammingMonitor) SetTimeWindow(v float64) error {
	if err := requireNonNegative("time_window", v); err != nil {
		return err
	}
	m.timeWindow = v
	for _, buf := range m.channels {
		if err := buf.SetTargetElapsedTime(v); err != nil {
			return err
		}
	}
	return nil
}

// channelKey names a satellite channel the way it appears in logs and
// configuration.
func channelKey(gnssID, svID int) string {
	return fmt.Sprintf("%d.%d", gnssID, svID)
}

var _ Monitor = (*CnoDropJammingMonitor)(nil)
