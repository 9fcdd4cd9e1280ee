package monitor

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// CnoSpoofingConfig configures a carrier-to-noise spoofing monitor.
type CnoSpoofingConfig struct {
	ReceiverID string `mapstructure:"receiver_id"`
	// ChannelID names the tracked satellite channel as "gnssId.svId".
	ChannelID string `mapstructure:"channel_id"`
	// MonitorTimeout is in message-time units; zero or negative disables it.
	MonitorTimeout float64 `mapstructure:"monitor_timeout"`
	// Threshold is the C/N0 in dBHz above which spoofing is declared: a
	// transmitter on the ground is far stronger than the genuine satellite.
	Threshold float64 `mapstructure:"threshold"`
}

// DefaultCnoSpoofingConfig returns the standard tuning.
func DefaultCnoSpoofingConfig() CnoSpoofingConfig {
	return CnoSpoofingConfig{
		Threshold: 51,
	}
}

// CnoSpoofingMonitor watches a single satellite channel on a single
// receiver and alarms when its carrier-to-noise density is implausibly
// high for a signal that travelled from orbit.
type CnoSpoofingMonitor struct {
	core core

	gnssID int
	svID   int
}

// NewCnoSpoofingMonitor validates the configuration and constructs the
// monitor.
func NewCnoSpoofingMonitor(cfg CnoSpoofingConfig, logger zerolog.Logger) (*CnoSpoofingMonitor, error) {
	if err := requirePositive("threshold", cfg.Threshold); err != nil {
		return nil, err
	}
	gnssID, svID, err := parseChannelID(cfg.ChannelID)
	if err != nil {
		return nil, err
	}
	return &CnoSpoofingMonitor{
		core: newCore("CnoSpoofingMonitor",
			[]string{cfg.ReceiverID}, cfg.MonitorTimeout, cfg.Threshold, logger),
		gnssID: gnssID,
		svID:   svID,
	}, nil
}

// parseChannelID splits a "gnssId.svId" channel name into its parts.
func parseChannelID(id string) (gnssID, svID int, err error) {
	first, second, ok := strings.Cut(id, ".")
	if !ok {
		return 0, 0, &ConfigError{Field: "channel_id", Reason: "must be in the form gnssId.svId", Value: id}
	}
	gnssID, err = strconv.Atoi(first)
	if err != nil {
		return 0, 0, &ConfigError{Field: "channel_id", Reason: "gnss id is not a number", Value: id}
	}
	svID, err = strconv.Atoi(second)
	if err != nil {
		return 0, 0, &ConfigError{Field: "channel_id", Reason: "sv id is not a number", Value: id}
	}
	return gnssID, svID, nil
}

// Update feeds one message through the monitor.
func (m *CnoSpoofingMonitor) Update(msg Message) Outcome {
	return m.core.step(msg, m.calculateMetric, m.core.compareAbove, m.Reset)
}

func (m *CnoSpoofingMonitor) calculateMetric(msg Message) (float64, bool) {
	for _, sv := range msg.Svs {
		if sv.GnssID == m.gnssID && sv.SvID == m.svID {
			return sv.Cno, true
		}
	}
	return 0, false
}

// Reset clears the monitor state; the channel and threshold are preserved.
func (m *CnoSpoofingMonitor) Reset() { m.core.reset() }

// Status returns a snapshot of the monitor's state.
func (m *CnoSpoofingMonitor) Status() Status { return m.core.status() }

// ChannelID returns the tracked channel as "gnssId.svId".
func (m *CnoSpoofingMonitor) ChannelID() string { return channelKey(m.gnssID, m.svID) }

// SetThreshold changes the spoofing threshold; it must stay positive.
func (m *CnoSpoofingMonitor) SetThreshold(v float64) error {
	if err := requirePositive("threshold", v); err != nil {
		return err
	}
	m.core.threshold = v
	return nil
}

var _ Monitor = (*CnoSpoofingMonitor)(nil)
