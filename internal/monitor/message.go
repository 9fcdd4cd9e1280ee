package monitor

import (
	"pnt-integrity-alerts/internal/buffers"
)

// SatelliteEntry is one per-satellite measurement inside a Message.
type SatelliteEntry struct {
	GnssID     int     `json:"gnss_id" mapstructure:"gnss_id"`
	SvID       int     `json:"sv_id" mapstructure:"sv_id"`
	Cno        float64 `json:"cno" mapstructure:"cno"`
	QualityInd int     `json:"quality_ind" mapstructure:"quality_ind"`
}

// Message is one timestamped navigation/timing event from a receiver.
// Monitors treat it as immutable and consume optional fields selectively;
// a nil optional field means the producing receiver did not report it.
//
// RxTime is a receiver-local clock: unitless, but consistent and
// non-decreasing per receiver.
type Message struct {
	RxTime     float64 `json:"rx_time" mapstructure:"rx_time"`
	ReceiverID string  `json:"receiver_id" mapstructure:"receiver_id"`
	Validity   bool    `json:"validity" mapstructure:"validity"`

	ClockRate    *float64         `json:"clock_rate,omitempty" mapstructure:"clock_rate"`
	ClockBias    *float64         `json:"clock_bias,omitempty" mapstructure:"clock_bias"`
	ECEFPosition *buffers.Vec3    `json:"ecef_position,omitempty" mapstructure:"ecef_position"`
	ECEFVelocity *buffers.Vec3    `json:"ecef_velocity,omitempty" mapstructure:"ecef_velocity"`
	Svs          []SatelliteEntry `json:"svs,omitempty" mapstructure:"svs"`
}
