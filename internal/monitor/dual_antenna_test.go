package monitor

import (
	"testing"

	"pnt-integrity-alerts/internal/buffers"
)

func dualAntennaConfig() DualAntennaDistanceConfig {
	cfg := DefaultDualAntennaDistanceConfig()
	cfg.ReceiverID1 = "Test Rx 1"
	cfg.ReceiverID2 = "Test Rx 2"
	return cfg
}

func rxPosMessage(receiverID string, rxTime float64, p buffers.Vec3) Message {
	msg := posMessage(rxTime, p)
	msg.ReceiverID = receiverID
	return msg
}

func TestDualAntennaDefaults(t *testing.T) {
	m, err := NewDualAntennaDistanceMonitor(dualAntennaConfig(), testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	if !almostEqual(m.core.threshold, 2) || m.RequiredNumSamples() != 10 {
		t.Fatalf("defaults wrong: threshold=%v min_samples=%d", m.core.threshold, m.RequiredNumSamples())
	}
	if !almostEqual(m.TimeRange(), 15) {
		t.Fatalf("default time range %v, want 15", m.TimeRange())
	}
}

func TestDualAntennaValidation(t *testing.T) {
	cfg := dualAntennaConfig()
	cfg.ReceiverID2 = cfg.ReceiverID1
	if _, err := NewDualAntennaDistanceMonitor(cfg, testLogger()); err == nil {
		t.Fatal("identical receiver ids must be rejected")
	}

	cfg = dualAntennaConfig()
	cfg.TimeRange = -5
	if _, err := NewDualAntennaDistanceMonitor(cfg, testLogger()); err == nil {
		t.Fatal("negative time range must be rejected")
	}
}

func TestDualAntennaTimeRangeSetter(t *testing.T) {
	m, err := NewDualAntennaDistanceMonitor(dualAntennaConfig(), testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	if err := m.SetTimeRange(25); err != nil || !almostEqual(m.TimeRange(), 25) {
		t.Fatalf("SetTimeRange: err=%v range=%v", err, m.TimeRange())
	}
	if !almostEqual(m.rx2.samples.TargetElapsedTime(), 25) {
		t.Fatal("time range must apply to both receivers")
	}
	if err := m.SetTimeRange(-5); err == nil {
		t.Fatal("negative time range must be rejected")
	}
}

func TestDualAntennaInvertedComparison(t *testing.T) {
	cfg := dualAntennaConfig()
	cfg.Threshold = 3.14
	m, err := NewDualAntennaDistanceMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	if m.compareMetric(27) {
		t.Fatal("wide separation must not alarm")
	}
	if !m.compareMetric(0.34) {
		t.Fatal("near-zero separation must alarm")
	}
}

func TestDualAntennaRoutesByReceiver(t *testing.T) {
	m, err := NewDualAntennaDistanceMonitor(dualAntennaConfig(), testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	origin := buffers.Vec3{}

	if got := m.Update(rxPosMessage("Test Rx 1", 1, origin)); got != OutcomePending {
		t.Fatalf("first message: got %s, want pending", got)
	}
	if m.rx1.samples.Len() != 1 || m.rx2.samples.Len() != 0 {
		t.Fatalf("routing wrong: rx1=%d rx2=%d", m.rx1.samples.Len(), m.rx2.samples.Len())
	}

	m.Update(rxPosMessage("Test Rx 2", 2, origin))
	m.Update(rxPosMessage("Test Rx 2", 3, origin))
	m.Update(rxPosMessage("Test Rx 1", 4, origin))
	if m.rx1.samples.Len() != 2 || m.rx2.samples.Len() != 2 {
		t.Fatalf("routing wrong: rx1=%d rx2=%d", m.rx1.samples.Len(), m.rx2.samples.Len())
	}

	if got := m.Update(rxPosMessage("Another Rx", 5, origin)); got != OutcomeRejected {
		t.Fatalf("unknown receiver: got %s, want rejected", got)
	}
}

// Regression vector: two diverging position tracks over 20 interleaved
// epochs separate their window averages by a known distance. Feeding only
// one receiver afterwards must not move the metric.
func TestDualAntennaSeparationMetric(t *testing.T) {
	const wantMetric = 1438.3326284277916

	cfg := dualAntennaConfig()
	cfg.Threshold = 2
	cfg.TimeRange = 25
	m, err := NewDualAntennaDistanceMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	for i := 0; i < 20; i++ {
		x := float64(i)
		time := float64(i + 1)
		m.Update(rxPosMessage("Test Rx 1", time, buffers.Vec3{x, x * x, x * x * x}))
		m.Update(rxPosMessage("Test Rx 2", time, buffers.Vec3{2 * x, 2 * x, 3 * x * x}))
	}

	st := m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, wantMetric) {
		t.Fatalf("metric %v, want %v", st.Metric, wantMetric)
	}

	for i := 20; i < 25; i++ {
		x := float64(i)
		m.Update(rxPosMessage("Test Rx 1", float64(i+1), buffers.Vec3{x, x * x, x * x * x}))
	}

	st = m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, wantMetric) {
		t.Fatalf("metric moved without the second receiver: %v", st.Metric)
	}
	if m.rx1.samples.Len() != 25 || m.rx2.samples.Len() != 20 {
		t.Fatalf("window lens wrong: rx1=%d rx2=%d", m.rx1.samples.Len(), m.rx2.samples.Len())
	}
}

func TestDualAntennaReset(t *testing.T) {
	cfg := dualAntennaConfig()
	cfg.TimeRange = 25
	m, err := NewDualAntennaDistanceMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	for i := 0; i < 20; i++ {
		x := float64(i)
		time := float64(i + 1)
		m.Update(rxPosMessage("Test Rx 1", time, buffers.Vec3{x, x * x, x * x * x}))
		m.Update(rxPosMessage("Test Rx 2", time, buffers.Vec3{2 * x, 2 * x, 3 * x * x}))
	}
	if m.Status().Metric == nil {
		t.Fatal("expected a metric before reset")
	}

	m.Reset()

	if m.Status().Metric != nil {
		t.Fatal("reset must clear the metric")
	}
	if m.rx1.samples.Len() != 0 || m.rx2.samples.Len() != 0 {
		t.Fatal("reset must clear both windows")
	}
}

// Colocated spoofed tracks: both receivers report the same positions, so
// the separation collapses and the inverted comparison trips.
func TestDualAntennaColocationAlarms(t *testing.T) {
	m, err := NewDualAntennaDistanceMonitor(dualAntennaConfig(), testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	var last Outcome
	for i := 0; i < 12; i++ {
		pos := buffers.Vec3{1000, 2000, 3000}
		time := float64(i + 1)
		m.Update(rxPosMessage("Test Rx 1", time, pos))
		last = m.Update(rxPosMessage("Test Rx 2", time, pos))
	}
	if last != OutcomeAlarm {
		t.Fatalf("colocated receivers: got %s, want alarm", last)
	}
}
