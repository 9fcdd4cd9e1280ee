package monitor

import (
	"testing"
)

func clockRateMessage(rxTime, rate float64) Message {
	msg := validMessage(rxTime)
	msg.ClockRate = &rate
	return msg
}

func TestClockRateDefaults(t *testing.T) {
	cfg := DefaultClockRateConfig()
	cfg.ReceiverID = testReceiver
	m, err := NewClockRateMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	if !almostEqual(m.core.timeout, 10) || !almostEqual(m.core.threshold, 0.0015) {
		t.Fatalf("defaults wrong: timeout=%v threshold=%v", m.core.timeout, m.core.threshold)
	}
	if !almostEqual(m.MinDeltaT(), 60) || !almostEqual(m.MaxDeltaT(), 120) {
		t.Fatalf("defaults wrong: min=%v max=%v", m.MinDeltaT(), m.MaxDeltaT())
	}
}

func TestClockRateValidation(t *testing.T) {
	cfg := ClockRateConfig{ReceiverID: testReceiver, Threshold: 1, MinDeltaT: 10, MaxDeltaT: 5}
	if _, err := NewClockRateMonitor(cfg, testLogger()); err == nil {
		t.Fatal("min_delta_t above max_delta_t must be rejected")
	}

	cfg = ClockRateConfig{ReceiverID: testReceiver, Threshold: -1, MinDeltaT: 5, MaxDeltaT: 10}
	if _, err := NewClockRateMonitor(cfg, testLogger()); err == nil {
		t.Fatal("negative threshold must be rejected")
	}
}

func TestClockRateSetters(t *testing.T) {
	cfg := ClockRateConfig{ReceiverID: testReceiver, Threshold: 1, MinDeltaT: 5, MaxDeltaT: 10}
	m, err := NewClockRateMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	if err := m.SetMinDeltaT(20); err != nil || !almostEqual(m.MinDeltaT(), 20) {
		t.Fatalf("SetMinDeltaT: err=%v min=%v", err, m.MinDeltaT())
	}
	if err := m.SetMinDeltaT(-2); err == nil {
		t.Fatal("negative min_delta_t must be rejected")
	}
	if !almostEqual(m.MinDeltaT(), 20) {
		t.Fatalf("failed set must leave the value unchanged, got %v", m.MinDeltaT())
	}
	if err := m.SetMaxDeltaT(-2); err == nil {
		t.Fatal("negative max_delta_t must be rejected")
	}
	if err := m.SetThreshold(-2); err == nil {
		t.Fatal("negative threshold must be rejected")
	}
}

// A quadratic rate ramp through a tight window: once five time units have
// accumulated the metric tracks the endpoint rate difference over the span.
func TestClockRateQuadraticRamp(t *testing.T) {
	cfg := ClockRateConfig{ReceiverID: testReceiver, Threshold: 1, MinDeltaT: 5, MaxDeltaT: 5.1, MonitorTimeout: 10}
	m, err := NewClockRateMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	metrics := []float64{0, 0, 0, 0, 0, 7, 9, 11, 13, 15}

	for i := 1; i <= 10; i++ {
		time := float64(i)
		got := m.Update(clockRateMessage(time, time*time))

		if i <= 5 {
			if got != OutcomePending {
				t.Fatalf("t=%v: got %s, want pending", time, got)
			}
			if m.Status().Alarm {
				t.Fatalf("t=%v: no alarm expected while pending", time)
			}
			continue
		}

		if got != OutcomeAlarm {
			t.Fatalf("t=%v: got %s, want alarm", time, got)
		}
		st := m.Status()
		if st.Metric == nil || !almostEqual(*st.Metric, metrics[i-1]) {
			t.Fatalf("t=%v: metric %v, want %v", time, st.Metric, metrics[i-1])
		}
	}
}

// A gap in the data forces the wide window back below min_delta_t; the
// alarm state persists through the resulting pending updates.
func TestClockRateDataGap(t *testing.T) {
	cfg := ClockRateConfig{ReceiverID: testReceiver, Threshold: 1, MinDeltaT: 5, MaxDeltaT: 6.1, MonitorTimeout: 10}
	m, err := NewClockRateMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	times := []float64{1, 2, 3, 4, 5, 6, 9, 10, 11, 12, 13, 14}
	type expectation struct {
		pending bool
		metric  float64
		alarm   bool
	}
	expects := []expectation{
		{pending: true}, {pending: true}, {pending: true}, {pending: true}, {pending: true},
		{metric: 7, alarm: true},
		{metric: 12, alarm: true},
		{metric: 14, alarm: true},
		{metric: 16, alarm: true},
		{metric: 18, alarm: true},
		{pending: true, alarm: true},
		{metric: 23, alarm: true},
	}

	for i, time := range times {
		got := m.Update(clockRateMessage(time, time*time))
		want := expects[i]

		if want.pending {
			if got != OutcomePending {
				t.Fatalf("t=%v: got %s, want pending", time, got)
			}
		} else {
			if got != OutcomeAlarm {
				t.Fatalf("t=%v: got %s, want alarm", time, got)
			}
			st := m.Status()
			if st.Metric == nil || !almostEqual(*st.Metric, want.metric) {
				t.Fatalf("t=%v: metric %v, want %v", time, st.Metric, want.metric)
			}
		}
		if m.Status().Alarm != want.alarm {
			t.Fatalf("t=%v: alarm %v, want %v", time, m.Status().Alarm, want.alarm)
		}
	}
}

func TestClockRateIgnoresMessagesWithoutRate(t *testing.T) {
	cfg := DefaultClockRateConfig()
	cfg.ReceiverID = testReceiver
	m, err := NewClockRateMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}

	if got := m.Update(validMessage(1)); got != OutcomePending {
		t.Fatalf("message without clock rate: got %s, want pending", got)
	}
	if m.samples.Len() != 0 {
		t.Fatalf("no sample should be buffered, len=%d", m.samples.Len())
	}
}
