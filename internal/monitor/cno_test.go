package monitor

import (
	"errors"
	"testing"
)

func svMessage(rxTime float64, svs ...SatelliteEntry) Message {
	msg := validMessage(rxTime)
	msg.Svs = svs
	return msg
}

func sv(gnssID, svID int, cno float64) SatelliteEntry {
	return SatelliteEntry{GnssID: gnssID, SvID: svID, Cno: cno, QualityInd: 5}
}

func newDropMonitor(t *testing.T, threshold, window float64) *CnoDropJammingMonitor {
	t.Helper()
	m, err := NewCnoDropJammingMonitor(CnoDropConfig{
		ReceiverID: testReceiver,
		Threshold:  threshold,
		TimeWindow: window,
	}, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	return m
}

// The shipped default threshold is negative, so the comparison must accept
// zero and negative values: with threshold -1 even a steady channel counts
// as dropped.
func TestCnoDropDefaultNegativeThreshold(t *testing.T) {
	cfg := DefaultCnoDropConfig()
	if !almostEqual(cfg.Threshold, -1) || !almostEqual(cfg.TimeWindow, 5) {
		t.Fatalf("defaults %v/%v, want -1/5", cfg.Threshold, cfg.TimeWindow)
	}

	cfg.ReceiverID = testReceiver
	m, err := NewCnoDropJammingMonitor(cfg, testLogger())
	if err != nil {
		t.Fatalf("negative threshold must construct: %v", err)
	}

	if got := m.Update(svMessage(1, sv(0, 1, 30), sv(0, 2, 30))); got != OutcomePending {
		t.Fatalf("t=1: got %s, want pending", got)
	}
	if got := m.Update(svMessage(2, sv(0, 1, 30), sv(0, 2, 30))); got != OutcomeAlarm {
		t.Fatalf("steady channels with threshold -1: got %s, want alarm", got)
	}

	m.SetThreshold(0)
	if got := m.Update(svMessage(3, sv(0, 1, 30), sv(0, 2, 30))); got != OutcomeNominal {
		t.Fatalf("zero drop with threshold 0: got %s, want nominal", got)
	}
}

func TestCnoDropTimeWindowSetter(t *testing.T) {
	m := newDropMonitor(t, 5, 5)

	if err := m.SetTimeWindow(15); err != nil || !almostEqual(m.TimeWindow(), 15) {
		t.Fatalf("SetTimeWindow: err=%v window=%v", err, m.TimeWindow())
	}
	if err := m.SetTimeWindow(-5); err == nil {
		t.Fatal("negative time window must be rejected")
	}
}

func TestCnoDropIgnoresUnusableChannels(t *testing.T) {
	m := newDropMonitor(t, 5, 5)

	unlocked := SatelliteEntry{GnssID: 0, SvID: 1, Cno: 30, QualityInd: 2}
	silent := SatelliteEntry{GnssID: 0, SvID: 2, Cno: 0, QualityInd: 5}

	if got := m.Update(svMessage(1, unlocked, silent)); got != OutcomePending {
		t.Fatalf("unusable channels only: got %s, want pending", got)
	}
	if len(m.channels) != 0 {
		t.Fatalf("no channel should be tracked, got %d", len(m.channels))
	}
}

// The alarm requires every sufficiently-sampled channel to show the drop;
// isolated drops are fading, not jamming.
func TestCnoDropAllChannelsMustDrop(t *testing.T) {
	m := newDropMonitor(t, 5, 5)

	// One sample per channel: nothing to examine yet.
	if got := m.Update(svMessage(1, sv(0, 1, 12), sv(0, 0, 13), sv(1, 1, 9))); got != OutcomePending {
		t.Fatalf("t=1: got %s, want pending", got)
	}
	if m.Status().Metric != nil {
		t.Fatal("no metric expected yet")
	}
	if len(m.channels) != 3 {
		t.Fatalf("tracked channels %d, want 3", len(m.channels))
	}

	// A small drop on one channel.
	if got := m.Update(svMessage(2, sv(0, 1, 10), sv(0, 0, 13), sv(1, 1, 9))); got != OutcomeNominal {
		t.Fatalf("t=2: got %s, want nominal", got)
	}

	// One channel beyond the threshold while the others hold steady.
	if got := m.Update(svMessage(3, sv(0, 1, 10), sv(0, 0, 7), sv(1, 1, 9))); got != OutcomeNominal {
		t.Fatalf("t=3: got %s, want nominal", got)
	}

	// Every channel collapses at once: jamming.
	if got := m.Update(svMessage(4, sv(0, 1, 1), sv(0, 0, 1), sv(1, 1, 1))); got != OutcomeAlarm {
		t.Fatalf("t=4: got %s, want alarm", got)
	}
	st := m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 1) {
		t.Fatalf("alarm metric %v, want 1", st.Metric)
	}

	// A long gap ages everything out; single samples per channel mean no
	// decision again.
	if got := m.Update(svMessage(9.1, sv(0, 1, 1), sv(0, 0, 1), sv(1, 1, 1))); got != OutcomePending {
		t.Fatalf("t=9.1: got %s, want pending", got)
	}
	for key, buf := range m.channels {
		if buf.Len() != 1 {
			t.Fatalf("channel %s: len %d after eviction, want 1", key, buf.Len())
		}
	}
}

func TestCnoDropReset(t *testing.T) {
	m := newDropMonitor(t, 5, 5)
	m.Update(svMessage(1, sv(0, 1, 12)))
	m.Update(svMessage(2, sv(0, 1, 10)))

	m.Reset()

	if len(m.channels) != 0 {
		t.Fatalf("channels not cleared: %d", len(m.channels))
	}
	if m.Status().Metric != nil {
		t.Fatal("metric not cleared")
	}
}

func newThresholdMonitor(t *testing.T, threshold, window float64) *CnoThresholdJammingMonitor {
	t.Helper()
	m, err := NewCnoThresholdJammingMonitor(CnoThresholdConfig{
		ReceiverID: testReceiver,
		Threshold:  threshold,
		TimeWindow: window,
	}, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	return m
}

func TestCnoThresholdDefaults(t *testing.T) {
	cfg := DefaultCnoThresholdConfig()
	if !almostEqual(cfg.Threshold, 20) || !almostEqual(cfg.TimeWindow, 5) {
		t.Fatalf("defaults %v/%v, want 20/5", cfg.Threshold, cfg.TimeWindow)
	}
}

func TestCnoThresholdTracksStrongestChannel(t *testing.T) {
	m := newThresholdMonitor(t, 20, 5)

	// Every visible signal is weak: jamming.
	if got := m.Update(svMessage(1, sv(0, 1, 15), sv(0, 2, 15))); got != OutcomeAlarm {
		t.Fatalf("all weak: got %s, want alarm", got)
	}
	st := m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 15) {
		t.Fatalf("metric %v, want 15", st.Metric)
	}

	// One channel recovers; the maximum clears the threshold.
	if got := m.Update(svMessage(2, sv(0, 1, 25), sv(0, 2, 15))); got != OutcomeNominal {
		t.Fatalf("one strong: got %s, want nominal", got)
	}
	st = m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 25) {
		t.Fatalf("metric %v, want 25", st.Metric)
	}
}

// Staleness is judged against the triggering message's time: a channel
// absent from the latest message ages out even though its own stored
// reading was in order when it arrived.
func TestCnoThresholdStalesAgainstMessageTime(t *testing.T) {
	m := newThresholdMonitor(t, 20, 5)

	if got := m.Update(svMessage(1, sv(0, 1, 25), sv(0, 2, 15))); got != OutcomeNominal {
		t.Fatalf("t=1: got %s, want nominal", got)
	}

	// Only the weak channel reports much later; the strong one is stale and
	// excluded, so the metric collapses to the weak reading.
	if got := m.Update(svMessage(82, sv(0, 2, 2))); got != OutcomeAlarm {
		t.Fatalf("t=82: got %s, want alarm", got)
	}
	st := m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 2) {
		t.Fatalf("metric %v, want 2", st.Metric)
	}
	if m.readings[channelKey(0, 1)] != nil {
		t.Fatal("stale channel must be invalidated")
	}
	if got := m.readings[channelKey(0, 2)]; got == nil || !almostEqual(got.time, 82) || !almostEqual(got.cno, 2) {
		t.Fatalf("fresh channel reading wrong: %+v", got)
	}
}

func TestCnoThresholdNoUsableChannels(t *testing.T) {
	m := newThresholdMonitor(t, 20, 5)
	if got := m.Update(validMessage(1)); got != OutcomePending {
		t.Fatalf("no sv data: got %s, want pending", got)
	}
}

func newSpoofingMonitor(t *testing.T, channelID string, threshold float64) *CnoSpoofingMonitor {
	t.Helper()
	m, err := NewCnoSpoofingMonitor(CnoSpoofingConfig{
		ReceiverID: testReceiver,
		ChannelID:  channelID,
		Threshold:  threshold,
	}, testLogger())
	if err != nil {
		t.Fatalf("constructing monitor: %v", err)
	}
	return m
}

func TestCnoSpoofingChannelIDParsing(t *testing.T) {
	m := newSpoofingMonitor(t, "1.2", 51)
	if m.gnssID != 1 || m.svID != 2 {
		t.Fatalf("parsed channel %d.%d, want 1.2", m.gnssID, m.svID)
	}
	if m.ChannelID() != "1.2" {
		t.Fatalf("channel id %q, want 1.2", m.ChannelID())
	}

	for _, bad := range []string{"01", "a.1", "1.b", ""} {
		cfg := CnoSpoofingConfig{ReceiverID: testReceiver, ChannelID: bad, Threshold: 51}
		if _, err := NewCnoSpoofingMonitor(cfg, testLogger()); err == nil {
			t.Fatalf("channel id %q must be rejected", bad)
		} else {
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("channel id %q: expected ConfigError, got %v", bad, err)
			}
		}
	}
}

func TestCnoSpoofingIgnoresOtherChannels(t *testing.T) {
	m := newSpoofingMonitor(t, "0.1", 40)

	if got := m.Update(svMessage(1, sv(1, 1, 12))); got != OutcomePending {
		t.Fatalf("other channel: got %s, want pending", got)
	}
	if got := m.Update(validMessage(2)); got != OutcomePending {
		t.Fatalf("no sv data: got %s, want pending", got)
	}
}

func TestCnoSpoofingStrongSignalAlarms(t *testing.T) {
	m := newSpoofingMonitor(t, "0.1", 40)

	if got := m.Update(svMessage(1, sv(0, 1, 39))); got != OutcomeNominal {
		t.Fatalf("below threshold: got %s, want nominal", got)
	}
	st := m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 39) {
		t.Fatalf("metric %v, want 39", st.Metric)
	}

	if got := m.Update(svMessage(2, sv(0, 1, 41))); got != OutcomeAlarm {
		t.Fatalf("above threshold: got %s, want alarm", got)
	}
	st = m.Status()
	if st.Metric == nil || !almostEqual(*st.Metric, 41) {
		t.Fatalf("metric %v, want 41", st.Metric)
	}
}
