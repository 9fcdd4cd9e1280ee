package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pnt-integrity-alerts/internal/alerting"
	"pnt-integrity-alerts/internal/config"
	"pnt-integrity-alerts/internal/ingest"
	"pnt-integrity-alerts/internal/monitor"
	"pnt-integrity-alerts/internal/storage"
)

type scriptedMonitor struct {
	outcomes []monitor.Outcome
	next     int
	status   monitor.Status
}

func (m *scriptedMonitor) Update(msg monitor.Message) monitor.Outcome {
	if m.next >= len(m.outcomes) {
		return monitor.OutcomePending
	}
	out := m.outcomes[m.next]
	m.next++
	return out
}

func (m *scriptedMonitor) Reset()                 {}
func (m *scriptedMonitor) Status() monitor.Status { return m.status }

type captureAlarmStore struct {
	records []storage.AlarmRecord
	pruned  []time.Time
}

func (s *captureAlarmStore) InsertAlarm(ctx context.Context, rec storage.AlarmRecord) (storage.AlarmRecord, error) {
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *captureAlarmStore) ListRecentAlarms(ctx context.Context, limit int) ([]storage.AlarmRecord, error) {
	return s.records, nil
}

func (s *captureAlarmStore) DeleteAlarmsBefore(ctx context.Context, olderThan time.Time) error {
	s.pruned = append(s.pruned, olderThan)
	return nil
}

type captureSnapshotStore struct {
	snapshots []storage.StatusSnapshot
}

func (s *captureSnapshotStore) InsertSnapshot(ctx context.Context, snap storage.StatusSnapshot) error {
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *captureSnapshotStore) ListSnapshotsBetween(ctx context.Context, monitorName string, from, to time.Time) ([]storage.StatusSnapshot, error) {
	return s.snapshots, nil
}

func (s *captureSnapshotStore) ListRecentSnapshots(ctx context.Context, limit int) ([]storage.StatusSnapshot, error) {
	return s.snapshots, nil
}

func (s *captureSnapshotStore) CountSnapshots(ctx context.Context) (int64, error) {
	return int64(len(s.snapshots)), nil
}

type captureNotifier struct {
	notes []alerting.Notification
}

func (n *captureNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	n.notes = append(n.notes, note)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Alerting.Enabled = true
	cfg.Alerting.Cooldown = 10 * time.Minute
	cfg.Alerting.Channels = []string{"telegram"}
	return cfg
}

func msgAt(t float64) monitor.Message {
	return monitor.Message{RxTime: t, ReceiverID: "Test Rx", Validity: true}
}

func TestBuildMonitorsFromSpecs(t *testing.T) {
	specs := []config.MonitorSpec{
		{Name: "clock", Type: "ClockRateMonitor", Params: map[string]any{"threshold": 0.5}},
		{Type: "CnoSpoofingMonitor"},
	}
	entries, err := BuildMonitors(specs, zerolog.Nop())
	if err != nil {
		t.Fatalf("build monitors: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "clock" || entries[1].Name != "CnoSpoofingMonitor" {
		t.Fatalf("unexpected labels: %q, %q", entries[0].Name, entries[1].Name)
	}
}

func TestBuildMonitorsRejectsUnknownType(t *testing.T) {
	if _, err := BuildMonitors([]config.MonitorSpec{{Type: "NopeMonitor"}}, zerolog.Nop()); err == nil {
		t.Fatal("unknown monitor type should fail")
	}
}

func TestProcessEdgeTriggeredAlerts(t *testing.T) {
	metric := 7.5
	mon := &scriptedMonitor{
		outcomes: []monitor.Outcome{
			monitor.OutcomePending,
			monitor.OutcomeAlarm,
			monitor.OutcomeAlarm, // still in alarm, within cooldown
			monitor.OutcomeNominal,
			monitor.OutcomeAlarm, // re-entry after clearing
		},
		status: monitor.Status{Alarm: true, Metric: &metric, Threshold: 5},
	}
	entries := []*Entry{{Name: "stationary", Type: "StationaryPositionMonitor", Monitor: mon}}

	alarms := &captureAlarmStore{}
	notifier := &captureNotifier{}
	svc := New(testConfig(), entries, alarms, nil, notifier, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.Process(ctx, msgAt(float64(i)))
	}

	if len(notifier.notes) != 2 {
		t.Fatalf("expected 2 notifications (entry and re-entry), got %d", len(notifier.notes))
	}
	if len(alarms.records) != 2 {
		t.Fatalf("expected 2 alarm records, got %d", len(alarms.records))
	}

	note := notifier.notes[0]
	if note.Monitor != "stationary" || note.ReceiverID != "Test Rx" || note.RxTime != 1 {
		t.Fatalf("unexpected notification: %+v", note)
	}
	if note.Metric == nil || *note.Metric != 7.5 {
		t.Fatalf("metric not carried: %+v", note.Metric)
	}

	rec := alarms.records[0]
	if rec.Monitor != "stationary" || rec.MonitorType != "StationaryPositionMonitor" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Metric == nil || rec.Metric.InexactFloat64() != 7.5 {
		t.Fatalf("record metric not carried: %+v", rec.Metric)
	}
}

func TestProcessCooldownExpiryReAlerts(t *testing.T) {
	metric := 1.0
	mon := &scriptedMonitor{
		outcomes: []monitor.Outcome{monitor.OutcomeAlarm, monitor.OutcomeAlarm},
		status:   monitor.Status{Alarm: true, Metric: &metric, Threshold: 0.5},
	}
	entries := []*Entry{{Name: "m", Type: "CCDMonitor", Monitor: mon}}

	notifier := &captureNotifier{}
	svc := New(testConfig(), entries, nil, nil, notifier, zerolog.Nop())

	clock := time.Unix(0, 0)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	svc.Process(ctx, msgAt(1))
	clock = clock.Add(11 * time.Minute)
	svc.Process(ctx, msgAt(2))

	if len(notifier.notes) != 2 {
		t.Fatalf("expected re-alert after cooldown, got %d notifications", len(notifier.notes))
	}
}

func TestProcessPrunesAlarmsPastRetention(t *testing.T) {
	metric := 1.0
	mon := &scriptedMonitor{
		outcomes: []monitor.Outcome{monitor.OutcomeAlarm},
		status:   monitor.Status{Alarm: true, Metric: &metric, Threshold: 0.5},
	}
	entries := []*Entry{{Name: "m", Type: "CCDMonitor", Monitor: mon}}

	cfg := testConfig()
	cfg.Alerting.Retention = 24 * time.Hour

	alarms := &captureAlarmStore{}
	svc := New(cfg, entries, alarms, nil, nil, zerolog.Nop())

	clock := time.Unix(1_000_000, 0)
	svc.now = func() time.Time { return clock }

	svc.Process(context.Background(), msgAt(1))

	if len(alarms.pruned) != 1 {
		t.Fatalf("expected 1 prune call, got %d", len(alarms.pruned))
	}
	if want := clock.Add(-24 * time.Hour); !alarms.pruned[0].Equal(want) {
		t.Fatalf("prune cutoff %v, want %v", alarms.pruned[0], want)
	}
}

func TestProcessNoPruneWithoutRetention(t *testing.T) {
	metric := 1.0
	mon := &scriptedMonitor{
		outcomes: []monitor.Outcome{monitor.OutcomeAlarm},
		status:   monitor.Status{Alarm: true, Metric: &metric, Threshold: 0.5},
	}
	entries := []*Entry{{Name: "m", Type: "CCDMonitor", Monitor: mon}}

	alarms := &captureAlarmStore{}
	svc := New(testConfig(), entries, alarms, nil, nil, zerolog.Nop())

	svc.Process(context.Background(), msgAt(1))

	if len(alarms.pruned) != 0 {
		t.Fatalf("retention disabled: expected no prune calls, got %d", len(alarms.pruned))
	}
}

func TestFlushSnapshots(t *testing.T) {
	metric := 3.0
	flag := true
	mon := &scriptedMonitor{
		outcomes: []monitor.Outcome{monitor.OutcomeNominal},
		status:   monitor.Status{Alarm: false, Metric: &metric, Threshold: 9, SpoofingFlag: &flag},
	}
	entries := []*Entry{{Name: "pos", Type: "StationaryPositionMonitor", Monitor: mon}}

	snaps := &captureSnapshotStore{}
	svc := New(testConfig(), entries, nil, snaps, nil, zerolog.Nop())

	ctx := context.Background()
	svc.Process(ctx, msgAt(42))
	if err := svc.FlushSnapshots(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if len(snaps.snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps.snapshots))
	}
	snap := snaps.snapshots[0]
	if snap.Monitor != "pos" || snap.ReceiverID != "Test Rx" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.RxTime.InexactFloat64() != 42 {
		t.Fatalf("rx_time not carried: %s", snap.RxTime)
	}
	if snap.SpoofingFlag == nil || !*snap.SpoofingFlag {
		t.Fatalf("spoofing flag not carried: %+v", snap.SpoofingFlag)
	}
}

func TestRunDrainsSource(t *testing.T) {
	mon := &scriptedMonitor{outcomes: []monitor.Outcome{monitor.OutcomePending, monitor.OutcomePending}}
	entries := []*Entry{{Name: "m", Type: "CCDMonitor", Monitor: mon}}

	svc := New(testConfig(), entries, nil, nil, nil, zerolog.Nop())
	src := ingest.NewStaticSource([]monitor.Message{msgAt(1), msgAt(2)})

	if err := svc.Run(context.Background(), src); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mon.next != 2 {
		t.Fatalf("expected both messages processed, got %d", mon.next)
	}
}
