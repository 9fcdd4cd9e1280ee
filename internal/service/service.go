// Package service orchestrates the monitoring pipeline: it feeds ingested
// messages to the configured monitors, persists alarm transitions and status
// snapshots, and dispatches notifications with a cooldown.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pnt-integrity-alerts/internal/alerting"
	"pnt-integrity-alerts/internal/config"
	"pnt-integrity-alerts/internal/ingest"
	"pnt-integrity-alerts/internal/monitor"
	"pnt-integrity-alerts/internal/storage"
)

// Entry binds a configured monitor to its label and type name.
type Entry struct {
	Name    string
	Type    string
	Monitor monitor.Monitor

	// edge-trigger bookkeeping: a notification fires on the transition into
	// alarm, then again only after the alarm clears or the cooldown expires.
	alarmed     bool
	lastAlertAt time.Time

	// provenance of the last accepted message, recorded for snapshots.
	lastReceiver string
	lastRxTime   float64
}

// BuildMonitors constructs one monitor per configured spec.
func BuildMonitors(specs []config.MonitorSpec, logger zerolog.Logger) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(specs))
	for _, spec := range specs {
		m, err := monitor.New(spec.Type, spec.Params, logger)
		if err != nil {
			return nil, fmt.Errorf("monitor %q: %w", spec.Label(), err)
		}
		entries = append(entries, &Entry{
			Name:    spec.Label(),
			Type:    spec.Type,
			Monitor: m,
		})
	}
	return entries, nil
}

// Service drives messages through the monitors and handles the side effects.
type Service struct {
	entries    []*Entry
	alarmStore storage.AlarmStore
	snapStore  storage.SnapshotStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	channels  []string
	alertsOn  bool
	cooldown  time.Duration
	retention time.Duration
	locker    storage.AdvisoryLocker
	lockKey   int64

	now func() time.Time
}

// New constructs the monitoring service. Store interfaces and the notifier
// may be nil; the corresponding side effects are then skipped.
func New(cfg *config.Config, entries []*Entry, alarmStore storage.AlarmStore, snapStore storage.SnapshotStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := alarmStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		entries:    entries,
		alarmStore: alarmStore,
		snapStore:  snapStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		cooldown:   cfg.Alerting.Cooldown,
		retention:  cfg.Alerting.Retention,
		locker:     locker,
		lockKey:    cfg.Snapshot.AdvisoryLockKey,
		now:        time.Now,
	}
}

// Run consumes the source until it is exhausted or the context is cancelled.
// An advisory lock, when configured, keeps a second instance from consuming
// the same stream against the same database.
func (s *Service) Run(ctx context.Context, src ingest.Source) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		return errors.New("advisory lock held by another instance")
	}
	if unlock != nil {
		defer unlock()
	}

	for {
		msg, err := src.Next(ctx)
		if errors.Is(err, ingest.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return err
		}
		s.Process(ctx, msg)
	}
}

// Process feeds one message to every monitor and reacts to the outcomes.
func (s *Service) Process(ctx context.Context, msg monitor.Message) {
	for _, entry := range s.entries {
		outcome := entry.Monitor.Update(msg)

		if outcome != monitor.OutcomeRejected {
			entry.lastReceiver = msg.ReceiverID
			entry.lastRxTime = msg.RxTime
		}

		switch outcome {
		case monitor.OutcomeAlarm:
			s.handleAlarm(ctx, entry, msg)
		case monitor.OutcomeNominal:
			if entry.alarmed {
				s.logger.Info().Str("monitor", entry.Name).
					Float64("rx_time", msg.RxTime).
					Msg("alarm cleared")
			}
			entry.alarmed = false
		}
	}
}

func (s *Service) handleAlarm(ctx context.Context, entry *Entry, msg monitor.Message) {
	status := entry.Monitor.Status()

	s.logger.Warn().Str("monitor", entry.Name).
		Str("receiver", msg.ReceiverID).
		Float64("rx_time", msg.RxTime).
		Msg("monitor alarm")

	already := entry.alarmed
	entry.alarmed = true

	if already && (s.cooldown <= 0 || s.now().Sub(entry.lastAlertAt) < s.cooldown) {
		return
	}
	entry.lastAlertAt = s.now()

	if s.alarmStore != nil {
		record := storage.AlarmRecord{
			Monitor:     entry.Name,
			MonitorType: entry.Type,
			ReceiverID:  msg.ReceiverID,
			RxTime:      decimal.NewFromFloat(msg.RxTime),
			Threshold:   decimal.NewFromFloat(status.Threshold),
			Channels:    s.channels,
		}
		if status.Metric != nil {
			metric := decimal.NewFromFloat(*status.Metric)
			record.Metric = &metric
		}
		if _, err := s.alarmStore.InsertAlarm(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("monitor", entry.Name).Msg("failed to persist alarm record")
		}
		if s.retention > 0 {
			cutoff := s.now().Add(-s.retention)
			if err := s.alarmStore.DeleteAlarmsBefore(ctx, cutoff); err != nil {
				s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to prune alarm records")
			}
		}
	}

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			Monitor:     entry.Name,
			MonitorType: entry.Type,
			ReceiverID:  msg.ReceiverID,
			RxTime:      msg.RxTime,
			Metric:      status.Metric,
			Threshold:   status.Threshold,
			Channels:    s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("monitor", entry.Name).Msg("failed to dispatch alarm")
		}
	}
}

// FlushSnapshots persists the current status of every monitor.
func (s *Service) FlushSnapshots(ctx context.Context) error {
	if s.snapStore == nil {
		return nil
	}

	var firstErr error
	for _, entry := range s.entries {
		status := entry.Monitor.Status()
		snap := storage.StatusSnapshot{
			Monitor:     entry.Name,
			MonitorType: entry.Type,
			ReceiverID:  entry.lastReceiver,
			RxTime:      decimal.NewFromFloat(entry.lastRxTime),
			Threshold:   decimal.NewFromFloat(status.Threshold),
			Alarm:       status.Alarm,
		}
		if status.Metric != nil {
			metric := decimal.NewFromFloat(*status.Metric)
			snap.Metric = &metric
		}
		if status.SpoofingFlag != nil {
			flag := *status.SpoofingFlag
			snap.SpoofingFlag = &flag
		}
		if err := s.snapStore.InsertSnapshot(ctx, snap); err != nil {
			s.logger.Error().Err(err).Str("monitor", entry.Name).Msg("failed to persist snapshot")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Entries exposes the configured monitors for status reporting.
func (s *Service) Entries() []*Entry {
	return s.entries
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
