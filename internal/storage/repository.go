package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSnapshotSQL = `INSERT INTO status_snapshots (
        monitor,
        monitor_type,
        receiver_id,
        rx_time,
        metric,
        threshold,
        alarm,
        spoofing_flag
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listSnapshotsBetweenSQL = `SELECT
        monitor,
        monitor_type,
        receiver_id,
        rx_time,
        metric,
        threshold,
        alarm,
        spoofing_flag,
        created_at
    FROM status_snapshots
    WHERE monitor = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY created_at;`

	listRecentSnapshotsSQL = `SELECT
        monitor,
        monitor_type,
        receiver_id,
        rx_time,
        metric,
        threshold,
        alarm,
        spoofing_flag,
        created_at
    FROM status_snapshots
    ORDER BY created_at DESC
    LIMIT $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM status_snapshots;`

	insertAlarmSQL = `INSERT INTO alarms (
        monitor,
        monitor_type,
        receiver_id,
        rx_time,
        metric,
        threshold,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, monitor, monitor_type, receiver_id, rx_time, metric, threshold, channels, created_at;`

	listRecentAlarmsSQL = `SELECT
        id,
        monitor,
        monitor_type,
        receiver_id,
        rx_time,
        metric,
        threshold,
        channels,
        created_at
    FROM alarms
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlarmsBeforeSQL = `DELETE FROM alarms WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for monitor status persistence.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap StatusSnapshot) error
	ListSnapshotsBetween(ctx context.Context, monitor string, from, to time.Time) ([]StatusSnapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]StatusSnapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AlarmStore defines operations for alarm auditing.
type AlarmStore interface {
	InsertAlarm(ctx context.Context, alarm AlarmRecord) (AlarmRecord, error)
	ListRecentAlarms(ctx context.Context, limit int) ([]AlarmRecord, error)
	DeleteAlarmsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to status snapshots and alarms.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSnapshot persists one monitor status observation.
func (s *Store) InsertSnapshot(ctx context.Context, snap StatusSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var metric interface{}
	if snap.Metric != nil {
		metric = snap.Metric.String()
	}

	var flag interface{}
	if snap.SpoofingFlag != nil {
		flag = *snap.SpoofingFlag
	}

	_, execErr := pool.Exec(ctx, insertSnapshotSQL,
		snap.Monitor,
		snap.MonitorType,
		snap.ReceiverID,
		snap.RxTime.String(),
		metric,
		snap.Threshold.String(),
		snap.Alarm,
		flag,
	)
	if execErr != nil {
		return fmt.Errorf("insert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists one monitor's snapshots within a wall-clock window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, monitor string, from, to time.Time) ([]StatusSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, monitor, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	snapshots := make([]StatusSnapshot, 0)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// ListRecentSnapshots lists the most recent snapshots across all monitors.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]StatusSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	snapshots := make([]StatusSnapshot, 0, limit)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlarm persists an alarm transition.
func (s *Store) InsertAlarm(ctx context.Context, alarm AlarmRecord) (AlarmRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlarmRecord{}, err
	}

	var metric interface{}
	if alarm.Metric != nil {
		metric = alarm.Metric.String()
	}

	row := pool.QueryRow(ctx, insertAlarmSQL,
		alarm.Monitor,
		alarm.MonitorType,
		alarm.ReceiverID,
		alarm.RxTime.String(),
		metric,
		alarm.Threshold.String(),
		alarm.Channels,
	)

	var rec AlarmRecord
	var rxTimeStr, thresholdStr string
	var metricStr sql.NullString
	if scanErr := row.Scan(
		&rec.ID,
		&rec.Monitor,
		&rec.MonitorType,
		&rec.ReceiverID,
		&rxTimeStr,
		&metricStr,
		&thresholdStr,
		&rec.Channels,
		&rec.CreatedAt,
	); scanErr != nil {
		return AlarmRecord{}, fmt.Errorf("insert alarm: %w", scanErr)
	}

	var convErr error
	rec.RxTime, convErr = decimal.NewFromString(rxTimeStr)
	if convErr != nil {
		return AlarmRecord{}, fmt.Errorf("parse rx time: %w", convErr)
	}
	rec.Threshold, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return AlarmRecord{}, fmt.Errorf("parse threshold: %w", convErr)
	}
	if metricStr.Valid {
		value, parseErr := decimal.NewFromString(metricStr.String)
		if parseErr != nil {
			return AlarmRecord{}, fmt.Errorf("parse metric: %w", parseErr)
		}
		rec.Metric = &value
	}

	return rec, nil
}

// ListRecentAlarms lists most recent alarms.
func (s *Store) ListRecentAlarms(ctx context.Context, limit int) ([]AlarmRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlarmsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alarms: %w", queryErr)
	}
	defer rows.Close()

	alarms := make([]AlarmRecord, 0, limit)
	for rows.Next() {
		var rec AlarmRecord
		var rxTimeStr, thresholdStr string
		var metricStr sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.Monitor,
			&rec.MonitorType,
			&rec.ReceiverID,
			&rxTimeStr,
			&metricStr,
			&thresholdStr,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.RxTime, convErr = decimal.NewFromString(rxTimeStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse rx time: %w", convErr)
		}
		rec.Threshold, convErr = decimal.NewFromString(thresholdStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse threshold: %w", convErr)
		}
		if metricStr.Valid {
			value, parseErr := decimal.NewFromString(metricStr.String)
			if parseErr != nil {
				return nil, fmt.Errorf("parse metric: %w", parseErr)
			}
			rec.Metric = &value
		}

		alarms = append(alarms, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alarms, nil
}

// DeleteAlarmsBefore deletes historical alarms.
func (s *Store) DeleteAlarmsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlarmsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alarms before: %w", execErr)
	}
	return nil
}

func scanSnapshot(rows pgx.Rows) (StatusSnapshot, error) {
	var (
		monitor      string
		monitorType  string
		receiverID   string
		rxTimeStr    string
		metricStr    sql.NullString
		thresholdStr string
		alarm        bool
		flag         sql.NullBool
		createdAt    time.Time
	)

	if err := rows.Scan(
		&monitor,
		&monitorType,
		&receiverID,
		&rxTimeStr,
		&metricStr,
		&thresholdStr,
		&alarm,
		&flag,
		&createdAt,
	); err != nil {
		return StatusSnapshot{}, err
	}

	rxTime, err := decimal.NewFromString(rxTimeStr)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("parse rx time: %w", err)
	}
	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("parse threshold: %w", err)
	}

	snap := StatusSnapshot{
		Monitor:     monitor,
		MonitorType: monitorType,
		ReceiverID:  receiverID,
		RxTime:      rxTime,
		Threshold:   threshold,
		Alarm:       alarm,
		CreatedAt:   createdAt,
	}

	if metricStr.Valid {
		value, parseErr := decimal.NewFromString(metricStr.String)
		if parseErr != nil {
			return StatusSnapshot{}, fmt.Errorf("parse metric: %w", parseErr)
		}
		snap.Metric = &value
	}
	if flag.Valid {
		value := flag.Bool
		snap.SpoofingFlag = &value
	}

	return snap, nil
}
