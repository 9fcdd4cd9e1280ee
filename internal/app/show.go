package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"pnt-integrity-alerts/internal/storage"
)

// Show prints recent alarm records, or recent status snapshots with
// --snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Snapshots {
		total, err := store.CountSnapshots(ctx)
		if err != nil {
			return err
		}
		snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
		if err != nil {
			return err
		}
		renderSnapshots(os.Stdout, total, snapshots)
		return nil
	}

	alarms, err := store.ListRecentAlarms(ctx, opts.Limit)
	if err != nil {
		return err
	}
	renderAlarms(os.Stdout, alarms)
	return nil
}

func renderAlarms(w io.Writer, alarms []storage.AlarmRecord) {
	if len(alarms) == 0 {
		fmt.Fprintln(w, "no alarms found")
		return
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMonitor\tReceiver\tRx Time\tMetric\tThreshold\tChannels")

	for _, alarm := range alarms {
		metric := "-"
		if alarm.Metric != nil {
			metric = formatDecimal(*alarm.Metric, 4)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alarm.CreatedAt.UTC().Format(time.RFC3339),
			alarm.Monitor,
			sanitizeInline(alarm.ReceiverID),
			alarm.RxTime.String(),
			metric,
			formatDecimal(alarm.Threshold, 4),
			strings.Join(alarm.Channels, ","),
		)
	}

	writer.Flush()
}

func renderSnapshots(w io.Writer, total int64, snapshots []storage.StatusSnapshot) {
	if len(snapshots) == 0 {
		fmt.Fprintln(w, "no snapshots found")
		return
	}

	fmt.Fprintf(w, "%d snapshots stored, showing %d most recent\n", total, len(snapshots))

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMonitor\tReceiver\tRx Time\tMetric\tThreshold\tAlarm\tFlag")

	for _, snap := range snapshots {
		metric := "-"
		if snap.Metric != nil {
			metric = formatDecimal(*snap.Metric, 4)
		}
		flag := "-"
		if snap.SpoofingFlag != nil {
			flag = strconv.FormatBool(*snap.SpoofingFlag)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			snap.CreatedAt.UTC().Format(time.RFC3339),
			snap.Monitor,
			sanitizeInline(snap.ReceiverID),
			snap.RxTime.String(),
			metric,
			formatDecimal(snap.Threshold, 4),
			strconv.FormatBool(snap.Alarm),
			flag,
		)
	}

	writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
