package app

import (
	"context"
	"errors"
	"fmt"

	"pnt-integrity-alerts/internal/alerting"
	"pnt-integrity-alerts/internal/service"
)

// SimulateAlarm pushes a synthetic alarm for a configured monitor through
// the alert channel, verifying routing end to end without real data.
func (a *App) SimulateAlarm(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	entries, err := service.BuildMonitors(a.Config.Monitors, a.Logger)
	if err != nil {
		return err
	}

	var target *service.Entry
	for _, entry := range entries {
		if entry.Name == opts.Monitor {
			target = entry
			break
		}
	}
	if target == nil {
		return fmt.Errorf("monitor %q is not configured", opts.Monitor)
	}

	status := target.Monitor.Status()
	metric := opts.Metric

	note := alerting.Notification{
		Monitor:       target.Name,
		MonitorType:   target.Type,
		ReceiverID:    "simulated",
		Metric:        &metric,
		Threshold:     status.Threshold,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "This is a simulated alarm.",
	}

	a.Logger.Info().Str("monitor", target.Name).Float64("metric", metric).Msg("dispatching simulated alarm")
	return notifier.Notify(ctx, note)
}
