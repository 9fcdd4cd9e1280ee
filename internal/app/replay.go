package app

import (
	"context"
	"errors"
	"os"

	"pnt-integrity-alerts/internal/ingest"
)

// Replay runs the configured monitors over a recorded NDJSON stream.
// Snapshots are flushed once at the end rather than on a wall-clock timer;
// replayed history is processed far faster than it was recorded.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	path := opts.Path
	if path == "" {
		path = a.Config.Replay.Path
	}
	if path == "" {
		return errors.New("no replay file given; set --file or replay.path")
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		file.Close()
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc, err := a.newService(store)
	if err != nil {
		file.Close()
		return err
	}

	src := ingest.NewNDJSONSource(file, a.Logger)
	defer src.Close()

	a.Logger.Info().Str("path", path).Int("monitors", len(svc.Entries())).Msg("replaying recorded stream")
	if err := svc.Run(ctx, src); err != nil {
		return err
	}

	if store != nil {
		if err := svc.FlushSnapshots(ctx); err != nil {
			return err
		}
	}

	a.Logger.Info().Msg("replay complete")
	return nil
}
