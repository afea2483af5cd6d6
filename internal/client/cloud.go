package client

import (
	"context"
	"fmt"
	"time"

	"github.com/mdouchement/notepad/internal/notes"
	"github.com/mdouchement/notepad/internal/realtime"
	"github.com/pkg/errors"
)

// Cloud enables, disables or reports the cloud sync.
func (app *App) Cloud(ctx context.Context, action string) error {
	switch action {
	case "enable":
		if app.Mirror == nil {
			return ErrNoBackend
		}
		return app.Reconciler.EnableCloudSync(ctx)
	case "disable":
		return app.Reconciler.DisableCloudSync()
	case "status", "":
		return app.Status()
	}
	return errors.Errorf("unknown action %q, expected enable, disable or status", action)
}

// Status prints the sync state.
func (app *App) Status() error {
	r := app.Reconciler

	state := "disabled"
	if r.CloudEnabled() {
		state = "enabled"
	}
	backend := "none"
	if app.Config.CloudConfigured() {
		backend = app.Config.Endpoint
	}

	var pending int
	for _, n := range r.Notes() {
		if n.IsLocal {
			pending++
		}
	}

	fmt.Fprintf(app.Out, "cloud sync: %s\n", state)
	fmt.Fprintf(app.Out, "backend: %s\n", backend)
	fmt.Fprintf(app.Out, "device id: %s\n", r.DeviceID())
	fmt.Fprintf(app.Out, "sync id: %s\n", r.AnonymousUserID())
	fmt.Fprintf(app.Out, "notes: %d (%d local only)\n", len(r.Notes()), pending)
	if last := r.LastSyncTime(); last != nil {
		fmt.Fprintf(app.Out, "last sync: %s\n", last.Local().Format(time.DateTime))
	}
	return nil
}

// Pull replaces the mirrored notes with the remote ones.
func (app *App) Pull(ctx context.Context) error {
	if err := app.ensureCloud(); err != nil {
		return err
	}
	return app.Reconciler.LoadNotesFromRemote(ctx)
}

// Sync pushes the local-only notes.
func (app *App) Sync(ctx context.Context) error {
	if err := app.ensureCloud(); err != nil {
		return err
	}
	return app.Reconciler.SyncWithRemote(ctx)
}

// Watch keeps the notes up to date until ctx is done.
// Changes made by other devices are loaded as they happen when realtime is enabled,
// and local-only notes are pushed when the backend becomes reachable again when auto sync is enabled.
func (app *App) Watch(ctx context.Context, interval time.Duration) error {
	if err := app.ensureCloud(); err != nil {
		return err
	}
	if interval <= 0 {
		interval = notes.MonitorInterval
	}
	r := app.Reconciler

	listener := realtime.NewListener(app.Mirror, r, r.DeviceID(), app.Notifier, app.Logger)
	defer listener.Close()

	configure := func(ctx context.Context) {
		if !app.Config.Realtime {
			return
		}
		if err := listener.Configure(ctx, r.CloudEnabled(), r.AnonymousUserID()); err != nil {
			app.Logger.WithError(err).Error("Could not listen note changes")
		}
	}

	monitor := notes.NewMonitor(app.Mirror, interval, app.Logger)
	monitor.OnOffline = func(err error) {
		fmt.Fprintf(app.Out, "! Offline: %s\n", err)
	}
	monitor.OnOnline = func(ctx context.Context) {
		fmt.Fprintln(app.Out, "* Online")
		if app.Config.AutoSync {
			notes.AutoSync(r)(ctx)
		}
		configure(ctx)
	}

	if monitor.Check(ctx) {
		if err := r.LoadNotesFromRemote(ctx); err != nil {
			app.Logger.WithError(err).Error("Could not load notes")
		}
		configure(ctx)
	}

	fmt.Fprintln(app.Out, "Watching note changes, Ctrl-C to exit.")

	// The change stream may be terminated by the backend, it is re-established on the next tick.
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if monitor.Online() {
					configure(ctx)
				}
			}
		}
	}()

	return monitor.Run(ctx)
}

func (app *App) ensureCloud() error {
	if app.Mirror == nil {
		return ErrNoBackend
	}
	if !app.Reconciler.CloudEnabled() {
		return errors.New("cloud sync is disabled, run `notepad cloud enable`")
	}
	return nil
}
