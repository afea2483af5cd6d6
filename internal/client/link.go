package client

import (
	"context"
	"fmt"

	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/sharelink"
	"github.com/pkg/errors"
)

// ShareURL prints the sync URL of this device.
func (app *App) ShareURL() error {
	base := app.Config.ShareBase
	if base == "" {
		base = app.Config.Endpoint
	}
	if base == "" {
		return errors.New("no share_base nor endpoint configured")
	}

	link, err := sharelink.Generate(base, app.Reconciler.AnonymousUserID())
	if err != nil {
		return err
	}

	fmt.Fprintln(app.Out, link)
	app.Notifier.Notify(notify.Info("Sync URL Generated", "Share this URL to access your notes on another device."))
	return nil
}

// Link reads a sync URL and, when adopt is true, switches this device to its identifier.
func (app *App) Link(ctx context.Context, rawURL string, adopt bool) error {
	r := app.Reconciler

	id, ok := sharelink.Detect(rawURL, r.AnonymousUserID())
	if !ok {
		fmt.Fprintln(app.Out, "This device already uses this sync id.")
		return nil
	}

	if !adopt {
		sharelink.Notify(app.Notifier)
		fmt.Fprintf(app.Out, "Run `notepad link --adopt %s` to use the sync id %s.\n", rawURL, id)
		return nil
	}

	if err := r.AdoptAnonymousUserID(id); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "This device now uses the sync id %s.\n", id)

	if app.Mirror == nil || !r.CloudEnabled() {
		fmt.Fprintln(app.Out, "Enable cloud sync to load shared notes.")
		return nil
	}
	if err := r.LoadNotesFromRemote(ctx); err != nil {
		return err
	}
	return r.SyncWithRemote(ctx)
}
