package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mdouchement/notepad/internal/backup"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/pkg/errors"
)

// Export writes all the notes in a backup file of the given directory.
// The backup is uploaded on the configured object storage when s3 is true.
func (app *App) Export(ctx context.Context, dir string, s3 bool) error {
	r := app.Reconciler
	now := time.Now()

	document := backup.NewDocument(r.Notes(), r.DeviceID(), r.AnonymousUserID(), now)
	name := backup.Filename(now)

	if s3 {
		uploader, err := backup.NewUploader(app.Config.Backup.S3)
		if err != nil {
			return err
		}

		location, err := uploader.Upload(ctx, name, document)
		if err != nil {
			return err
		}
		app.Notifier.Notify(notify.Info("Backup Created", "All notes have been exported to "+location+"."))
		return nil
	}

	filename := filepath.Join(dir, name)
	if err := document.Save(filename); err != nil {
		return err
	}
	app.Notifier.Notify(notify.Info("Backup Created", fmt.Sprintf("%d notes have been exported to %s.", len(document.Notes), filename)))
	return nil
}

// Import creates notes from a backup or a text file.
func (app *App) Import(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		err = errors.Wrap(err, "could not read file")
		app.Notifier.Notify(notify.Error("Import Failed", err))
		return err
	}

	_, err = backup.Import(ctx, app.Reconciler, app.Notifier, filepath.Base(filename), data)
	return err
}
