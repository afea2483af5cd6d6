// Package client implements the commands of the notepad CLI.
package client

import (
	"io"
	"os"

	"github.com/mdouchement/notepad/internal/device"
	"github.com/mdouchement/notepad/internal/logger"
	"github.com/mdouchement/notepad/internal/mirror"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoBackend is returned by commands that need a configured backend.
var ErrNoBackend = errors.New("no backend configured, run `notepad init`")

// An App holds everything a command needs.
type App struct {
	Config     Config
	Logger     logrus.FieldLogger
	Notifier   notify.Notifier
	Out        io.Writer
	Store      store.Store
	Mirror     *mirror.Mirror // nil without backend
	Reconciler *notes.Reconciler
}

// Open opens the local store and builds the reconciler.
func Open(cfg Config, version string, debug bool, out io.Writer) (*App, error) {
	if out == nil {
		out = os.Stdout
	}

	log := logger.New(cfg.LogFile, debug)
	app := &App{
		Config:   cfg,
		Logger:   log,
		Notifier: notify.Multi(notify.NewWriter(out), notify.NewLogger(log)),
		Out:      out,
	}

	s, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "could not open local store")
	}
	app.Store = s

	nctx := &notes.Context{
		Store:      s,
		Notifier:   app.Notifier,
		Logger:     log,
		UserAgent:  device.UserAgent(version),
		DeviceName: hostname(),
	}

	if cfg.CloudConfigured() {
		c, err := libsupa.NewDefaultClient(cfg.Endpoint, cfg.AnonKey)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "could not create backend client")
		}
		app.Mirror = mirror.New(c)
		nctx.Remote = app.Mirror
	}

	app.Reconciler, err = notes.New(nctx)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "could not load notes")
	}

	log.WithFields(logrus.Fields{
		"device_id": app.Reconciler.DeviceID(),
		"cloud":     app.Reconciler.CloudEnabled(),
	}).Debug("Notepad opened")
	return app, nil
}

// Close releases the local store.
func (app *App) Close() error {
	return app.Store.Close()
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
