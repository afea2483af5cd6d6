package notes

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/notepad/internal/device"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/sirupsen/logrus"
)

type (
	// A Remote is the remote mirror of the notes.
	// It is implemented by *mirror.Mirror.
	Remote interface {
		FetchNotes(ctx context.Context, anonymousUserID string) ([]model.Note, error)
		PushNote(ctx context.Context, note model.Note) (model.Note, error)
		SoftDeleteNote(ctx context.Context, id, anonymousUserID string) error
		RegisterDevice(ctx context.Context, device model.Device) error
		TouchDevice(ctx context.Context, deviceID string, at time.Time) error
		RecordSync(ctx context.Context, status model.SyncStatus) error
	}

	// A Context holds everything the reconciler depends on.
	// It is built once at startup and lives for the whole process.
	Context struct {
		Store    store.Store
		Remote   Remote // nil when no backend is configured
		Notifier notify.Notifier
		Logger   logrus.FieldLogger

		UserAgent  string
		DeviceName string

		// Now returns the current time, default to time.Now.
		Now func() time.Time
		// NewID generates note identifiers, default to a UUIDv4.
		NewID func() string
	}
)

func (c *Context) defaults() {
	if c.Notifier == nil {
		c.Notifier = notify.Discard
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		c.Logger = l
	}
	if c.UserAgent == "" {
		c.UserAgent = device.UserAgent("dev")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = func() string {
			return uuid.Must(uuid.NewV4()).String()
		}
	}
}
