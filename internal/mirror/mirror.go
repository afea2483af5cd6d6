package mirror

import (
	"context"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

// Channel is the name of the change stream channel of the notes table.
const Channel = "notes-changes"

// A Mirror issues read/insert/update/soft-delete operations against the remote datastore.
// Every operation is scoped by the anonymous user identifier.
type Mirror struct {
	client libsupa.Client
	schema string
}

// New returns a new Mirror.
func New(client libsupa.Client) *Mirror {
	return &Mirror{
		client: client,
		schema: "public",
	}
}

// Ping checks that the remote datastore is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx)
}

// FetchNotes returns all non-deleted notes of the given scope, most recently updated first.
func (m *Mirror) FetchNotes(ctx context.Context, anonymousUserID string) ([]model.Note, error) {
	q := libsupa.NewQuery().
		Eq("anonymous_user_id", anonymousUserID).
		Eq("is_deleted", false).
		Order("updated_at", false)

	notes := []model.Note{}
	err := m.client.Select(ctx, model.TableNotes, q, &notes)
	return notes, errors.Wrap(err, "could not fetch notes")
}

// PushNote inserts or replaces the given note, keyed by its identifier.
func (m *Mirror) PushNote(ctx context.Context, note model.Note) (model.Note, error) {
	if note.ID == "" {
		return note, errors.New("could not push a note without identifier")
	}
	note.IsDeleted = false

	var saved []model.Note
	if err := m.client.Upsert(ctx, model.TableNotes, note, &saved); err != nil {
		return note, errors.Wrap(err, "could not push note")
	}
	if len(saved) == 0 {
		return note, nil
	}
	return saved[0], nil
}

// SoftDeleteNote marks the note as deleted, the row is retained.
func (m *Mirror) SoftDeleteNote(ctx context.Context, id, anonymousUserID string) error {
	q := libsupa.NewQuery().
		Eq("id", id).
		Eq("anonymous_user_id", anonymousUserID)

	err := m.client.Update(ctx, model.TableNotes, q, map[string]any{"is_deleted": true}, nil)
	return errors.Wrap(err, "could not delete note")
}

// RegisterDevice inserts or replaces the device record.
func (m *Mirror) RegisterDevice(ctx context.Context, device model.Device) error {
	err := m.client.Upsert(ctx, model.TableDevices, device, nil)
	return errors.Wrap(err, "could not register device")
}

// TouchDevice updates the last seen timestamp of the device.
func (m *Mirror) TouchDevice(ctx context.Context, deviceID string, at time.Time) error {
	q := libsupa.NewQuery().Eq("device_id", deviceID)

	err := m.client.Update(ctx, model.TableDevices, q, map[string]any{"last_seen": at.UTC()}, nil)
	return errors.Wrap(err, "could not update device")
}

// RecordSync inserts or replaces the sync status of the device.
func (m *Mirror) RecordSync(ctx context.Context, status model.SyncStatus) error {
	err := m.client.Upsert(ctx, model.TableSyncStatus, status, nil)
	return errors.Wrap(err, "could not record sync status")
}

// Subscribe opens a change stream of the notes table filtered on the given scope.
func (m *Mirror) Subscribe(ctx context.Context, anonymousUserID string, handler func(libsupa.ChangeEvent)) (*libsupa.Subscription, error) {
	filter := libsupa.ChangeFilter{
		Event:  libsupa.EventTypeAll,
		Schema: m.schema,
		Table:  model.TableNotes,
		Filter: libsupa.Filter{Column: "anonymous_user_id", Operator: libsupa.OperatorEq, Value: anonymousUserID}.String(),
	}

	sub, err := m.client.Subscribe(ctx, Channel, filter, handler)
	return sub, errors.Wrap(err, "could not subscribe to note changes")
}
