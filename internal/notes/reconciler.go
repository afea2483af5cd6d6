package notes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdouchement/notepad/internal/device"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/pkg/errors"
)

// ErrNoRemote is returned when cloud sync is enabled without configured backend.
var ErrNoRemote = errors.New("no remote configured")

// A Reconciler owns the note collection.
// It merges remote results into the local state and pushes local-only notes to the remote mirror.
type Reconciler struct {
	app *Context

	// syncmu serializes remote loads and bulk syncs, at most one is in flight.
	syncmu sync.Mutex

	mu              sync.RWMutex
	notes           []Note
	cloudEnabled    bool
	syncing         bool
	lastSync        *time.Time
	deviceID        string
	anonymousUserID string
}

// New returns a new Reconciler initialized from the local store.
// The device and anonymous user identifiers are generated on first run.
func New(app *Context) (*Reconciler, error) {
	if app == nil || app.Store == nil {
		return nil, errors.New("a local store is required")
	}
	app.defaults()

	r := &Reconciler{
		app:   app,
		notes: []Note{},
	}

	var err error
	r.deviceID, err = store.Identifier(app.Store, store.KeyDeviceID, device.NewID)
	if err != nil {
		return nil, errors.Wrap(err, "could not load device identifier")
	}

	r.anonymousUserID, err = store.Identifier(app.Store, store.KeyAnonymousUserID, device.NewAnonymousUserID)
	if err != nil {
		return nil, errors.Wrap(err, "could not load anonymous user identifier")
	}

	if err = app.Store.Get(store.KeyCloudEnabled, &r.cloudEnabled); err != nil && !app.Store.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not load cloud flag")
	}

	if err = app.Store.Get(store.KeyNotes, &r.notes); err != nil && !app.Store.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not load notes")
	}
	if r.notes == nil {
		r.notes = []Note{}
	}

	return r, nil
}

// Notes returns a copy of the note collection, newest first.
func (r *Reconciler) Notes() []Note {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Note{}, r.notes...)
}

// Note returns the note identified by id.
func (r *Reconciler) Note(id string) (Note, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(id); i >= 0 {
		return r.notes[i], true
	}
	return Note{}, false
}

// CloudEnabled returns true when cloud sync is enabled.
func (r *Reconciler) CloudEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cloudEnabled
}

// IsSyncing returns true while a remote load or a bulk sync is in progress.
func (r *Reconciler) IsSyncing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncing
}

// LastSyncTime returns the time of the last remote load or bulk sync.
func (r *Reconciler) LastSyncTime() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.lastSync == nil {
		return nil
	}
	t := *r.lastSync
	return &t
}

// DeviceID returns the device identifier.
func (r *Reconciler) DeviceID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deviceID
}

// AnonymousUserID returns the anonymous user identifier, the scope of all remote operations.
func (r *Reconciler) AnonymousUserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.anonymousUserID
}

// AdoptAnonymousUserID switches the remote scope to the given identifier.
// All notes become local-only so the next sync pushes them to the adopted scope.
// Notes already mirrored in the previous scope get a new identifier.
func (r *Reconciler) AdoptAnonymousUserID(id string) error {
	if id == "" {
		return errors.New("empty anonymous user identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.anonymousUserID {
		return nil
	}

	if err := r.app.Store.Set(store.KeyAnonymousUserID, id); err != nil {
		return err
	}
	r.anonymousUserID = id

	for i := range r.notes {
		// The row of a mirrored note belongs to the previous scope.
		if r.notes[i].CloudID != "" {
			r.notes[i].ID = r.app.NewID()
		}
		r.notes[i].CloudID = ""
		r.notes[i].LastSynced = nil
		r.notes[i].IsLocal = true
	}
	return r.persist()
}

// LoadNotesFromRemote fetches the remote notes and merges them into the collection.
// It does nothing when cloud sync is disabled. On failure the collection is left unchanged.
func (r *Reconciler) LoadNotesFromRemote(ctx context.Context) error {
	enabled, anonymousUserID, _ := r.scope()
	if !enabled || anonymousUserID == "" || r.app.Remote == nil {
		return nil
	}

	r.syncmu.Lock()
	defer r.syncmu.Unlock()

	r.setSyncing(true)
	defer r.setSyncing(false)

	r.app.Logger.WithField("scope", anonymousUserID).Debug("Fetching remote notes")
	rows, err := r.app.Remote.FetchNotes(ctx, anonymousUserID)
	if err != nil {
		r.app.Logger.WithError(err).Error("Could not load notes")
		r.app.Notifier.Notify(notify.Error("Failed to load notes", err))
		return err
	}

	remote := make([]Note, 0, len(rows))
	for _, row := range rows {
		remote = append(remote, FromRow(row))
	}

	r.mu.Lock()
	previous := r.notes
	r.notes = Merge(remote, r.notes)
	if err = r.persist(); err != nil {
		r.notes = previous
		r.mu.Unlock()
		return err
	}
	now := r.now()
	r.lastSync = &now
	r.mu.Unlock()

	r.app.Notifier.Notify(notify.Info("Notes loaded", fmt.Sprintf("Loaded %d notes from cloud.", len(remote))))
	return nil
}

// CreateNote adds a new note at the top of the collection and pushes it when cloud sync is enabled.
// A failed push is notified and the note stays local-only.
func (r *Reconciler) CreateNote(ctx context.Context, title, content string) (Note, error) {
	if title == "" {
		title = DefaultTitle
	}

	r.mu.Lock()
	now := r.now()
	note := Note{
		ID:         r.app.NewID(),
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		DeviceInfo: device.Label(r.app.UserAgent),
		IsLocal:    true, // Until the remote mirror confirms it
	}

	r.notes = append([]Note{note}, r.notes...)
	if err := r.persist(); err != nil {
		r.notes = r.notes[1:]
		r.mu.Unlock()
		return Note{}, err
	}
	enabled := r.cloudEnabled
	r.mu.Unlock()

	if !enabled {
		return note, nil
	}

	if pushed, err := r.push(ctx, note); err == nil {
		note = pushed
	}
	return note, nil
}

// UpdateNote applies the patch on the note identified by id and pushes it when cloud sync is enabled.
// Unknown identifiers are ignored and a zero Note is returned.
func (r *Reconciler) UpdateNote(ctx context.Context, id string, p Patch) (Note, error) {
	r.mu.Lock()
	i := r.index(id)
	if i < 0 {
		r.mu.Unlock()
		r.app.Logger.WithField("id", id).Debug("Update of an unknown note")
		return Note{}, nil
	}

	previous := r.notes[i]
	note := previous
	p.apply(&note)
	note.UpdatedAt = r.tick(previous.UpdatedAt)
	note.DeviceInfo = device.Label(r.app.UserAgent)

	r.notes[i] = note
	if err := r.persist(); err != nil {
		r.notes[i] = previous
		r.mu.Unlock()
		return Note{}, err
	}
	enabled := r.cloudEnabled
	r.mu.Unlock()

	if !enabled {
		return note, nil
	}

	if pushed, err := r.push(ctx, note); err == nil {
		note = pushed
	}
	return note, nil
}

// DeleteNote removes the note from the collection and soft-deletes its remote copy.
// The local removal is final even if the remote call fails.
func (r *Reconciler) DeleteNote(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.index(id)
	if i < 0 {
		r.mu.Unlock()
		return nil
	}

	note := r.notes[i]
	previous := r.notes
	r.notes = append(append([]Note{}, r.notes[:i]...), r.notes[i+1:]...)
	if err := r.persist(); err != nil {
		r.notes = previous
		r.mu.Unlock()
		return err
	}
	enabled := r.cloudEnabled
	anonymousUserID := r.anonymousUserID
	r.mu.Unlock()

	if note.CloudID == "" || !enabled || r.app.Remote == nil {
		return nil
	}

	if err := r.app.Remote.SoftDeleteNote(ctx, note.CloudID, anonymousUserID); err != nil {
		r.app.Logger.WithError(err).WithField("id", note.ID).Error("Could not delete remote note")
		r.app.Notifier.Notify(notify.Error("Failed to delete note from cloud", err))
	}
	return nil
}

// EnableCloudSync turns cloud sync on, registers the device,
// loads the remote notes and pushes the local-only ones.
func (r *Reconciler) EnableCloudSync(ctx context.Context) error {
	if r.app.Remote == nil {
		return ErrNoRemote
	}

	if err := r.setCloudEnabled(true); err != nil {
		return err
	}
	_, anonymousUserID, deviceID := r.scope()

	now := r.now()
	err := r.app.Remote.RegisterDevice(ctx, model.Device{
		DeviceID:        deviceID,
		DeviceName:      model.String(r.app.DeviceName),
		DeviceType:      model.String(device.Class(r.app.UserAgent)),
		AnonymousUserID: anonymousUserID,
		LastSeen:        &now,
		CreatedAt:       &now,
	})
	if err != nil {
		r.app.Logger.WithError(err).Warn("Could not register device")
	}

	r.app.Notifier.Notify(notify.Info("Cloud enabled", "Your notes will now be stored in the cloud."))

	if err = r.LoadNotesFromRemote(ctx); err != nil {
		return err
	}
	return r.SyncWithRemote(ctx)
}

// DisableCloudSync turns cloud sync off.
// Cloud metadata of mirrored notes are kept so enabling it again resumes on the same remote records.
func (r *Reconciler) DisableCloudSync() error {
	if err := r.setCloudEnabled(false); err != nil {
		return err
	}

	r.app.Notifier.Notify(notify.Info("Cloud disabled", "Your notes will only be stored locally."))
	return nil
}

//
//
//

func (r *Reconciler) scope() (enabled bool, anonymousUserID, deviceID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cloudEnabled, r.anonymousUserID, r.deviceID
}

func (r *Reconciler) setSyncing(v bool) {
	r.mu.Lock()
	r.syncing = v
	r.mu.Unlock()
}

func (r *Reconciler) setCloudEnabled(v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.app.Store.Set(store.KeyCloudEnabled, v); err != nil {
		return err
	}
	r.cloudEnabled = v
	return nil
}

// push writes the note to the remote mirror and marks it as mirrored.
// Failures are notified and returned.
func (r *Reconciler) push(ctx context.Context, note Note) (Note, error) {
	enabled, anonymousUserID, deviceID := r.scope()
	if !enabled || r.app.Remote == nil {
		return note, ErrNoRemote
	}

	r.app.Logger.WithField("id", note.ID).Debug("Pushing note")
	if _, err := r.app.Remote.PushNote(ctx, note.Row(deviceID, anonymousUserID)); err != nil {
		r.app.Logger.WithError(err).WithField("id", note.ID).Error("Could not push note")
		r.app.Notifier.Notify(notify.Error("Failed to save note", err))
		return note, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	synced := r.now()
	if note.CloudID == "" {
		note.CloudID = note.ID
	}
	note.LastSynced = &synced
	note.IsLocal = false

	i := r.index(note.ID)
	if i < 0 {
		// Deleted while pushing.
		return note, nil
	}

	current := r.notes[i]
	if current.UpdatedAt.After(note.UpdatedAt) {
		// Edited while pushing, the newer version has its own push.
		current.CloudID = note.CloudID
		r.notes[i] = current
	} else {
		r.notes[i] = note
	}

	if err := r.persist(); err != nil {
		r.app.Logger.WithError(err).Error("Could not persist pushed note")
	}
	return note, nil
}

// persist writes the collection to the local store. mu must be held.
func (r *Reconciler) persist() error {
	return errors.Wrap(r.app.Store.Set(store.KeyNotes, r.notes), "could not persist notes")
}

// index returns the position of the note in the collection or -1. mu must be held.
func (r *Reconciler) index(id string) int {
	for i := range r.notes {
		if r.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) now() time.Time {
	return r.app.Now().UTC().Truncate(time.Millisecond)
}

// tick returns the current time, strictly after previous.
func (r *Reconciler) tick(previous time.Time) time.Time {
	now := r.now()
	if !now.After(previous) {
		now = previous.Add(time.Millisecond)
	}
	return now
}
