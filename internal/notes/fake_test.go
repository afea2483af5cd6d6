package notes_test

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// remote is an in-memory remote mirror.
type remote struct {
	mu      sync.Mutex
	rows    map[string]model.Note
	devices map[string]model.Device
	status  map[string]model.SyncStatus
	calls   []string

	failPush   map[string]bool
	failFetch  error
	failDelete error
}

func newRemote() *remote {
	return &remote{
		rows:     map[string]model.Note{},
		devices:  map[string]model.Device{},
		status:   map[string]model.SyncStatus{},
		failPush: map[string]bool{},
	}
}

func (r *remote) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *remote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *remote) FetchNotes(_ context.Context, anonymousUserID string) ([]model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("fetch")

	if r.failFetch != nil {
		return nil, r.failFetch
	}

	var rows []model.Note
	for _, row := range r.rows {
		if row.AnonymousUserID == anonymousUserID && !row.IsDeleted {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].UpdatedAt.After(*rows[j].UpdatedAt)
	})
	return rows, nil
}

func (r *remote) PushNote(_ context.Context, note model.Note) (model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("push:" + note.ID)

	if r.failPush[note.ID] {
		return note, errors.New("push rejected")
	}
	if row, ok := r.rows[note.ID]; ok && row.AnonymousUserID != note.AnonymousUserID {
		return note, errors.New("row belongs to another scope")
	}
	r.rows[note.ID] = note
	return note, nil
}

func (r *remote) SoftDeleteNote(_ context.Context, id, anonymousUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("delete:" + id)

	if r.failDelete != nil {
		return r.failDelete
	}
	row, ok := r.rows[id]
	if ok && row.AnonymousUserID == anonymousUserID {
		row.IsDeleted = true
		r.rows[id] = row
	}
	return nil
}

func (r *remote) RegisterDevice(_ context.Context, device model.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("device")

	r.devices[device.DeviceID] = device
	return nil
}

func (r *remote) TouchDevice(_ context.Context, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("touch")

	if d, ok := r.devices[deviceID]; ok {
		d.LastSeen = &at
		r.devices[deviceID] = d
	}
	return nil
}

func (r *remote) RecordSync(_ context.Context, status model.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("sync_status")

	r.status[status.ID] = status
	return nil
}

func (r *remote) Rows() map[string]model.Note {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := map[string]model.Note{}
	for k, v := range r.rows {
		rows[k] = v
	}
	return rows
}

//
// Helpers
//

type fixture struct {
	reconciler *notes.Reconciler
	remote     *remote
	notifier   *notify.Recorder
	store      store.Store
}

func setup(t *testing.T, rmt *remote) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "notepad.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	return setupWithStore(t, s, rmt)
}

func setupWithStore(t *testing.T, s store.Store, rmt *remote) *fixture {
	t.Helper()

	f := &fixture{
		remote:   rmt,
		notifier: &notify.Recorder{},
		store:    s,
	}

	app := &notes.Context{
		Store:     s,
		Notifier:  f.notifier,
		UserAgent: "notepad/test (Linux; amd64)",
	}
	if rmt != nil {
		app.Remote = rmt
	}

	var err error
	f.reconciler, err = notes.New(app)
	require.NoError(t, err)

	return f
}
