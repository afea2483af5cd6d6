package notes_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Identifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notepad.db")

	s, err := store.Open(path)
	require.NoError(t, err)
	f := setupWithStore(t, s, nil)

	assert.Regexp(t, `^device-\d+-[a-z0-9]{9}$`, f.reconciler.DeviceID())
	assert.Regexp(t, `^anon-`, f.reconciler.AnonymousUserID())
	assert.False(t, f.reconciler.CloudEnabled())
	assert.Empty(t, f.reconciler.Notes())

	_, err = f.reconciler.CreateNote(context.Background(), "Persisted", "")
	require.NoError(t, err)

	deviceID := f.reconciler.DeviceID()
	anonymousUserID := f.reconciler.AnonymousUserID()
	require.NoError(t, s.Close())

	// Reload
	s, err = store.Open(path)
	require.NoError(t, err)
	defer s.Close()
	f = setupWithStore(t, s, nil)

	assert.Equal(t, deviceID, f.reconciler.DeviceID())
	assert.Equal(t, anonymousUserID, f.reconciler.AnonymousUserID())
	if assert.Len(t, f.reconciler.Notes(), 1) {
		assert.Equal(t, "Persisted", f.reconciler.Notes()[0].Title)
	}
}

func TestCreateNote_CloudDisabled(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		note, err := f.reconciler.CreateNote(ctx, "", "content")
		require.NoError(t, err)

		assert.NotEmpty(t, note.ID)
		assert.Equal(t, notes.DefaultTitle, note.Title)
		assert.Equal(t, "💻 Desktop", note.DeviceInfo)
		assert.True(t, note.IsLocal)
		assert.Nil(t, note.LastSynced)
		assert.Empty(t, note.CloudID)
	}

	assert.Len(t, f.reconciler.Notes(), 3)
	assert.Empty(t, f.remote.Calls())
}

func TestCreateNote_Prepend(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	a, err := f.reconciler.CreateNote(ctx, "A", "")
	require.NoError(t, err)
	b, err := f.reconciler.CreateNote(ctx, "B", "")
	require.NoError(t, err)

	list := f.reconciler.Notes()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestCreateNote_CloudEnabled(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "Cloud", "content")
	require.NoError(t, err)

	assert.False(t, note.IsLocal)
	assert.NotNil(t, note.LastSynced)
	assert.Equal(t, note.ID, note.CloudID)

	row, ok := f.remote.Rows()[note.ID]
	require.True(t, ok)
	assert.Equal(t, "Cloud", row.Title)
	assert.Equal(t, f.reconciler.AnonymousUserID(), row.AnonymousUserID)
	assert.Equal(t, f.reconciler.DeviceID(), model.Value(row.DeviceID))
}

func TestCreateNote_PushFailure(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))
	f.notifier.Reset()

	ids := []string{"n1"}
	f.reconciler = newWithIDs(t, f, ids)
	rmt.failPush["n1"] = true

	note, err := f.reconciler.CreateNote(ctx, "Failing", "")
	require.NoError(t, err)

	assert.True(t, note.IsLocal)
	assert.Nil(t, note.LastSynced)
	assert.Contains(t, f.notifier.Titles(), "Failed to save note")
	assert.Len(t, f.reconciler.Notes(), 1)
}

func TestUpdateNote(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	note, err := f.reconciler.CreateNote(ctx, "Title", "content")
	require.NoError(t, err)

	updated, err := f.reconciler.UpdateNote(ctx, note.ID, notes.Content("new content"))
	require.NoError(t, err)

	assert.Equal(t, note.ID, updated.ID)
	assert.Equal(t, "Title", updated.Title)
	assert.Equal(t, "new content", updated.Content)
	assert.True(t, updated.UpdatedAt.After(note.UpdatedAt))

	again, err := f.reconciler.UpdateNote(ctx, note.ID, notes.Title("Renamed"))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Title)
	assert.Equal(t, "new content", again.Content)
	assert.True(t, again.UpdatedAt.After(updated.UpdatedAt))

	stored, ok := f.reconciler.Note(note.ID)
	require.True(t, ok)
	assert.Equal(t, again, stored)
}

func TestUpdateNote_Monotonic(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "notepad.db"))
	require.NoError(t, err)
	defer s.Close()

	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := notes.New(&notes.Context{
		Store: s,
		Now:   func() time.Time { return frozen },
	})
	require.NoError(t, err)

	note, err := r.CreateNote(context.Background(), "Frozen", "")
	require.NoError(t, err)

	previous := note.UpdatedAt
	for i := 0; i < 3; i++ {
		note, err = r.UpdateNote(context.Background(), note.ID, notes.Content("edit"))
		require.NoError(t, err)
		assert.True(t, note.UpdatedAt.After(previous))
		previous = note.UpdatedAt
	}
}

func TestUpdateNote_Unknown(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))
	calls := len(f.remote.Calls())

	note, err := f.reconciler.UpdateNote(ctx, "unknown", notes.Title("nope"))
	assert.NoError(t, err)
	assert.Equal(t, notes.Note{}, note)
	assert.Len(t, f.remote.Calls(), calls)
}

func TestDeleteNote(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "To delete", "")
	require.NoError(t, err)

	require.NoError(t, f.reconciler.DeleteNote(ctx, note.ID))
	_, ok := f.reconciler.Note(note.ID)
	assert.False(t, ok)

	row := f.remote.Rows()[note.ID]
	assert.True(t, row.IsDeleted)

	// Unknown
	assert.NoError(t, f.reconciler.DeleteNote(ctx, note.ID))
}

func TestDeleteNote_RemoteFailure(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "To delete", "")
	require.NoError(t, err)

	rmt.failDelete = errors.New("network down")
	assert.NoError(t, f.reconciler.DeleteNote(ctx, note.ID))

	_, ok := f.reconciler.Note(note.ID)
	assert.False(t, ok)
	assert.Contains(t, f.notifier.Titles(), "Failed to delete note from cloud")
	assert.False(t, rmt.Rows()[note.ID].IsDeleted)
}

func TestDeleteNote_LocalOnly(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()

	note, err := f.reconciler.CreateNote(ctx, "Local", "")
	require.NoError(t, err)

	require.NoError(t, f.reconciler.DeleteNote(ctx, note.ID))
	assert.Empty(t, f.reconciler.Notes())
	assert.Empty(t, f.remote.Calls())
}

func TestEnableCloudSync_PushesLocalNotes(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()

	a, err := f.reconciler.CreateNote(ctx, "A", "local")
	require.NoError(t, err)
	assert.True(t, a.IsLocal)

	require.NoError(t, f.reconciler.EnableCloudSync(ctx))
	assert.True(t, f.reconciler.CloudEnabled())

	_, ok := f.remote.Rows()[a.ID]
	assert.True(t, ok)

	note, ok := f.reconciler.Note(a.ID)
	require.True(t, ok)
	assert.False(t, note.IsLocal)
	assert.NotNil(t, note.LastSynced)
	assert.Equal(t, a.ID, note.CloudID)

	assert.Contains(t, f.remote.Calls(), "device")
	assert.Contains(t, f.notifier.Titles(), "Cloud enabled")
}

func TestEnableCloudSync_NoRemote(t *testing.T) {
	f := setup(t, nil)

	err := f.reconciler.EnableCloudSync(context.Background())
	assert.Equal(t, notes.ErrNoRemote, err)
	assert.False(t, f.reconciler.CloudEnabled())
}

func TestDisableCloudSync(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "Mirrored", "")
	require.NoError(t, err)

	require.NoError(t, f.reconciler.DisableCloudSync())
	assert.False(t, f.reconciler.CloudEnabled())

	kept, ok := f.reconciler.Note(note.ID)
	require.True(t, ok)
	assert.Equal(t, note.ID, kept.CloudID)
	assert.False(t, kept.IsLocal)

	calls := len(f.remote.Calls())
	_, err = f.reconciler.UpdateNote(ctx, note.ID, notes.Content("offline edit"))
	require.NoError(t, err)
	assert.Len(t, f.remote.Calls(), calls)
}

func TestLoadNotesFromRemote_Merge(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	mirrored, err := f.reconciler.CreateNote(ctx, "Mirrored", "local copy")
	require.NoError(t, err)

	// Remote copy edited by another device.
	row := rmt.Rows()[mirrored.ID]
	row.Content = "remote copy"
	rmt.rows[mirrored.ID] = row

	// Foreign note.
	now := time.Now().UTC()
	rmt.rows["foreign"] = model.Note{
		Base:            model.Base{ID: "foreign", CreatedAt: &now, UpdatedAt: &now},
		Title:           "Foreign",
		AnonymousUserID: f.reconciler.AnonymousUserID(),
	}

	// Purely local note.
	require.NoError(t, f.reconciler.DisableCloudSync())
	local, err := f.reconciler.CreateNote(ctx, "Local", "")
	require.NoError(t, err)
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	list := f.reconciler.Notes()
	assert.Len(t, list, 3)

	got, ok := f.reconciler.Note(mirrored.ID)
	require.True(t, ok)
	assert.Equal(t, "remote copy", got.Content)

	got, ok = f.reconciler.Note("foreign")
	require.True(t, ok)
	assert.False(t, got.IsLocal)
	assert.NotNil(t, got.LastSynced)
	assert.Equal(t, "foreign", got.CloudID)

	_, ok = f.reconciler.Note(local.ID)
	assert.True(t, ok)
	assert.NotNil(t, f.reconciler.LastSyncTime())
	assert.False(t, f.reconciler.IsSyncing())
}

func TestLoadNotesFromRemote_Failure(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "Kept", "")
	require.NoError(t, err)
	before := f.reconciler.Notes()

	rmt.failFetch = errors.New("query rejected")
	err = f.reconciler.LoadNotesFromRemote(ctx)
	assert.Error(t, err)
	assert.Equal(t, before, f.reconciler.Notes())
	assert.Contains(t, f.notifier.Titles(), "Failed to load notes")

	_, ok := f.reconciler.Note(note.ID)
	assert.True(t, ok)
}

func TestLoadNotesFromRemote_Disabled(t *testing.T) {
	f := setup(t, newRemote())

	assert.NoError(t, f.reconciler.LoadNotesFromRemote(context.Background()))
	assert.Empty(t, f.remote.Calls())
	assert.Nil(t, f.reconciler.LastSyncTime())
}

func TestSyncWithRemote_ContinuesPastFailures(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()

	f.reconciler = newWithIDs(t, f, []string{"n1", "n2", "n3"})
	for _, title := range []string{"one", "two", "three"} {
		_, err := f.reconciler.CreateNote(ctx, title, "")
		require.NoError(t, err)
	}

	rmt.failPush["n2"] = true
	err := f.reconciler.EnableCloudSync(ctx)

	var serr *notes.SyncError
	require.True(t, errors.As(err, &serr))
	assert.Len(t, serr.Errors, 1)
	assert.Equal(t, 2, serr.Pushed)

	// Sequential in collection order, newest first.
	var pushes []string
	for _, call := range rmt.Calls() {
		if len(call) > 5 && call[:5] == "push:" {
			pushes = append(pushes, call[5:])
		}
	}
	assert.Equal(t, []string{"n3", "n2", "n1"}, pushes)

	n2, _ := f.reconciler.Note("n2")
	assert.True(t, n2.IsLocal)
	n3, _ := f.reconciler.Note("n3")
	assert.False(t, n3.IsLocal)

	// Retried on next sync
	rmt.failPush["n2"] = false
	require.NoError(t, f.reconciler.SyncWithRemote(ctx))
	n2, _ = f.reconciler.Note("n2")
	assert.False(t, n2.IsLocal)

	status := rmt.status[model.SyncStatusID(f.reconciler.AnonymousUserID(), f.reconciler.DeviceID())]
	assert.Equal(t, 2, status.SyncCount)
	assert.Contains(t, rmt.Calls(), "touch")
	assert.Contains(t, f.notifier.Titles(), "Sync complete")
}

func TestPush_Idempotent(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	note, err := f.reconciler.CreateNote(ctx, "Twice", "")
	require.NoError(t, err)
	_, err = f.reconciler.UpdateNote(ctx, note.ID, notes.Patch{})
	require.NoError(t, err)

	assert.Len(t, rmt.Rows(), 1)
}

func TestAdoptAnonymousUserID(t *testing.T) {
	f := setup(t, newRemote())
	ctx := context.Background()

	require.NoError(t, f.reconciler.EnableCloudSync(ctx))
	note, err := f.reconciler.CreateNote(ctx, "Mine", "")
	require.NoError(t, err)
	require.NotEmpty(t, note.CloudID)
	previous := f.reconciler.AnonymousUserID()

	require.NoError(t, f.reconciler.DisableCloudSync())
	draft, err := f.reconciler.CreateNote(ctx, "Draft", "")
	require.NoError(t, err)

	require.NoError(t, f.reconciler.AdoptAnonymousUserID("anon-shared"))
	assert.Equal(t, "anon-shared", f.reconciler.AnonymousUserID())

	// The mirrored note is re-identified, the local-only one keeps its id.
	_, ok := f.reconciler.Note(note.ID)
	assert.False(t, ok)
	kept, ok := f.reconciler.Note(draft.ID)
	require.True(t, ok)
	assert.True(t, kept.IsLocal)

	var adopted notes.Note
	for _, n := range f.reconciler.Notes() {
		if n.Title == "Mine" {
			adopted = n
		}
	}
	assert.NotEqual(t, note.ID, adopted.ID)
	assert.True(t, adopted.IsLocal)
	assert.Empty(t, adopted.CloudID)

	require.NoError(t, f.reconciler.EnableCloudSync(ctx))
	rows := f.remote.Rows()
	assert.Equal(t, "anon-shared", rows[adopted.ID].AnonymousUserID)
	assert.Equal(t, "anon-shared", rows[draft.ID].AnonymousUserID)
	assert.Equal(t, previous, rows[note.ID].AnonymousUserID)

	for _, n := range f.reconciler.Notes() {
		assert.False(t, n.IsLocal, n.Title)
	}

	var persisted string
	require.NoError(t, f.store.Get(store.KeyAnonymousUserID, &persisted))
	assert.Equal(t, "anon-shared", persisted)

	assert.Error(t, f.reconciler.AdoptAnonymousUserID(""))
}

// newWithIDs returns a reconciler on the fixture's store generating the given note identifiers.
func newWithIDs(t *testing.T, f *fixture, ids []string) *notes.Reconciler {
	t.Helper()

	app := &notes.Context{
		Store:    f.store,
		Notifier: f.notifier,
		NewID: func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		},
	}
	if f.remote != nil {
		app.Remote = f.remote
	}

	r, err := notes.New(app)
	require.NoError(t, err)
	return r
}
