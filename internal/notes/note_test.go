package notes_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	remote := []notes.Note{
		{ID: "a", Title: "remote a", CloudID: "a"},
		{ID: "b", Title: "remote b", CloudID: "b"},
	}
	local := []notes.Note{
		{ID: "a", Title: "local a", IsLocal: true},  // Unsynced edits are overwritten
		{ID: "c", Title: "local c", IsLocal: true},  // Kept
		{ID: "d", Title: "stale d", IsLocal: false}, // Removed remotely
	}

	merged := notes.Merge(remote, local)

	var ids []string
	for _, n := range merged {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "remote a", merged[0].Title)

	assert.Empty(t, notes.Merge(nil, nil))
	assert.Len(t, notes.Merge(remote, nil), 2)
}

func TestFromRowAndRow(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	row := model.Note{
		Base:            model.Base{ID: "n1", CreatedAt: &created, UpdatedAt: &updated},
		Title:           "Title",
		Content:         "Content",
		DeviceInfo:      model.String("📱 Mobile"),
		DeviceID:        model.String("device-1"),
		AnonymousUserID: "anon-1",
	}

	note := notes.FromRow(row)
	assert.Equal(t, "n1", note.ID)
	assert.Equal(t, "n1", note.CloudID)
	assert.False(t, note.IsLocal)
	require.NotNil(t, note.LastSynced)
	assert.Equal(t, updated, *note.LastSynced)
	assert.Equal(t, "📱 Mobile", note.DeviceInfo)

	back := note.Row("device-2", "anon-2")
	assert.Equal(t, "n1", back.ID)
	assert.Equal(t, "anon-2", back.AnonymousUserID)
	assert.Equal(t, "device-2", model.Value(back.DeviceID))
	assert.Equal(t, created, *back.CreatedAt)
	assert.Equal(t, updated, *back.UpdatedAt)
	assert.False(t, back.IsDeleted)
}

func TestPatch(t *testing.T) {
	p := notes.Title("t1").Merge(notes.Content("c1")).Merge(notes.Title("t2"))
	require.NotNil(t, p.Title)
	require.NotNil(t, p.Content)
	assert.Equal(t, "t2", *p.Title)
	assert.Equal(t, "c1", *p.Content)
	assert.False(t, p.Empty())
	assert.True(t, notes.Patch{}.Empty())
}

//
// Autosave
//

type updater struct {
	mu      sync.Mutex
	patches []notes.Patch
}

func (u *updater) UpdateNote(_ context.Context, id string, p notes.Patch) (notes.Note, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if id == "" {
		return notes.Note{}, errors.New("no id")
	}
	u.patches = append(u.patches, p)
	return notes.Note{ID: id}, nil
}

func (u *updater) Patches() []notes.Patch {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]notes.Patch(nil), u.patches...)
}

func TestAutosave_Debounce(t *testing.T) {
	u := &updater{}
	a := notes.NewAutosave(context.Background(), u, "n1", 20*time.Millisecond)

	a.Edit(notes.Content("h"))
	a.Edit(notes.Content("he"))
	a.Edit(notes.Content("hello"))

	assert.Eventually(t, func() bool {
		return len(u.Patches()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", *u.Patches()[0].Content)

	assert.NoError(t, a.Close())
	assert.Len(t, u.Patches(), 1)
}

func TestAutosave_Close(t *testing.T) {
	u := &updater{}
	a := notes.NewAutosave(context.Background(), u, "n1", time.Hour)

	a.Edit(notes.Title("pending"))
	assert.NoError(t, a.Close())

	patches := u.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "pending", *patches[0].Title)

	failing := notes.NewAutosave(context.Background(), u, "", time.Hour)
	failing.Edit(notes.Title("lost"))
	assert.Error(t, failing.Close())
}

func TestAutosave_Reconciler(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	note, err := f.reconciler.CreateNote(ctx, "Draft", "")
	require.NoError(t, err)

	a := notes.NewAutosave(ctx, f.reconciler, note.ID, time.Hour)
	a.Edit(notes.Content("typed"))
	require.NoError(t, a.Close())

	saved, ok := f.reconciler.Note(note.ID)
	require.True(t, ok)
	assert.Equal(t, "typed", saved.Content)
}

//
// Monitor
//

type pinger struct {
	mu  sync.Mutex
	err error
}

func (p *pinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *pinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestMonitor_Transitions(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := &pinger{}
	m := notes.NewMonitor(p, time.Second, log)

	var online, offline int
	m.OnOnline = func(context.Context) { online++ }
	m.OnOffline = func(error) { offline++ }

	ctx := context.Background()
	assert.True(t, m.Check(ctx))
	assert.Equal(t, 0, online)

	p.set(errors.New("unreachable"))
	assert.False(t, m.Check(ctx))
	assert.False(t, m.Check(ctx))
	assert.False(t, m.Online())
	assert.Equal(t, 1, offline)

	p.set(nil)
	assert.True(t, m.Check(ctx))
	assert.True(t, m.Online())
	assert.Equal(t, 1, online)
}

func TestMonitor_AutoSync(t *testing.T) {
	rmt := newRemote()
	f := setup(t, rmt)
	ctx := context.Background()
	require.NoError(t, f.reconciler.EnableCloudSync(ctx))

	// Created while the backend is unreachable.
	rmt.failPush["offline"] = true
	f.reconciler = newWithIDs(t, f, []string{"offline"})
	_, err := f.reconciler.CreateNote(ctx, "Offline", "")
	require.NoError(t, err)

	p := &pinger{err: errors.New("unreachable")}
	m := notes.NewMonitor(p, time.Second, logrus.New())
	m.OnOnline = notes.AutoSync(f.reconciler)
	m.Check(ctx)

	rmt.failPush["offline"] = false
	p.set(nil)
	m.Check(ctx)

	note, ok := f.reconciler.Note("offline")
	require.True(t, ok)
	assert.False(t, note.IsLocal)
}
