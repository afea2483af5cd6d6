package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMatch(t *testing.T) {
	n := note("1", "anon-1", time.Now(), false)

	assert.True(t, database.Match(n, nil))
	assert.True(t, database.Match(n, []libsupa.Filter{
		{Column: "anonymous_user_id", Operator: libsupa.OperatorEq, Value: "anon-1"},
		{Column: "is_deleted", Operator: libsupa.OperatorEq, Value: "false"},
		{Column: "device_info", Operator: libsupa.OperatorEq, Value: "null"},
	}))
	assert.False(t, database.Match(n, []libsupa.Filter{
		{Column: "anonymous_user_id", Operator: libsupa.OperatorNeq, Value: "anon-1"},
	}))
	assert.False(t, database.Match(n, []libsupa.Filter{
		{Column: "unknown", Operator: libsupa.OperatorEq, Value: "anon-1"},
	}))
}

func TestSort(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	notes := []*model.Note{
		note("b", "anon", base.Add(500*time.Millisecond), false),
		note("a", "anon", base.Add(2*time.Second), false),
		note("c", "anon", base, false),
	}

	database.Sort(notes, "updated_at", true)
	assert.Equal(t, []string{"c", "b", "a"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})

	database.Sort(notes, "updated_at", false)
	assert.Equal(t, []string{"a", "b", "c"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})

	database.Sort(notes, "id", true)
	assert.Equal(t, []string{"a", "b", "c"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})
}

func TestPatch(t *testing.T) {
	n := note("1", "anon-1", time.Now(), false)

	require.NoError(t, database.Patch(model.TableNotes, n, map[string]any{"is_deleted": true}))
	assert.True(t, n.IsDeleted)
	assert.Equal(t, "title 1", n.Title)

	assert.EqualError(t, database.Patch(model.TableNotes, n, map[string]any{"unknown": 1}), "unknown column unknown on notes")
	assert.EqualError(t, database.Patch(model.TableNotes, n, map[string]any{"id": "2"}), "identifier cannot be changed")

	seen := "2024-03-01T10:00:00Z"
	d := &model.Device{DeviceID: "device-1"}
	require.NoError(t, database.Patch(model.TableDevices, d, map[string]any{"last_seen": seen}))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *d.LastSeen)
}

func TestColumns(t *testing.T) {
	_, ok := database.Columns("users")
	assert.False(t, ok)
	assert.True(t, database.HasColumn(model.TableSyncStatus, "sync_count"))
	assert.False(t, database.HasColumn(model.TableDevices, "id"))
}
