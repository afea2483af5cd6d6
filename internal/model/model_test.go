package model_test

import (
	"testing"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestNote_Record(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	note := &model.Note{
		Base: model.Base{
			ID:        "b329a187-ddf8-4e9b-960d-49c272a58794",
			CreatedAt: &now,
			UpdatedAt: &now,
		},
		Title:           "The Title",
		Content:         "The text",
		DeviceID:        model.String("device-42"),
		AnonymousUserID: "anon-42",
	}

	r := note.Record()
	assert.Equal(t, "b329a187-ddf8-4e9b-960d-49c272a58794", r["id"])
	assert.Equal(t, "The Title", r["title"])
	assert.Equal(t, "device-42", r["device_id"])
	assert.Nil(t, r["device_info"])
	assert.Equal(t, "anon-42", r["anonymous_user_id"])
	assert.Equal(t, false, r["is_deleted"])
	assert.Equal(t, "2024-03-01T10:00:00Z", r["updated_at"])
}

func TestString(t *testing.T) {
	assert.Nil(t, model.String(""))
	assert.Equal(t, "value", model.Value(model.String("value")))
	assert.Equal(t, "", model.Value(nil))
}

func TestDevice_Model(t *testing.T) {
	var m model.Model = &model.Device{}
	m.SetID("device-42")
	now := time.Now()
	m.SetUpdatedAt(now)

	d := m.(*model.Device)
	assert.Equal(t, "device-42", d.DeviceID)
	assert.Equal(t, now, *d.LastSeen)
}

func TestSyncStatusID(t *testing.T) {
	assert.Equal(t, "anon-42:device-42", model.SyncStatusID("anon-42", "device-42"))
}
