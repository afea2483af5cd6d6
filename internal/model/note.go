package model

import (
	"encoding/json"
)

// Table names of the remote datastore.
const (
	TableNotes      = "notes"
	TableDevices    = "devices"
	TableSyncStatus = "sync_status"
)

// A Note represents a row of the notes table.
// The row is never removed, a deletion only sets IsDeleted.
type Note struct {
	Base `msgpack:",inline" storm:"inline"`

	Title           string  `json:"title"             msgpack:"title"`
	Content         string  `json:"content"           msgpack:"content"`
	DeviceInfo      *string `json:"device_info"       msgpack:"device_info"`
	DeviceID        *string `json:"device_id"         msgpack:"device_id"`
	AnonymousUserID string  `json:"anonymous_user_id" msgpack:"anonymous_user_id" storm:"index"`
	IsDeleted       bool    `json:"is_deleted"        msgpack:"is_deleted"        storm:"index"`
}

// Record returns the row as a generic record, the way it is broadcasted on the change stream.
func (n *Note) Record() map[string]any {
	return record(n)
}

func record(v any) map[string]any {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err) // Only plain fields
	}

	m := map[string]any{}
	if err = json.Unmarshal(payload, &m); err != nil {
		panic(err)
	}
	return m
}
