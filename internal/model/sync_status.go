package model

import "time"

// A SyncStatus represents a row of the sync_status table.
// There is one row per anonymous user and device.
type SyncStatus struct {
	Base `msgpack:",inline" storm:"inline"`

	AnonymousUserID string     `json:"anonymous_user_id" msgpack:"anonymous_user_id" storm:"index"`
	DeviceID        string     `json:"device_id"         msgpack:"device_id"`
	LastSync        *time.Time `json:"last_sync"         msgpack:"last_sync"`
	SyncCount       int        `json:"sync_count"        msgpack:"sync_count"`
}

// SyncStatusID returns the identifier of the sync_status row for the given scope and device.
func SyncStatusID(anonymousUserID, deviceID string) string {
	return anonymousUserID + ":" + deviceID
}

// Record returns the row as a generic record.
func (m *SyncStatus) Record() map[string]any {
	return record(m)
}
