package model

import "time"

// A Device represents a row of the devices table, keyed by the device identifier.
type Device struct {
	DeviceID        string     `json:"device_id"         msgpack:"device_id"         storm:"id"`
	DeviceName      *string    `json:"device_name"       msgpack:"device_name"`
	DeviceType      *string    `json:"device_type"       msgpack:"device_type"`
	AnonymousUserID string     `json:"anonymous_user_id" msgpack:"anonymous_user_id" storm:"index"`
	LastSeen        *time.Time `json:"last_seen,omitempty"  msgpack:"last_seen"`
	CreatedAt       *time.Time `json:"created_at,omitempty" msgpack:"created_at"`
}

// GetID returns the device identifier.
func (m *Device) GetID() string {
	return m.DeviceID
}

// SetID defines the device identifier.
func (m *Device) SetID(id string) {
	m.DeviceID = id
}

// GetCreatedAt returns the model's creation date.
func (m *Device) GetCreatedAt() *time.Time {
	return m.CreatedAt
}

// SetCreatedAt defines the model's creation date.
func (m *Device) SetCreatedAt(t time.Time) {
	m.CreatedAt = &t
}

// GetUpdatedAt returns the last time the device has been seen.
func (m *Device) GetUpdatedAt() *time.Time {
	return m.LastSeen
}

// SetUpdatedAt defines the last time the device has been seen.
func (m *Device) SetUpdatedAt(t time.Time) {
	m.LastSeen = &t
}

// Record returns the row as a generic record.
func (m *Device) Record() map[string]any {
	return record(m)
}
