package database

import (
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or replaces the entry in database with the given model.
		// Missing identifier and timestamps are generated.
		Save(m model.Row) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		NoteInteraction
		DeviceInteraction
		SyncStatusInteraction
	}

	// A NoteInteraction defines all the methods used to interact with a note record.
	NoteInteraction interface {
		// FindNote returns the note for the given id.
		FindNote(id string) (*model.Note, error)
		// FindNotes returns all the notes matching the given query.
		FindNotes(query Query) ([]*model.Note, error)
	}

	// A DeviceInteraction defines all the methods used to interact with a device record.
	DeviceInteraction interface {
		// FindDevice returns the device for the given device id.
		FindDevice(id string) (*model.Device, error)
		// FindDevices returns all the devices matching the given query.
		FindDevices(query Query) ([]*model.Device, error)
	}

	// A SyncStatusInteraction defines all the methods used to interact with a sync status record.
	SyncStatusInteraction interface {
		// FindSyncStatus returns the sync status for the given id.
		FindSyncStatus(id string) (*model.SyncStatus, error)
		// FindSyncStatuses returns all the sync statuses matching the given query.
		FindSyncStatuses(query Query) ([]*model.SyncStatus, error)
	}

	// A Query selects and sorts the rows of a table.
	// An empty Order keeps the storage order.
	Query struct {
		Filters   []libsupa.Filter
		Order     string
		Ascending bool
	}
)
