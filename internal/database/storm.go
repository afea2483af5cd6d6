package database

import (
	"reflect"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

type (
	strm struct {
		db *storm.DB
	}

	// filterMatcher is a storm matcher applying the REST filters on the generic record of a row.
	filterMatcher []libsupa.Filter
)

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Note{}); err != nil {
		return errors.Wrap(err, "could not init note index")
	}

	if err := db.Init(&model.Device{}); err != nil {
		return errors.Wrap(err, "could not init device index")
	}

	err = db.Init(&model.SyncStatus{})
	return errors.Wrap(err, "could not init sync status index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Note{}); err != nil {
		return errors.Wrap(err, "could not ReIndex notes")
	}

	if err := db.ReIndex(&model.Device{}); err != nil {
		return errors.Wrap(err, "could not ReIndex devices")
	}

	err = db.ReIndex(&model.SyncStatus{})
	return errors.Wrap(err, "could not ReIndex sync statuses")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or replaces the entry in database with the given model.
func (c *strm) Save(m model.Row) error {
	stamp(m)
	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindNote returns the note for the given id.
func (c *strm) FindNote(id string) (*model.Note, error) {
	var note model.Note
	if err := c.db.One("ID", id, &note); err != nil {
		return nil, errors.Wrap(err, "find note by id")
	}
	return &note, nil
}

// FindNotes returns all the notes matching the given query.
func (c *strm) FindNotes(query Query) ([]*model.Note, error) {
	notes := make([]*model.Note, 0)
	err := c.db.Select(filterMatcher(query.Filters)).Find(&notes)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find notes")
	}

	Sort(notes, query.Order, query.Ascending)
	return notes, nil
}

// FindDevice returns the device for the given device id.
func (c *strm) FindDevice(id string) (*model.Device, error) {
	var device model.Device
	if err := c.db.One("DeviceID", id, &device); err != nil {
		return nil, errors.Wrap(err, "find device by id")
	}
	return &device, nil
}

// FindDevices returns all the devices matching the given query.
func (c *strm) FindDevices(query Query) ([]*model.Device, error) {
	devices := make([]*model.Device, 0)
	err := c.db.Select(filterMatcher(query.Filters)).Find(&devices)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find devices")
	}

	Sort(devices, query.Order, query.Ascending)
	return devices, nil
}

// FindSyncStatus returns the sync status for the given id.
func (c *strm) FindSyncStatus(id string) (*model.SyncStatus, error) {
	var status model.SyncStatus
	if err := c.db.One("ID", id, &status); err != nil {
		return nil, errors.Wrap(err, "find sync status by id")
	}
	return &status, nil
}

// FindSyncStatuses returns all the sync statuses matching the given query.
func (c *strm) FindSyncStatuses(query Query) ([]*model.SyncStatus, error) {
	statuses := make([]*model.SyncStatus, 0)
	err := c.db.Select(filterMatcher(query.Filters)).Find(&statuses)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find sync statuses")
	}

	Sort(statuses, query.Order, query.Ascending)
	return statuses, nil
}

// Match implements q.Matcher.
func (f filterMatcher) Match(v any) (bool, error) {
	row, ok := v.(model.Row)
	if !ok {
		// Addressable copy for rows given by value.
		rv := reflect.New(reflect.TypeOf(v))
		rv.Elem().Set(reflect.ValueOf(v))
		if row, ok = rv.Interface().(model.Row); !ok {
			return false, errors.Errorf("unsupported row %T", v)
		}
	}
	return Match(row, f), nil
}

// stamp generates the missing identifier and timestamps.
func stamp(m model.Row) {
	t := time.Now().UTC()

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}
	if m.GetUpdatedAt() == nil {
		m.SetUpdatedAt(t)
	}
}
