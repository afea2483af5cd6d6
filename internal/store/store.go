package store

import (
	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/pkg/errors"
)

// Persisted keys.
const (
	KeyDeviceID        = "notepad-device-id"
	KeyAnonymousUserID = "notepad-anonymous-user-id"
	KeyCloudEnabled    = "notepad-cloud-enabled"
	KeySyncCount       = "notepad-sync-count"
	KeyNotes           = "notepad-notes"

	bucket = "notepad"
)

type (
	// A Store is the local key-value persistence of the notepad.
	Store interface {
		// Get decodes the value stored for the given key into to.
		// It returns an error for which IsNotFound is true when the key is not set.
		Get(key string, to any) error
		// Set stores the value for the given key.
		Set(key string, value any) error
		// Delete removes the given key.
		Delete(key string) error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// Close the store.
		Close() error
	}

	strm struct {
		db *storm.DB
	}
)

// StormCodec is the format used to store values, the note collection is stored as a JSON array.
var StormCodec = storm.Codec(json.Codec)

// Open returns a new Store backed by the given file.
func Open(filename string) (Store, error) {
	db, err := storm.Open(filename, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not open local store")
	}

	return &strm{db: db}, nil
}

func (s *strm) Get(key string, to any) error {
	return errors.Wrapf(s.db.Get(bucket, key, to), "could not get %s", key)
}

func (s *strm) Set(key string, value any) error {
	return errors.Wrapf(s.db.Set(bucket, key, value), "could not set %s", key)
}

func (s *strm) Delete(key string) error {
	err := s.db.Delete(bucket, key)
	if s.IsNotFound(err) {
		return nil
	}
	return errors.Wrapf(err, "could not delete %s", key)
}

func (s *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

func (s *strm) Close() error {
	return s.db.Close()
}

// Identifier returns the identifier stored at the given key.
// It is generated with gen and persisted on the first call.
func Identifier(s Store, key string, gen func() string) (string, error) {
	var id string
	err := s.Get(key, &id)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !s.IsNotFound(err) {
		return "", err
	}

	id = gen()
	return id, s.Set(key, id)
}
