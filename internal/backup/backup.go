// Package backup exports and imports the note collection as files.
package backup

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/mdouchement/notepad/internal/notes"
	"github.com/pkg/errors"
)

// Version is the version of the backup document.
const Version = "2.0"

// A Document is the content of a backup file.
type Document struct {
	Notes           []notes.Note `json:"notes"`
	ExportedAt      time.Time    `json:"exportedAt"`
	DeviceID        string       `json:"deviceId"`
	AnonymousUserID string       `json:"anonymousUserId,omitempty"`
	Version         string       `json:"version"`
}

// NewDocument returns a Document of the given notes.
func NewDocument(list []notes.Note, deviceID, anonymousUserID string, now time.Time) Document {
	if list == nil {
		list = []notes.Note{}
	}

	return Document{
		Notes:           list,
		ExportedAt:      now.UTC(),
		DeviceID:        deviceID,
		AnonymousUserID: anonymousUserID,
		Version:         Version,
	}
}

// Filename returns the name of the backup file exported at the given date.
func Filename(t time.Time) string {
	return "notepad-backup-" + t.UTC().Format("2006-01-02") + ".json"
}

// Write serializes the document into w.
func (d Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(d), "could not serialize backup")
}

// Save writes the document in the given file.
func (d Document) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create backup file")
	}
	defer f.Close()

	if err = d.Write(f); err != nil {
		return err
	}

	return errors.Wrap(f.Sync(), "could not backup")
}
