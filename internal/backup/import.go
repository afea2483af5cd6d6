package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// ImportedTitle is the title of imported notes without title.
const ImportedTitle = "Imported Note"

var extension = regexp.MustCompile(`\.(txt|md)$`)

type (
	// A Creator creates notes, it is implemented by *notes.Reconciler.
	Creator interface {
		CreateNote(ctx context.Context, title, content string) (notes.Note, error)
	}

	// An Entry is a note read from an imported file.
	Entry struct {
		Title   string
		Content string
	}

	// An Archive is a parsed backup document.
	// Only titles and contents are kept, imported notes always get fresh identifiers.
	Archive struct {
		Version    string
		DeviceID   string
		ExportedAt *time.Time
		Entries    []Entry
	}
)

// Parse reads a backup document.
// Unknown fields are ignored and exportedAt is parsed leniently.
func Parse(data []byte) (Archive, error) {
	var archive Archive

	v, err := fastjson.ParseBytes(data)
	if err != nil {
		return archive, errors.Wrap(err, "could not parse backup")
	}

	list := v.Get("notes")
	if list == nil || list.Type() != fastjson.TypeArray {
		return archive, errors.New("backup has no notes")
	}

	archive.Version = string(v.GetStringBytes("version"))
	archive.DeviceID = string(v.GetStringBytes("deviceId"))
	if raw := v.GetStringBytes("exportedAt"); len(raw) > 0 {
		if t, err := dateparse.ParseAny(string(raw)); err == nil {
			archive.ExportedAt = &t
		}
	}

	for _, n := range list.GetArray() {
		entry := Entry{
			Title:   string(n.GetStringBytes("title")),
			Content: string(n.GetStringBytes("content")),
		}
		if entry.Title == "" {
			entry.Title = ImportedTitle
		}
		archive.Entries = append(archive.Entries, entry)
	}

	return archive, nil
}

// ParseText reads a plain text file as a single note titled after the file name.
func ParseText(filename string, data []byte) Entry {
	return Entry{
		Title:   extension.ReplaceAllString(filepath.Base(filename), ""),
		Content: string(data),
	}
}

// Import creates a note for every note found in the given file.
// JSON files are read as backups, any other file is imported as a single note.
func Import(ctx context.Context, creator Creator, notifier notify.Notifier, filename string, data []byte) ([]notes.Note, error) {
	if notifier == nil {
		notifier = notify.Discard
	}

	if !strings.HasSuffix(filename, ".json") {
		note, err := creator.CreateNote(ctx, ParseText(filename, data).Title, string(data))
		if err != nil {
			notifier.Notify(notify.Error("Import Failed", err))
			return nil, errors.Wrap(err, "could not import file")
		}

		notifier.Notify(notify.Info("File Imported", "Text file has been imported as a new note."))
		return []notes.Note{note}, nil
	}

	archive, err := Parse(data)
	if err != nil {
		notifier.Notify(notify.Error("Import Failed", err))
		return nil, err
	}

	imported := make([]notes.Note, 0, len(archive.Entries))
	for _, entry := range archive.Entries {
		note, err := creator.CreateNote(ctx, entry.Title, entry.Content)
		if err != nil {
			notifier.Notify(notify.Error("Import Failed", err))
			return imported, errors.Wrap(err, "could not import note")
		}
		imported = append(imported, note)
	}

	notifier.Notify(notify.Info("Import Successful", fmt.Sprintf("Imported %d notes.", len(imported))))
	return imported, nil
}
