package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/mdouchement/notepad/internal/logger"
	"github.com/mdouchement/notepad/internal/notes"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
)

// List prints the notes, most recent first.
func (app *App) List(debug bool) error {
	list := app.Reconciler.Notes()

	if debug {
		logger.Dump(app.Logger, "notes", list)
		fmt.Fprintln(app.Out, litter.Sdump(list))
		return nil
	}

	if len(list) == 0 {
		fmt.Fprintln(app.Out, "No notes yet, create one with `notepad new`.")
		return nil
	}

	w := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED\tSTATUS")
	for _, n := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", short(n.ID), n.Title, n.UpdatedAt.Local().Format(time.DateTime), status(n))
	}
	return w.Flush()
}

// Show prints a note.
func (app *App) Show(id string) error {
	n, err := app.find(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "# %s\n\n", n.Title)
	fmt.Fprintln(app.Out, n.Content)
	fmt.Fprintln(app.Out)
	fmt.Fprintf(app.Out, "id: %s\n", n.ID)
	fmt.Fprintf(app.Out, "created: %s\n", n.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(app.Out, "updated: %s\n", n.UpdatedAt.Local().Format(time.DateTime))
	if n.DeviceInfo != "" {
		fmt.Fprintf(app.Out, "device: %s\n", n.DeviceInfo)
	}
	fmt.Fprintf(app.Out, "status: %s\n", status(n))
	return nil
}

// New creates a note.
func (app *App) New(ctx context.Context, title, content string) error {
	n, err := app.Reconciler.CreateNote(ctx, title, content)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Created %s (%s)\n", n.Title, n.ID)
	return nil
}

// Edit updates the title and/or the content of a note.
func (app *App) Edit(ctx context.Context, id string, p notes.Patch) error {
	n, err := app.find(id)
	if err != nil {
		return err
	}
	if p.Empty() {
		return errors.New("nothing to update")
	}

	n, err = app.Reconciler.UpdateNote(ctx, n.ID, p)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Updated %s\n", n.Title)
	return nil
}

// EditInteractive appends the typed lines to the content of a note.
// Edits are saved after a short delay of inactivity and on exit (Ctrl-D).
func (app *App) EditInteractive(ctx context.Context, id string) error {
	n, err := app.find(id)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          app.Out,
	})
	if err != nil {
		return errors.Wrap(err, "could not open line editor")
	}
	defer rl.Close()

	fmt.Fprintf(app.Out, "Editing %s, Ctrl-D to exit.\n", n.Title)
	if n.Content != "" {
		fmt.Fprintln(app.Out, n.Content)
	}

	autosave := notes.NewAutosave(ctx, app.Reconciler, n.ID, notes.AutosaveDelay)
	err = edit(rl, n.Content, func(content string) {
		autosave.Edit(notes.Content(content))
	})

	if cerr := autosave.Close(); cerr != nil {
		return cerr
	}
	return err
}

// Remove deletes a note.
func (app *App) Remove(ctx context.Context, id string) error {
	n, err := app.find(id)
	if err != nil {
		return err
	}

	if err = app.Reconciler.DeleteNote(ctx, n.ID); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Deleted %s\n", n.Title)
	return nil
}

//
//
//

// find returns the note identified by id or by a unique id prefix.
func (app *App) find(id string) (notes.Note, error) {
	if n, ok := app.Reconciler.Note(id); ok {
		return n, nil
	}

	var found []notes.Note
	for _, n := range app.Reconciler.Notes() {
		if strings.HasPrefix(n.ID, id) {
			found = append(found, n)
		}
	}

	switch len(found) {
	case 0:
		return notes.Note{}, errors.Errorf("note %s not found", id)
	case 1:
		return found[0], nil
	}
	return notes.Note{}, errors.Errorf("ambiguous identifier %s", id)
}

type lineReader interface {
	Readline() (string, error)
}

func edit(rl lineReader, content string, save func(string)) error {
	var sb strings.Builder
	sb.WriteString(content)

	for {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return errors.Wrap(err, "could not read line")
		}

		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
		save(sb.String())
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func status(n notes.Note) string {
	if n.IsLocal {
		return "local"
	}
	if n.LastSynced != nil {
		return "synced " + n.LastSynced.Local().Format(time.DateTime)
	}
	return "synced"
}
