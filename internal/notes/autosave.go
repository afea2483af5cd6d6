package notes

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// AutosaveDelay is the default delay of inactivity before edits are saved.
const AutosaveDelay = 500 * time.Millisecond

type (
	// An Updater applies a patch on a note.
	// It is implemented by *Reconciler.
	Updater interface {
		UpdateNote(ctx context.Context, id string, p Patch) (Note, error)
	}

	// An Autosave coalesces the edits of a note and saves them after a delay of inactivity.
	Autosave struct {
		ctx       context.Context
		updater   Updater
		id        string
		debounced func(f func())

		mu      sync.Mutex
		pending Patch
		err     error

		savemu sync.Mutex
	}
)

// NewAutosave returns a new Autosave of the note identified by id.
func NewAutosave(ctx context.Context, updater Updater, id string, delay time.Duration) *Autosave {
	if delay <= 0 {
		delay = AutosaveDelay
	}

	return &Autosave{
		ctx:       ctx,
		updater:   updater,
		id:        id,
		debounced: debounce.New(delay),
	}
}

// Edit records the patch and schedules a save.
func (a *Autosave) Edit(p Patch) {
	a.mu.Lock()
	a.pending = a.pending.Merge(p)
	a.mu.Unlock()

	a.debounced(func() {
		a.Flush() // nolint:errcheck
	})
}

// Flush saves the pending edits immediately.
func (a *Autosave) Flush() error {
	a.savemu.Lock()
	defer a.savemu.Unlock()

	a.mu.Lock()
	p := a.pending
	a.pending = Patch{}
	a.mu.Unlock()

	if p.Empty() {
		return nil
	}

	_, err := a.updater.UpdateNote(a.ctx, a.id, p)
	if err != nil {
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
	}
	return err
}

// Close saves the pending edits and returns the last save error.
func (a *Autosave) Close() error {
	if err := a.Flush(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
