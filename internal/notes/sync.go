package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/store"
	"github.com/pkg/errors"
)

// A SyncError aggregates the failures of a bulk sync.
type SyncError struct {
	Pushed int
	Errors []error
}

// Error implements error.
func (e *SyncError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("sync completed with %d error(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// SyncWithRemote pushes every local-only note to the remote mirror, one at a time and in collection order,
// then records the sync status and refreshes the device last seen timestamp.
// A failed push does not stop the pipeline, all failures are returned in a *SyncError.
func (r *Reconciler) SyncWithRemote(ctx context.Context) error {
	enabled, anonymousUserID, deviceID := r.scope()
	if !enabled || anonymousUserID == "" || r.app.Remote == nil {
		return nil
	}

	r.syncmu.Lock()
	defer r.syncmu.Unlock()

	r.setSyncing(true)
	defer func() {
		r.mu.Lock()
		now := r.now()
		r.lastSync = &now
		r.syncing = false
		r.mu.Unlock()
	}()

	serr := &SyncError{}
	pending := r.pending()
	for _, id := range pending {
		// The note may have been deleted or pushed since the snapshot.
		note, ok := r.Note(id)
		if !ok || !note.IsLocal {
			continue
		}

		if _, err := r.push(ctx, note); err != nil {
			serr.Errors = append(serr.Errors, errors.Wrapf(err, "note %s", id))
			continue
		}
		serr.Pushed++
	}

	//
	// Sync bookkeeping
	now := r.now()
	count, err := r.incrementSyncCount()
	if err != nil {
		r.app.Logger.WithError(err).Warn("Could not increment sync counter")
	}

	err = r.app.Remote.RecordSync(ctx, model.SyncStatus{
		Base:            model.Base{ID: model.SyncStatusID(anonymousUserID, deviceID)},
		AnonymousUserID: anonymousUserID,
		DeviceID:        deviceID,
		LastSync:        &now,
		SyncCount:       count,
	})
	if err != nil {
		r.app.Logger.WithError(err).Error("Could not record sync status")
		serr.Errors = append(serr.Errors, err)
	}

	if err = r.app.Remote.TouchDevice(ctx, deviceID, now); err != nil {
		r.app.Logger.WithError(err).Warn("Could not update device")
	}

	r.app.Notifier.Notify(notify.Info("Sync complete", fmt.Sprintf("Pushed %d of %d local notes.", serr.Pushed, len(pending))))

	if len(serr.Errors) > 0 {
		return serr
	}
	return nil
}

// pending returns the identifiers of the local-only notes in collection order.
func (r *Reconciler) pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, n := range r.notes {
		if n.IsLocal {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (r *Reconciler) incrementSyncCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	if err := r.app.Store.Get(store.KeySyncCount, &count); err != nil && !r.app.Store.IsNotFound(err) {
		return 0, err
	}
	count++

	return count, r.app.Store.Set(store.KeySyncCount, count)
}
