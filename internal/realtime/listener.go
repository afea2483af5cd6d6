// Package realtime keeps the reconciler up to date with the changes made by other devices.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	// A Subscriber opens a change stream of the notes of a scope.
	// It is implemented by *mirror.Mirror.
	Subscriber interface {
		Subscribe(ctx context.Context, anonymousUserID string, handler func(libsupa.ChangeEvent)) (*libsupa.Subscription, error)
	}

	// A Reloader reloads the whole note collection from the remote mirror.
	// It is implemented by *notes.Reconciler.
	Reloader interface {
		LoadNotesFromRemote(ctx context.Context) error
	}

	// A Listener subscribes to the change stream of a scope while cloud sync is enabled.
	// Every change made by another device triggers a notification and a full reload.
	Listener struct {
		subscriber Subscriber
		reloader   Reloader
		notifier   notify.Notifier
		log        logrus.FieldLogger
		deviceID   string

		ctx    context.Context
		cancel context.CancelFunc

		mu      sync.Mutex
		sub     *libsupa.Subscription
		enabled bool
		scope   string
	}
)

// NewListener returns a new Listener ignoring the changes made by deviceID.
func NewListener(subscriber Subscriber, reloader Reloader, deviceID string, notifier notify.Notifier, log logrus.FieldLogger) *Listener {
	if notifier == nil {
		notifier = notify.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		subscriber: subscriber,
		reloader:   reloader,
		notifier:   notifier,
		log:        log,
		deviceID:   deviceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Configure applies the enabling conditions.
// The subscription is torn down and re-established when they change or when the stream has been terminated.
func (l *Listener) Configure(ctx context.Context, enabled bool, anonymousUserID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return errors.New("listener closed")
	}

	active := enabled && anonymousUserID != ""
	if l.alive() && l.enabled == active && l.scope == anonymousUserID {
		return nil
	}

	if err := l.teardown(); err != nil {
		l.log.WithError(err).Warn("Could not close change stream")
	}
	l.enabled = active
	l.scope = anonymousUserID

	if !active {
		return nil
	}

	sub, err := l.subscriber.Subscribe(ctx, anonymousUserID, l.handle)
	if err != nil {
		return err
	}
	l.sub = sub
	l.log.WithField("topic", sub.Topic()).Info("Listening note changes")

	go l.watch(sub)
	return nil
}

// Active returns true when a change stream is opened.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alive()
}

// Close tears down the subscription.
func (l *Listener) Close() error {
	l.cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.teardown()
}

// Handle processes a change event.
// It returns true when the event comes from another device and a reload has been triggered.
func (l *Listener) Handle(ev libsupa.ChangeEvent) bool {
	var current, old model.Note
	errc := ev.Decode(&current)
	erro := ev.DecodeOld(&old)
	if errc != nil && erro != nil {
		l.log.WithError(errc).Warn("Ignoring malformed change event")
		return false
	}

	if l.own(current) || l.own(old) {
		l.log.WithField("type", ev.Type).Debug("Ignoring own change")
		return false
	}

	l.notifier.Notify(describe(ev.Type, current))

	if err := l.reloader.LoadNotesFromRemote(l.ctx); err != nil {
		l.log.WithError(err).Error("Could not reload notes after a remote change")
	}
	return true
}

func (l *Listener) handle(ev libsupa.ChangeEvent) {
	l.Handle(ev)
}

func (l *Listener) own(row model.Note) bool {
	return row.DeviceID != nil && *row.DeviceID == l.deviceID
}

func (l *Listener) watch(sub *libsupa.Subscription) {
	<-sub.Done()
	if err := sub.Err(); err != nil {
		l.log.WithError(err).Warn("Change stream terminated")
	}
}

// alive returns true when the current subscription is still running. mu must be held.
func (l *Listener) alive() bool {
	if l.sub == nil {
		return false
	}

	select {
	case <-l.sub.Done():
		return false
	default:
		return true
	}
}

// teardown closes the current subscription. mu must be held.
func (l *Listener) teardown() error {
	if l.sub == nil {
		return nil
	}

	sub := l.sub
	l.sub = nil
	return sub.Close()
}

func describe(t libsupa.EventType, row model.Note) notify.Notification {
	switch {
	case t == libsupa.EventTypeInsert:
		return notify.Info("New note synced", fmt.Sprintf("%q was added from another device.", row.Title))
	case t == libsupa.EventTypeDelete || (t == libsupa.EventTypeUpdate && row.IsDeleted):
		return notify.Info("Note deleted", "A note was deleted from another device.")
	default:
		return notify.Info("Note updated", fmt.Sprintf("%q was updated from another device.", row.Title))
	}
}
