// Package hub dispatches row level changes to the realtime peers.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/sirupsen/logrus"
)

type (
	// A Peer receives the changes published on the hub.
	// Deliver must not block.
	Peer interface {
		Deliver(change Change)
	}

	// A Hub publishes changes on a Broker and forwards the received ones to the registered peers.
	Hub struct {
		broker Broker
		log    logrus.FieldLogger

		mu    sync.RWMutex
		peers map[Peer]struct{}

		cancel context.CancelFunc
		done   chan struct{}
	}
)

// New returns a new running Hub.
func New(broker Broker, log logrus.FieldLogger) (*Hub, error) {
	ctx, cancel := context.WithCancel(context.Background())

	changes, err := broker.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &Hub{
		broker: broker,
		log:    log,
		peers:  map[Peer]struct{}{},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go h.run(changes)
	return h, nil
}

// Register adds a peer.
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
}

// Unregister removes a peer.
func (h *Hub) Unregister(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)
}

// Publish publishes a change for the given table.
func (h *Hub) Publish(ctx context.Context, table string, t libsupa.EventType, record, old map[string]any) {
	if old == nil {
		old = map[string]any{}
	}

	err := h.broker.Publish(ctx, Change{
		Schema:          "public",
		Table:           table,
		Type:            t,
		CommitTimestamp: time.Now().UTC(),
		Record:          record,
		OldRecord:       old,
	})
	if err != nil {
		h.log.WithError(err).Error("Could not publish change")
	}
}

// Close stops the dispatching of changes.
func (h *Hub) Close() error {
	h.cancel()
	<-h.done
	return nil
}

func (h *Hub) run(changes <-chan Change) {
	defer close(h.done)

	for change := range changes {
		h.mu.RLock()
		for p := range h.peers {
			p.Deliver(change)
		}
		h.mu.RUnlock()
	}
}

// Matches returns true if the change is selected by the given filter.
// The filter expression is evaluated on the new record, or on the old one for deletions.
func Matches(f libsupa.ChangeFilter, change Change) bool {
	if f.Event != libsupa.EventTypeAll && f.Event != change.Type {
		return false
	}
	if f.Schema != "" && f.Schema != change.Schema {
		return false
	}
	if f.Table != "" && f.Table != "*" && f.Table != change.Table {
		return false
	}
	if f.Filter == "" {
		return true
	}

	filter, err := libsupa.ParseFilterExpression(f.Filter)
	if err != nil {
		return false
	}

	record := change.Record
	if change.Type == libsupa.EventTypeDelete {
		record = change.OldRecord
	}
	return filter.Match(record)
}
