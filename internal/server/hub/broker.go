package hub

import (
	"context"
	"sync"
	"time"

	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

// ErrClosed is returned when the broker is closed.
var ErrClosed = errors.New("broker closed")

type (
	// A Change is a row level change published to all the server instances.
	Change struct {
		Schema          string            `json:"schema"`
		Table           string            `json:"table"`
		Type            libsupa.EventType `json:"type"`
		CommitTimestamp time.Time         `json:"commit_timestamp"`
		Record          map[string]any    `json:"record"`
		OldRecord       map[string]any    `json:"old_record"`
	}

	// A Broker fans out changes.
	Broker interface {
		// Publish sends the change to all subscribers.
		Publish(ctx context.Context, change Change) error
		// Subscribe returns a channel receiving all published changes.
		// The channel is closed when ctx is done or when the broker is closed.
		Subscribe(ctx context.Context) (<-chan Change, error)
		// Close the broker.
		Close() error
	}

	memory struct {
		mu          sync.Mutex
		closed      bool
		subscribers map[chan Change]struct{}
	}
)

// NewMemoryBroker returns a Broker working inside the current process.
func NewMemoryBroker() Broker {
	return &memory{
		subscribers: map[chan Change]struct{}{},
	}
}

func (b *memory) Publish(ctx context.Context, change Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for ch := range b.subscribers {
		select {
		case ch <- change:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *memory) Subscribe(ctx context.Context) (<-chan Change, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan Change, 64)
	b.subscribers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()

	return ch, nil
}

func (b *memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
	return nil
}

func (b *memory) unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		close(ch)
		delete(b.subscribers, ch)
	}
}
