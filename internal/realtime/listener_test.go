package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mdouchement/notepad/internal/mirror"
	"github.com/mdouchement/notepad/internal/notify"
	"github.com/mdouchement/notepad/internal/realtime"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloader struct {
	mu    sync.Mutex
	count int
}

func (r *reloader) LoadNotesFromRemote(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *reloader) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func event(t libsupa.EventType, record, old string) libsupa.ChangeEvent {
	return libsupa.ChangeEvent{
		Type:      t,
		Schema:    "public",
		Table:     "notes",
		Record:    json.RawMessage(record),
		OldRecord: json.RawMessage(old),
	}
}

func TestListener_Handle(t *testing.T) {
	log, _ := test.NewNullLogger()
	rl := &reloader{}
	notifier := &notify.Recorder{}
	l := realtime.NewListener(nil, rl, "device-self", notifier, log)
	defer l.Close()

	// Own insert
	assert.False(t, l.Handle(event(libsupa.EventTypeInsert, `{"id":"1","title":"mine","device_id":"device-self"}`, `{}`)))
	// Own row edited, tagged on the old version only
	assert.False(t, l.Handle(event(libsupa.EventTypeUpdate, `{"id":"1","title":"mine"}`, `{"id":"1","device_id":"device-self"}`)))
	assert.Equal(t, 0, rl.Count())
	assert.Empty(t, notifier.Notifications())

	// Foreign changes
	assert.True(t, l.Handle(event(libsupa.EventTypeInsert, `{"id":"2","title":"theirs","device_id":"device-other"}`, `{}`)))
	assert.True(t, l.Handle(event(libsupa.EventTypeUpdate, `{"id":"2","title":"theirs","device_id":"device-other"}`, `{}`)))
	assert.True(t, l.Handle(event(libsupa.EventTypeUpdate, `{"id":"2","title":"theirs","device_id":"device-other","is_deleted":true}`, `{}`)))
	assert.True(t, l.Handle(event(libsupa.EventTypeDelete, ``, `{"id":"2","device_id":"device-other"}`)))
	assert.Equal(t, 4, rl.Count())
	assert.Equal(t, []string{"New note synced", "Note updated", "Note deleted", "Note deleted"}, notifier.Titles())
	assert.Equal(t, `"theirs" was added from another device.`, notifier.Notifications()[0].Description)

	// Garbage
	assert.False(t, l.Handle(event(libsupa.EventTypeInsert, ``, ``)))
	assert.Equal(t, 4, rl.Count())
}

func changeServer(t *testing.T, left chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		for {
			var m struct {
				Topic string  `json:"topic"`
				Event string  `json:"event"`
				Ref   *string `json:"ref"`
			}
			if err := conn.ReadJSON(&m); err != nil {
				return
			}

			switch m.Event {
			case libsupa.EventJoin:
				conn.WriteJSON(libsupa.Message{ // nolint:errcheck
					Topic:   m.Topic,
					Event:   libsupa.EventReply,
					Payload: map[string]any{"status": "ok", "response": map[string]any{}},
					Ref:     m.Ref,
				})

				for _, device := range []string{"device-self", "device-other"} {
					conn.WriteJSON(libsupa.Message{ // nolint:errcheck
						Topic: m.Topic,
						Event: libsupa.EventPostgresChanges,
						Payload: map[string]any{
							"data": map[string]any{
								"type":       "INSERT",
								"schema":     "public",
								"table":      "notes",
								"record":     map[string]any{"id": device, "title": "note", "device_id": device},
								"old_record": map[string]any{},
							},
						},
					})
				}
			case libsupa.EventLeave:
				left <- m.Topic
			}
		}
	}))
}

func TestListener_Configure(t *testing.T) {
	left := make(chan string, 4)
	srv := changeServer(t, left)
	defer srv.Close()

	client, err := libsupa.NewDefaultClient(srv.URL, "secret")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	rl := &reloader{}
	l := realtime.NewListener(mirror.New(client), rl, "device-self", nil, log)
	defer l.Close()

	ctx := context.Background()

	// Disabled or without scope
	require.NoError(t, l.Configure(ctx, false, "anon-1"))
	assert.False(t, l.Active())
	require.NoError(t, l.Configure(ctx, true, ""))
	assert.False(t, l.Active())

	require.NoError(t, l.Configure(ctx, true, "anon-1"))
	assert.True(t, l.Active())

	// Only the foreign event triggers a reload.
	assert.Eventually(t, func() bool {
		return rl.Count() == 1
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rl.Count())

	// Same conditions, nothing changes.
	require.NoError(t, l.Configure(ctx, true, "anon-1"))
	assert.Equal(t, 1, rl.Count())

	// New scope, resubscribed.
	require.NoError(t, l.Configure(ctx, true, "anon-2"))
	assert.Equal(t, "realtime:"+mirror.Channel, <-left)
	assert.Eventually(t, func() bool {
		return rl.Count() == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Disabled, torn down.
	require.NoError(t, l.Configure(ctx, false, "anon-2"))
	assert.False(t, l.Active())
	assert.Equal(t, "realtime:"+mirror.Channel, <-left)

	require.NoError(t, l.Close())
	assert.Error(t, l.Configure(ctx, true, "anon-2"))
}
