package libsupa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref"`
}

func realtimeServer(t *testing.T, status string, left chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}

			switch f.Event {
			case libsupa.EventJoin:
				assert.JSONEq(t, `{"config":{"postgres_changes":[{"event":"*","schema":"public","table":"notes","filter":"anonymous_user_id=eq.anon-42"}]}}`, string(f.Payload))
				assert.Equal(t, f.Ref, f.JoinRef)

				conn.WriteJSON(libsupa.Message{ // nolint:errcheck
					Topic:   f.Topic,
					Event:   libsupa.EventReply,
					Payload: map[string]any{"status": status, "response": map[string]any{}},
					Ref:     f.Ref,
				})
				if status != "ok" {
					continue
				}

				conn.WriteJSON(libsupa.Message{ // nolint:errcheck
					Topic: f.Topic,
					Event: libsupa.EventPostgresChanges,
					Payload: map[string]any{
						"data": map[string]any{
							"type":             "INSERT",
							"schema":           "public",
							"table":            "notes",
							"commit_timestamp": "2024-03-01T10:00:00Z",
							"record":           map[string]any{"id": "1", "title": "first", "device_id": "device-2"},
							"old_record":       map[string]any{},
						},
						"ids": []int{1},
					},
				})
			case libsupa.EventLeave:
				left <- f.Topic
			}
		}
	}))
}

func TestClient_Subscribe(t *testing.T) {
	left := make(chan string, 1)
	srv := realtimeServer(t, "ok", left)
	defer srv.Close()

	client, err := libsupa.NewDefaultClient(srv.URL, "secret")
	require.NoError(t, err)

	events := make(chan libsupa.ChangeEvent, 1)
	filter := libsupa.ChangeFilter{
		Event:  libsupa.EventTypeAll,
		Schema: "public",
		Table:  "notes",
		Filter: "anonymous_user_id=eq.anon-42",
	}
	sub, err := client.Subscribe(context.Background(), "notes-changes", filter, func(ev libsupa.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)
	assert.Equal(t, "realtime:notes-changes", sub.Topic())

	select {
	case ev := <-events:
		assert.Equal(t, libsupa.EventTypeInsert, ev.Type)
		assert.Equal(t, "notes", ev.Table)

		var record struct {
			ID       string `json:"id"`
			DeviceID string `json:"device_id"`
		}
		assert.NoError(t, ev.Decode(&record))
		assert.Equal(t, "1", record.ID)
		assert.Equal(t, "device-2", record.DeviceID)
	case <-time.After(5 * time.Second):
		t.Fatal("no change received")
	}

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Err())

	select {
	case topic := <-left:
		assert.Equal(t, "realtime:notes-changes", topic)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not left")
	}
}

func TestClient_SubscribeRejected(t *testing.T) {
	srv := realtimeServer(t, "error", nil)
	defer srv.Close()

	client, err := libsupa.NewDefaultClient(srv.URL, "secret")
	require.NoError(t, err)

	filter := libsupa.ChangeFilter{
		Event:  libsupa.EventTypeAll,
		Schema: "public",
		Table:  "notes",
		Filter: "anonymous_user_id=eq.anon-42",
	}
	_, err = client.Subscribe(context.Background(), "notes-changes", filter, func(libsupa.ChangeEvent) {})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "channel join rejected")
}

func TestRealtimeURL(t *testing.T) {
	u, err := libsupa.RealtimeURL("https://project.example.com/base", "secret")
	assert.NoError(t, err)
	assert.Equal(t, "wss://project.example.com/base/realtime/v1/websocket?apikey=secret&vsn=1.0.0", u)

	u, err = libsupa.RealtimeURL("http://localhost:5000", "secret")
	assert.NoError(t, err)
	assert.Equal(t, "ws://localhost:5000/realtime/v1/websocket?apikey=secret&vsn=1.0.0", u)
}

func TestChangeEvent_Decode(t *testing.T) {
	var v map[string]any

	ev := libsupa.ChangeEvent{}
	assert.EqualError(t, ev.Decode(&v), "no record")
	assert.EqualError(t, ev.DecodeOld(&v), "no old record")

	ev.OldRecord = json.RawMessage(`{"id":"1"}`)
	assert.NoError(t, ev.DecodeOld(&v))
	assert.Equal(t, "1", v["id"])
}
