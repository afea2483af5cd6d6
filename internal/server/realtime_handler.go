package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/server/hub"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

// WriteTimeout is the maximum duration of a websocket write.
var WriteTimeout = 10 * time.Second

type (
	// realtime contains the change stream handler.
	realtime struct {
		hub      *hub.Hub
		log      logrus.FieldLogger
		upgrader websocket.Upgrader
	}

	// A peer is a websocket connection with its joined channels.
	peer struct {
		conn *websocket.Conn
		log  logrus.FieldLogger

		wmu sync.Mutex

		mu       sync.Mutex
		channels map[string]*channel
		nextID   int
	}

	channel struct {
		topic    string
		joinRef  *string
		bindings []binding
	}

	binding struct {
		ID     int               `json:"id"`
		Event  libsupa.EventType `json:"event"`
		Schema string            `json:"schema"`
		Table  string            `json:"table"`
		Filter string            `json:"filter,omitempty"`
	}
)

// Websocket upgrades the connection and serves the Phoenix channel protocol.
func (h *realtime) Websocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrader already replied
	}

	p := &peer{
		conn:     conn,
		log:      h.log,
		channels: map[string]*channel{},
	}

	h.hub.Register(p)
	defer h.hub.Unregister(p)
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		v, err := fastjson.ParseBytes(data)
		if err != nil {
			continue
		}

		topic := string(v.GetStringBytes("topic"))
		ref := optional(v.Get("ref"))
		joinRef := optional(v.Get("join_ref"))

		switch string(v.GetStringBytes("event")) {
		case libsupa.EventHeartbeat:
			p.reply(libsupa.TopicPhoenix, ref, nil, "ok", map[string]any{})
		case libsupa.EventJoin:
			if joinRef == nil {
				joinRef = ref
			}
			p.join(topic, ref, joinRef, v.Get("payload", "config", "postgres_changes"))
		case libsupa.EventLeave:
			p.leave(topic, ref)
		}
	}
}

// Deliver implements hub.Peer.
func (p *peer) Deliver(change hub.Change) {
	p.mu.Lock()
	var messages []libsupa.Message
	for _, ch := range p.channels {
		var ids []int
		for _, b := range ch.bindings {
			f := libsupa.ChangeFilter{Event: b.Event, Schema: b.Schema, Table: b.Table, Filter: b.Filter}
			if hub.Matches(f, change) {
				ids = append(ids, b.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		messages = append(messages, libsupa.Message{
			Topic: ch.topic,
			Event: libsupa.EventPostgresChanges,
			Payload: map[string]any{
				"ids": ids,
				"data": map[string]any{
					"type":             change.Type,
					"schema":           change.Schema,
					"table":            change.Table,
					"commit_timestamp": change.CommitTimestamp.Format(time.RFC3339Nano),
					"record":           change.Record,
					"old_record":       change.OldRecord,
				},
			},
			JoinRef: ch.joinRef,
		})
	}
	p.mu.Unlock()

	for _, m := range messages {
		if err := p.send(m); err != nil {
			p.log.WithError(err).Debug("Could not deliver change")
			p.conn.Close() // Unblocks the reader
			return
		}
	}
}

func (p *peer) join(topic string, ref, joinRef *string, config *fastjson.Value) {
	if !strings.HasPrefix(topic, "realtime:") {
		p.reply(topic, ref, joinRef, "error", map[string]any{"reason": "unmatched topic"})
		return
	}

	var filters []libsupa.ChangeFilter
	if config != nil {
		if err := json.Unmarshal(config.MarshalTo(nil), &filters); err != nil {
			p.reply(topic, ref, joinRef, "error", map[string]any{"reason": "malformed postgres_changes config"})
			return
		}
	}

	ch := &channel{topic: topic, joinRef: joinRef}
	p.mu.Lock()
	for _, f := range filters {
		if reason := validate(f); reason != "" {
			p.mu.Unlock()
			p.reply(topic, ref, joinRef, "error", map[string]any{"reason": reason})
			return
		}
		if f.Schema == "" {
			f.Schema = "public"
		}

		p.nextID++
		ch.bindings = append(ch.bindings, binding{
			ID:     p.nextID,
			Event:  f.Event,
			Schema: f.Schema,
			Table:  f.Table,
			Filter: f.Filter,
		})
	}
	p.channels[topic] = ch
	p.mu.Unlock()

	p.reply(topic, ref, joinRef, "ok", map[string]any{"postgres_changes": ch.bindings})
}

func (p *peer) leave(topic string, ref *string) {
	p.mu.Lock()
	ch, ok := p.channels[topic]
	delete(p.channels, topic)
	p.mu.Unlock()

	var joinRef *string
	if ok {
		joinRef = ch.joinRef
	}
	p.reply(topic, ref, joinRef, "ok", map[string]any{})
}

func (p *peer) reply(topic string, ref, joinRef *string, status string, response any) {
	err := p.send(libsupa.Message{
		Topic:   topic,
		Event:   libsupa.EventReply,
		Payload: map[string]any{"status": status, "response": response},
		Ref:     ref,
		JoinRef: joinRef,
	})
	if err != nil {
		p.log.WithError(err).Debug("Could not reply")
	}
}

func (p *peer) send(m libsupa.Message) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)) // nolint:errcheck
	return p.conn.WriteJSON(m)
}

func validate(f libsupa.ChangeFilter) string {
	switch f.Event {
	case libsupa.EventTypeAll, libsupa.EventTypeInsert, libsupa.EventTypeUpdate, libsupa.EventTypeDelete:
	default:
		return "unsupported event " + string(f.Event)
	}

	if f.Table != "*" {
		if _, ok := database.Columns(f.Table); !ok {
			return "unknown table " + f.Table
		}
	}

	if f.Filter != "" {
		filter, err := libsupa.ParseFilterExpression(f.Filter)
		if err != nil {
			return err.Error()
		}
		if f.Table != "*" && !database.HasColumn(f.Table, filter.Column) {
			return "unknown column " + filter.Column
		}
	}
	return ""
}

func optional(v *fastjson.Value) *string {
	if v == nil || v.Type() != fastjson.TypeString {
		return nil
	}
	s := string(v.GetStringBytes())
	return &s
}

func upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Authorized by the API key
		},
	}
}
