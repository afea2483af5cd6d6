package libsupa

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

// Phoenix channel events used by the change stream.
const (
	TopicPhoenix = "phoenix"

	EventJoin            = "phx_join"
	EventLeave           = "phx_leave"
	EventReply           = "phx_reply"
	EventError           = "phx_error"
	EventClose           = "phx_close"
	EventHeartbeat       = "heartbeat"
	EventPostgresChanges = "postgres_changes"
)

// Row level change types.
const (
	EventTypeInsert EventType = "INSERT"
	EventTypeUpdate EventType = "UPDATE"
	EventTypeDelete EventType = "DELETE"
	EventTypeAll    EventType = "*"
)

// HeartbeatInterval is the delay between two heartbeats sent on the change stream.
var HeartbeatInterval = 25 * time.Second

// JoinTimeout is the maximum delay to wait for the channel join reply.
var JoinTimeout = 10 * time.Second

type (
	// An EventType is the kind of row level change.
	EventType string

	// A ChangeFilter selects the row level changes sent on a channel.
	ChangeFilter struct {
		Event  EventType `json:"event"`
		Schema string    `json:"schema"`
		Table  string    `json:"table"`
		Filter string    `json:"filter,omitempty"`
	}

	// A ChangeEvent is a row level change.
	ChangeEvent struct {
		Type            EventType       `json:"type"`
		Schema          string          `json:"schema"`
		Table           string          `json:"table"`
		CommitTimestamp string          `json:"commit_timestamp"`
		Record          json.RawMessage `json:"record"`
		OldRecord       json.RawMessage `json:"old_record"`
	}

	// A Message is a Phoenix channel frame.
	Message struct {
		Topic   string  `json:"topic"`
		Event   string  `json:"event"`
		Payload any     `json:"payload"`
		Ref     *string `json:"ref"`
		JoinRef *string `json:"join_ref,omitempty"`
	}

	// A Subscription is an opened change stream.
	// Closing it unregisters the channel and releases the connection.
	Subscription struct {
		conn    *websocket.Conn
		topic   string
		handler func(ChangeEvent)

		wmu     sync.Mutex
		ref     uint64
		joinRef string

		wg      sync.WaitGroup
		done    chan struct{}
		once    sync.Once
		closing int32
		errmu   sync.Mutex
		err     error
	}
)

// Decode decodes the new version of the row into v.
func (e ChangeEvent) Decode(v any) error {
	if len(e.Record) == 0 {
		return errors.New("no record")
	}
	return errors.Wrap(json.Unmarshal(e.Record, v), "could not parse record")
}

// DecodeOld decodes the previous version of the row into v.
func (e ChangeEvent) DecodeOld(v any) error {
	if len(e.OldRecord) == 0 {
		return errors.New("no old record")
	}
	return errors.Wrap(json.Unmarshal(e.OldRecord, v), "could not parse old record")
}

// Ref returns a pointer on the string representation of ref.
func Ref(ref uint64) *string {
	s := strconv.FormatUint(ref, 10)
	return &s
}

// RealtimeURL returns the websocket URL of the change stream for the given endpoint.
func RealtimeURL(endpoint, apikey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "could not parse endpoint")
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path.Join(u.Path, "/realtime/v1/websocket")

	query := url.Values{}
	query.Set("apikey", apikey)
	query.Set("vsn", "1.0.0")
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (c *client) Subscribe(ctx context.Context, channel string, filter ChangeFilter, handler func(ChangeEvent)) (*Subscription, error) {
	u, err := RealtimeURL(c.endpoint, c.apikey)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not open change stream")
	}

	s := &Subscription{
		conn:    conn,
		topic:   "realtime:" + channel,
		handler: handler,
		done:    make(chan struct{}),
	}

	if err = s.join(ctx, filter); err != nil {
		conn.Close()
		return nil, err
	}

	s.wg.Add(2)
	go s.read()
	go s.heartbeat()

	return s, nil
}

// Topic returns the channel topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Done returns a channel closed when the stream is terminated.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that terminated the stream, nil if it has been closed.
func (s *Subscription) Err() error {
	s.errmu.Lock()
	defer s.errmu.Unlock()
	return s.err
}

// Close leaves the channel and closes the connection.
func (s *Subscription) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closing, 0, 1) {
		s.wg.Wait()
		return nil
	}

	select {
	case <-s.done:
		// Already terminated by the server or a network failure.
		s.wg.Wait()
		return nil
	default:
	}

	// Best effort, the server also drops the channel with the connection.
	_ = s.send(Message{Topic: s.topic, Event: EventLeave, Payload: map[string]any{}})

	err := s.conn.Close()
	s.finish(nil)
	s.wg.Wait()
	return errors.Wrap(err, "could not close change stream")
}

func (s *Subscription) join(ctx context.Context, filter ChangeFilter) error {
	s.joinRef = *Ref(atomic.AddUint64(&s.ref, 1))
	err := s.send(Message{
		Topic: s.topic,
		Event: EventJoin,
		Ref:   &s.joinRef,
		Payload: map[string]any{
			"config": map[string]any{
				"postgres_changes": []ChangeFilter{filter},
			},
		},
	})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(JoinTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err = s.conn.SetReadDeadline(deadline); err != nil {
		return errors.Wrap(err, "could not set join deadline")
	}
	defer s.conn.SetReadDeadline(time.Time{}) // nolint:errcheck

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "could not join channel")
		}

		v, err := fastjson.ParseBytes(data)
		if err != nil {
			return errors.Wrap(err, "could not parse join reply")
		}
		if string(v.GetStringBytes("event")) != EventReply || string(v.GetStringBytes("ref")) != s.joinRef {
			continue
		}

		if status := string(v.GetStringBytes("payload", "status")); status != "ok" {
			return errors.Errorf("channel join rejected: %s", v.Get("payload", "response"))
		}
		return nil
	}
}

func (s *Subscription) read() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&s.closing) == 1 {
				err = nil
			}
			s.finish(errors.Wrap(err, "change stream terminated"))
			return
		}

		v, err := fastjson.ParseBytes(data)
		if err != nil {
			continue // Ignore garbage
		}
		if string(v.GetStringBytes("topic")) != s.topic {
			continue // Heartbeat replies
		}

		switch string(v.GetStringBytes("event")) {
		case EventPostgresChanges:
			raw := v.Get("payload", "data")
			if raw == nil {
				continue
			}

			var ev ChangeEvent
			if err := json.Unmarshal(raw.MarshalTo(nil), &ev); err != nil {
				continue
			}
			s.handler(ev)
		case EventError, EventClose:
			s.finish(errors.Errorf("channel %s closed by server", s.topic))
			s.conn.Close()
			return
		}
	}
}

func (s *Subscription) heartbeat() {
	defer s.wg.Done()

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.send(Message{Topic: TopicPhoenix, Event: EventHeartbeat, Payload: map[string]any{}})
			if err != nil {
				s.finish(err)
				s.conn.Close()
				return
			}
		}
	}
}

func (s *Subscription) send(m Message) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if m.Ref == nil {
		m.Ref = Ref(atomic.AddUint64(&s.ref, 1))
	}
	if m.Topic != TopicPhoenix && s.joinRef != "" {
		m.JoinRef = &s.joinRef
	}

	return errors.Wrap(s.conn.WriteJSON(m), "could not send message")
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.errmu.Lock()
		s.err = err
		s.errmu.Unlock()
		close(s.done)
	})
}
