package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"
)

// Sink is the transport a connection loop writes to.
type Sink interface {
	Open(retry time.Duration, info ClientInfo) error
	Event(id int64, eventType string, data json.RawMessage) error
	Heartbeat(ts int64) error
	Ping(ts int64) error
}

// SetStreamHeaders prepares a response for text/event-stream, disabling
// proxy buffering.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate, no-transform")
	h.Set("X-Accel-Buffering", "no")
	h.Set("Content-Encoding", "identity")
	h.Set("Connection", "keep-alive")
}

// StreamSink writes Server-Sent Events frames and flushes after each one.
type StreamSink struct {
	w  io.Writer
	rc *http.ResponseController
}

func NewStreamSink(w http.ResponseWriter) *StreamSink {
	return &StreamSink{w: w, rc: http.NewResponseController(w)}
}

func (s *StreamSink) Open(retry time.Duration, info ClientInfo) error {
	data, err := json.Marshal(map[string]interface{}{
		"clientId": info.ID,
		"channel":  info.Channel,
		"userId":   info.UserID,
	})
	if err != nil {
		return err
	}
	if err := sse.Encode(s.w, sse.Event{
		Event: EventConnected,
		Retry: uint(retry.Milliseconds()),
		Data:  string(data),
	}); err != nil {
		return err
	}
	return s.flush()
}

func (s *StreamSink) Event(id int64, eventType string, data json.RawMessage) error {
	if eventType == "" {
		eventType = "message"
	}
	if err := sse.Encode(s.w, sse.Event{
		Id:    strconv.FormatInt(id, 10),
		Event: eventType,
		Data:  string(data),
	}); err != nil {
		return err
	}
	return s.flush()
}

func (s *StreamSink) Heartbeat(ts int64) error {
	if _, err := fmt.Fprintf(s.w, ": heartbeat %d\n\n", ts); err != nil {
		return err
	}
	return s.flush()
}

func (s *StreamSink) Ping(ts int64) error {
	if err := sse.Encode(s.w, sse.Event{
		Event: EventPing,
		Data:  fmt.Sprintf(`{"ts":%d}`, ts),
	}); err != nil {
		return err
	}
	return s.flush()
}

func (s *StreamSink) flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Message is the JSON frame sent over the WebSocket transport.
type Message struct {
	ID    int64           `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const wsWriteWait = 10 * time.Second

type socketSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socketSink) write(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *socketSink) Open(_ time.Duration, info ClientInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.write(Message{Event: EventConnected, Data: data})
}

func (s *socketSink) Event(id int64, eventType string, data json.RawMessage) error {
	return s.write(Message{ID: id, Event: eventType, Data: data})
}

// Heartbeat is a no-op; the ping frame keeps sockets alive.
func (s *socketSink) Heartbeat(int64) error { return nil }

func (s *socketSink) Ping(ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, []byte(strconv.FormatInt(ts, 10)), time.Now().Add(wsWriteWait))
}

// ServeWebSocket streams the same events as Serve over an upgraded
// connection. Incoming messages are discarded; a read error ends the loop.
func (h *Hub) ServeWebSocket(ctx context.Context, conn *websocket.Conn, sub Subscription) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return h.Serve(ctx, &socketSink{conn: conn}, sub)
}
