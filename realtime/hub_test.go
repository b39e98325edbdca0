package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	id      int64
	event   string
	data    string
	comment string
	retry   string
}

func streamHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		uid, _ := strconv.ParseInt(q.Get("userId"), 10, 64)
		SetStreamHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		_ = h.Serve(r.Context(), NewStreamSink(w), Subscription{
			Channel:     q.Get("channel"),
			UserID:      uid,
			From:        q.Get("from"),
			LastEventID: r.Header.Get("Last-Event-ID"),
		})
	}
}

// connect opens a stream and returns parsed frames as they arrive.
func connect(t *testing.T, ctx context.Context, url string, header http.Header) <-chan frame {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan frame, 64)
	go func() {
		defer close(frames)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var cur frame
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				frames <- cur
				cur = frame{}
			case strings.HasPrefix(line, ":"):
				cur.comment = strings.TrimSpace(line[1:])
			case strings.HasPrefix(line, "id:"):
				cur.id, _ = strconv.ParseInt(strings.TrimSpace(line[3:]), 10, 64)
			case strings.HasPrefix(line, "event:"):
				cur.event = strings.TrimSpace(line[6:])
			case strings.HasPrefix(line, "data:"):
				cur.data = strings.TrimSpace(line[5:])
			case strings.HasPrefix(line, "retry:"):
				cur.retry = strings.TrimSpace(line[6:])
			}
		}
	}()
	return frames
}

// nextEvent skips heartbeats and pings until a frame of type want arrives.
func nextEvent(t *testing.T, frames <-chan frame, want string) frame {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			require.True(t, ok, "stream closed while waiting for %s", want)
			if f.event == want {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func newTestHub(bus Bus, enrich Enricher) *Hub {
	return NewHub(bus, enrich, HubOptions{
		PollInterval: 200 * time.Millisecond,
		PingInterval: time.Hour,
		Retry:        3 * time.Second,
		BatchLimit:   2,
	})
}

func publish(t *testing.T, h *Hub, eventType, channel string, userIDs []int64, payload interface{}) Event {
	t.Helper()
	ev, err := h.Publish(context.Background(), eventType, channel, userIDs, payload)
	require.NoError(t, err)
	return ev
}

func TestHubResumesFromLastEventID(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	publish(t, hub, EventOrderNew, ChannelOrders, nil, map[string]int{"id": 1})
	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 1})
	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 2})
	publish(t, hub, EventChatMessage, ChannelChat, []int64{1, 2}, map[string]string{"message": "x"})
	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := connect(t, ctx, srv.URL+"?channel=os", http.Header{"Last-Event-ID": {"2"}})

	connected := nextEvent(t, frames, EventConnected)
	assert.Equal(t, "3000", connected.retry)
	assert.Contains(t, connected.data, `"channel":"os"`)

	var ids []int64
	for len(ids) < 2 {
		f := nextEvent(t, frames, EventOrderUpdate)
		ids = append(ids, f.id)
	}
	assert.Equal(t, []int64{3, 5}, ids)

	live := publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 4})
	f := nextEvent(t, frames, EventOrderUpdate)
	assert.Equal(t, live.ID, f.id)
	assert.JSONEq(t, `{"id":4}`, f.data)

	// wait a few poll cycles and make sure nothing is delivered twice
	deadline := time.After(700 * time.Millisecond)
	for done := false; !done; {
		select {
		case f, ok := <-frames:
			if ok && f.id != 0 {
				t.Fatalf("unexpected duplicate frame id=%d", f.id)
			}
		case <-deadline:
			done = true
		}
	}
}

func TestHubFromQueryWinsOverHeader(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	for i := 0; i < 4; i++ {
		publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os&from=3", http.Header{"Last-Event-ID": {"1"}})

	f := nextEvent(t, frames, EventOrderUpdate)
	assert.Equal(t, int64(4), f.id)
}

func TestHubReplaysWhenCursorIsAheadOfBus(t *testing.T) {
	// a fresh memory bus, as after a restart
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	assert.Equal(t, int64(0), hub.ResolveCursor(context.Background(), Subscription{Channel: ChannelOrders, LastEventID: "50"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os", http.Header{"Last-Event-ID": {"50"}})
	nextEvent(t, frames, EventConnected)

	var want []int64
	for i := 0; i < 3; i++ {
		want = append(want, publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": i}).ID)
	}

	var got []int64
	for len(got) < 3 {
		got = append(got, nextEvent(t, frames, EventOrderUpdate).id)
	}
	assert.Equal(t, want, got)
}

func TestHubKeepsCursorWithinBus(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	defer hub.Shutdown()

	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 1})
	publish(t, hub, EventChatMessage, ChannelChat, []int64{1}, map[string]string{"message": "x"})

	// id 2 lives on another channel but is still a valid position
	assert.Equal(t, int64(2), hub.ResolveCursor(context.Background(), Subscription{Channel: ChannelOrders, LastEventID: "2"}))
	assert.Equal(t, int64(0), hub.ResolveCursor(context.Background(), Subscription{Channel: ChannelOrders, From: "3"}))
	assert.Equal(t, int64(1), hub.ResolveCursor(context.Background(), Subscription{Channel: ChannelOrders}))
}

func TestHubStartsAtLatestWithoutCursor(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os", nil)
	nextEvent(t, frames, EventConnected)

	ev := publish(t, hub, EventOrderNew, ChannelOrders, nil, map[string]int{"id": 2})
	f := nextEvent(t, frames, EventOrderNew)
	assert.Equal(t, ev.ID, f.id)
}

func TestHubFiltersChatByRecipient(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=chat&userId=10&from=0", nil)
	nextEvent(t, frames, EventConnected)

	mine := publish(t, hub, EventChatMessage, ChannelChat, []int64{10, 11}, map[string]string{"message": "a"})
	publish(t, hub, EventChatMessage, ChannelChat, []int64{12, 13}, map[string]string{"message": "b"})
	read := publish(t, hub, EventChatRead, ChannelChat, []int64{11, 10}, map[string]int{"reader_id": 11})

	f := nextEvent(t, frames, EventChatMessage)
	assert.Equal(t, mine.ID, f.id)
	f = nextEvent(t, frames, EventChatRead)
	assert.Equal(t, read.ID, f.id)
}

func TestHubAllChannelAndEnrichment(t *testing.T) {
	enrich := func(_ context.Context, ev Event) json.RawMessage {
		if ev.Channel != ChannelOrders {
			return nil
		}
		return json.RawMessage(`{"id":7,"status":"Entregado"}`)
	}
	hub := newTestHub(NewMemoryBus(100, 0), enrich)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=all&userId=1&from=0", nil)
	nextEvent(t, frames, EventConnected)

	publish(t, hub, EventOrderUpdate, ChannelOrders, nil, map[string]int{"id": 7})
	publish(t, hub, EventChatMessage, ChannelChat, []int64{1, 2}, map[string]string{"message": "hola"})

	f := nextEvent(t, frames, EventOrderUpdate)
	assert.JSONEq(t, `{"id":7,"status":"Entregado"}`, f.data)
	f = nextEvent(t, frames, EventChatMessage)
	assert.JSONEq(t, `{"message":"hola"}`, f.data)
}

func TestHubWritesHeartbeatWhenIdle(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os", nil)

	timeout := time.After(3 * time.Second)
	for {
		select {
		case f := <-frames:
			if strings.HasPrefix(f.comment, "heartbeat ") {
				return
			}
		case <-timeout:
			t.Fatal("no heartbeat received")
		}
	}
}

func TestHubTracksClients(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	frames := connect(t, ctx, srv.URL+"?channel=chat&userId=4", nil)
	nextEvent(t, frames, EventConnected)

	require.Eventually(t, func() bool { return len(hub.Clients()) == 1 }, 2*time.Second, 20*time.Millisecond)
	info := hub.Clients()[0]
	assert.True(t, strings.HasPrefix(info.ID, "client_"))
	assert.Equal(t, int64(4), info.UserID)

	cancel()
	assert.Eventually(t, func() bool { return len(hub.Clients()) == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestHubShutdownEndsStreams(t *testing.T) {
	hub := newTestHub(NewMemoryBus(100, 0), nil)
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os", nil)
	nextEvent(t, frames, EventConnected)

	hub.Shutdown()
	hub.Shutdown()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream still open after shutdown")
		}
	}
}

func TestHubPingsIndependentlyOfPolling(t *testing.T) {
	hub := NewHub(NewMemoryBus(100, 0), nil, HubOptions{
		PollInterval: time.Hour,
		PingInterval: 100 * time.Millisecond,
	})
	srv := httptest.NewServer(streamHandler(hub))
	defer srv.Close()
	defer hub.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames := connect(t, ctx, srv.URL+"?channel=os", nil)
	nextEvent(t, frames, EventConnected)

	f := nextEvent(t, frames, EventPing)
	assert.Contains(t, f.data, `"ts":`)
	assert.Zero(t, f.id)
}

func TestHubServesWebSocket(t *testing.T) {
	hub := NewHub(NewMemoryBus(100, 0), nil, HubOptions{
		PollInterval: time.Hour,
		PingInterval: 100 * time.Millisecond,
	})
	defer hub.Shutdown()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = hub.ServeWebSocket(r.Context(), conn, Subscription{Channel: ChannelChat, UserID: 5, From: "0"})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	pings := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})

	msgs := make(chan Message, 8)
	go func() {
		defer close(msgs)
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			msgs <- m
		}
	}()

	next := func() Message {
		t.Helper()
		select {
		case m, ok := <-msgs:
			require.True(t, ok, "socket closed")
			return m
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a message")
		}
		return Message{}
	}

	connected := next()
	assert.Equal(t, EventConnected, connected.Event)
	assert.Contains(t, string(connected.Data), `"userId":5`)

	publish(t, hub, EventChatMessage, ChannelChat, []int64{6, 7}, map[string]string{"message": "ajeno"})
	mine := publish(t, hub, EventChatMessage, ChannelChat, []int64{5, 6}, map[string]string{"message": "hola"})

	m := next()
	assert.Equal(t, mine.ID, m.ID)
	assert.Equal(t, EventChatMessage, m.Event)
	assert.JSONEq(t, `{"message":"hola"}`, string(m.Data))

	select {
	case <-pings:
	case <-time.After(3 * time.Second):
		t.Fatal("no ping control frame received")
	}

	require.Eventually(t, func() bool { return len(hub.Clients()) == 1 }, 2*time.Second, 20*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return len(hub.Clients()) == 0 }, 2*time.Second, 20*time.Millisecond)
}
