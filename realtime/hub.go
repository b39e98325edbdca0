package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/yeremiapane/backoffice/utils"
)

// Enricher may replace an event payload before it is sent, e.g. to expand
// an order id into the full order. Returning nil keeps the stored payload.
type Enricher func(ctx context.Context, ev Event) json.RawMessage

type HubOptions struct {
	PollInterval time.Duration
	PingInterval time.Duration
	Retry        time.Duration
	BatchLimit   int
}

// Subscription describes what a connection wants to receive.
type Subscription struct {
	Channel     string
	UserID      int64
	From        string
	LastEventID string
}

type ClientInfo struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	UserID      int64     `json:"userId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type client struct {
	info   ClientInfo
	wake   chan struct{}
	cursor int64
}

// Hub owns the live connections and fans bus events out to them. Each
// connection runs its own loop that reads the bus after its cursor.
type Hub struct {
	bus    Bus
	enrich Enricher
	opts   HubOptions

	mu      sync.RWMutex
	clients map[string]*client

	done     chan struct{}
	doneOnce sync.Once
}

func NewHub(bus Bus, enrich Enricher, opts HubOptions) *Hub {
	if opts.PollInterval < 200*time.Millisecond {
		opts.PollInterval = 200 * time.Millisecond
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 3 * time.Second
	}
	if opts.BatchLimit < 1 {
		opts.BatchLimit = 200
	}
	return &Hub{
		bus:     bus,
		enrich:  enrich,
		opts:    opts,
		clients: make(map[string]*client),
		done:    make(chan struct{}),
	}
}

// Publish appends an event to the bus and wakes every connection.
func (h *Hub) Publish(ctx context.Context, eventType, channel string, userIDs []int64, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	ev, err := h.bus.Append(ctx, Event{
		Type:    eventType,
		Channel: channel,
		UserIDs: userIDs,
		Payload: raw,
	})
	if err != nil {
		return Event{}, err
	}

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
	h.mu.RUnlock()

	utils.InfoLogger.Debugf("[SSE] published %s on %s (id=%d)", eventType, channel, ev.ID)
	return ev, nil
}

// Clients returns a snapshot of the connected subscribers.
func (h *Hub) Clients() []ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ClientInfo, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info)
	}
	return out
}

// Shutdown ends every running connection loop. It is safe to call twice.
func (h *Hub) Shutdown() {
	h.doneOnce.Do(func() {
		close(h.done)
	})
}

// ResolveCursor picks the starting point: an explicit from value, then the
// Last-Event-ID header, then the newest id on the channel. A requested id
// beyond anything the bus holds was issued by an earlier process (a memory
// bus restarts at 1), so the client replays the whole buffer instead.
func (h *Hub) ResolveCursor(ctx context.Context, sub Subscription) int64 {
	for _, raw := range []string{sub.From, sub.LastEventID} {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id < 0 {
			continue
		}
		if id == 0 {
			return 0
		}

		latest, err := h.bus.LatestID(ctx, ChannelAll)
		if err != nil {
			utils.ErrorLogger.Errorf("[SSE] error reading latest event id: %v", err)
			return id
		}
		if id > latest {
			utils.InfoLogger.Printf("[SSE] cursor %d is ahead of the bus (latest=%d), replaying from 0", id, latest)
			return 0
		}
		return id
	}

	latest, err := h.bus.LatestID(ctx, sub.Channel)
	if err != nil {
		utils.ErrorLogger.Errorf("[SSE] error reading latest event id: %v", err)
		return 0
	}
	return latest
}

// Serve runs the connection loop until ctx is cancelled, the hub shuts down
// or a write fails.
func (h *Hub) Serve(ctx context.Context, s Sink, sub Subscription) error {
	if sub.Channel == "" {
		sub.Channel = ChannelOrders
	}

	c := &client{
		info: ClientInfo{
			ID:          "client_" + ksuid.New().String(),
			Channel:     sub.Channel,
			UserID:      sub.UserID,
			ConnectedAt: time.Now(),
		},
		wake:   make(chan struct{}, 1),
		cursor: h.ResolveCursor(ctx, sub),
	}

	if err := s.Open(h.opts.Retry, c.info); err != nil {
		return err
	}

	h.register(c)
	defer h.unregister(c)

	utils.InfoLogger.Printf("[SSE] client connected (id=%s channel=%s user=%d from=%d)",
		c.info.ID, c.info.Channel, c.info.UserID, c.cursor)

	poll := time.NewTicker(h.opts.PollInterval)
	defer poll.Stop()
	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()

	// deliver anything already past the cursor without waiting a tick
	if _, err := h.drain(ctx, s, c); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			utils.InfoLogger.Printf("[SSE] client disconnected (id=%s)", c.info.ID)
			return nil
		case <-h.done:
			return nil
		case <-c.wake:
			if _, err := h.drain(ctx, s, c); err != nil {
				return err
			}
		case <-poll.C:
			sent, err := h.drain(ctx, s, c)
			if err != nil {
				return err
			}
			if sent == 0 {
				if err := s.Heartbeat(time.Now().UnixMilli()); err != nil {
					return err
				}
			}
		case <-ping.C:
			if err := s.Ping(time.Now().UnixMilli()); err != nil {
				return err
			}
		}
	}
}

// drain sends every visible event after the cursor. Bus errors are logged
// and swallowed; only write errors end the connection.
func (h *Hub) drain(ctx context.Context, s Sink, c *client) (int, error) {
	sent := 0
	for {
		events, err := h.bus.Since(ctx, c.info.Channel, c.cursor, h.opts.BatchLimit)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				utils.ErrorLogger.Errorf("[SSE] error polling events: %v", err)
			}
			return sent, nil
		}

		for _, ev := range events {
			c.cursor = ev.ID
			if !ev.VisibleTo(c.info.UserID) {
				continue
			}

			data := ev.Payload
			if h.enrich != nil {
				if enriched := h.enrich(ctx, ev); enriched != nil {
					data = enriched
				}
			}
			if err := s.Event(ev.ID, ev.Type, data); err != nil {
				return sent, err
			}
			sent++
		}

		if len(events) < h.opts.BatchLimit {
			return sent, nil
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.info.ID] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.info.ID)
}
