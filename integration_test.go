package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/database"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/router"
	"github.com/yeremiapane/backoffice/services"
)

// sseEvent is one parsed text/event-stream frame.
type sseEvent struct {
	id, event, data string
}

func readEvents(t *testing.T, resp *http.Response) <-chan sseEvent {
	t.Helper()
	out := make(chan sseEvent, 32)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		var cur sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if cur.event != "" {
					out <- cur
				}
				cur = sseEvent{}
			case strings.HasPrefix(line, "id:"):
				cur.id = strings.TrimSpace(line[3:])
			case strings.HasPrefix(line, "event:"):
				cur.event = strings.TrimSpace(line[6:])
			case strings.HasPrefix(line, "data:"):
				cur.data = strings.TrimSpace(line[5:])
			}
		}
	}()
	return out
}

func waitFor(t *testing.T, events <-chan sseEvent, want string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed before %s", want)
			if ev.event == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
		}
	}
}

// TestOrderLifecycleOverStream creates and updates an order over HTTP and
// checks that a stream resuming from Last-Event-ID sees both changes with
// the full order attached.
func TestOrderLifecycleOverStream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, database.Migrate(db, "event_bus"))

	bus, err := realtime.Open(realtime.Options{Driver: realtime.DriverMemory, Buffer: 100, Retention: time.Minute}, nil)
	require.NoError(t, err)
	orders := services.NewOrderService(db, nil)
	hub := realtime.NewHub(bus, orders.Enrich, realtime.HubOptions{PollInterval: 200 * time.Millisecond})
	defer hub.Shutdown()
	orders.Events = hub

	cfg := &config.Config{DBDriver: "sqlite", LoginRatePerMinute: 10}
	srv := httptest.NewServer(router.SetupRouter(router.Deps{Config: cfg, DB: db, Hub: hub, Orders: orders}))
	defer srv.Close()

	post := func(method, path string, body interface{}) map[string]interface{} {
		raw, _ := json.Marshal(body)
		req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Less(t, resp.StatusCode, 300)
		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	created := post(http.MethodPost, "/api/orders", map[string]interface{}{"trabajo": "Banner", "valorTotal": 300})
	id := int64(created["id"].(float64))
	post(http.MethodPut, "/api/os/"+jsonNumber(id), map[string]interface{}{"status": "Terminado"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/realtime/stream?channel=os", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	waitFor(t, events, realtime.EventConnected)

	first := waitFor(t, events, realtime.EventOrderNew)
	assert.Equal(t, "1", first.id)
	second := waitFor(t, events, realtime.EventOrderUpdate)
	assert.Equal(t, "2", second.id)

	var order map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(second.data), &order))
	assert.Equal(t, float64(id), order["id"])
	assert.Equal(t, "Terminado", order["status"])
	assert.Equal(t, "Banner", order["trabajo"])
}

func jsonNumber(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func TestOrderEventsWithoutTriggers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:order_events?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	hub := realtime.NewHub(realtime.NewMemoryBus(10, 0), nil, realtime.HubOptions{})
	defer hub.Shutdown()

	saved := cfg
	defer func() { cfg = saved }()

	for _, driver := range []string{realtime.DriverMemory, realtime.DriverTable} {
		cfg = &config.Config{EventBusDriver: driver, EventBusTable: "event_bus"}
		assert.Same(t, hub, orderEvents(db, hub), driver)
	}
}
