package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Bus stores events so that subscribers can read everything after a cursor.
// Ids are ascending per bus.
type Bus interface {
	Append(ctx context.Context, ev Event) (Event, error)
	Since(ctx context.Context, channel string, afterID int64, limit int) ([]Event, error)
	LatestID(ctx context.Context, channel string) (int64, error)
}

// MemoryBus keeps a bounded window of recent events in process memory.
type MemoryBus struct {
	mu        sync.RWMutex
	events    []Event
	nextID    int64
	capacity  int
	retention time.Duration
	now       func() time.Time
}

func NewMemoryBus(capacity int, retention time.Duration) *MemoryBus {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryBus{
		events:    make([]Event, 0, capacity),
		capacity:  capacity,
		retention: retention,
		now:       time.Now,
	}
}

func (b *MemoryBus) Append(_ context.Context, ev Event) (Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ev.ID = b.nextID
	ev.CreatedAt = b.now()
	ev.Payload = normalizePayload(ev.Payload)

	b.events = append(b.events, ev)
	b.pruneLocked()
	return ev, nil
}

func (b *MemoryBus) Since(_ context.Context, channel string, afterID int64, limit int) ([]Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0)
	for _, ev := range b.events {
		if ev.ID <= afterID || !matchesChannel(channel, ev.Channel) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *MemoryBus) LatestID(_ context.Context, channel string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := len(b.events) - 1; i >= 0; i-- {
		if matchesChannel(channel, b.events[i].Channel) {
			return b.events[i].ID, nil
		}
	}
	return 0, nil
}

func (b *MemoryBus) pruneLocked() {
	drop := 0
	if over := len(b.events) - b.capacity; over > 0 {
		drop = over
	}
	if b.retention > 0 {
		cutoff := b.now().Add(-b.retention)
		for drop < len(b.events) && b.events[drop].CreatedAt.Before(cutoff) {
			drop++
		}
	}
	if drop > 0 {
		b.events = append(b.events[:0:0], b.events[drop:]...)
	}
}

// Options configures a bus driver from the service configuration.
type Options struct {
	Driver        string
	Table         string
	File          string
	Retention     time.Duration
	Buffer        int
	SnowflakeNode int64
}

// Drivers
const (
	DriverMemory = "memory"
	DriverTable  = "table"
	DriverFile   = "file"
)

// Open returns the bus named by opts.Driver. db may be nil unless the table
// driver is selected.
func Open(opts Options, db *gorm.DB) (Bus, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryBus(opts.Buffer, opts.Retention), nil
	case DriverTable:
		if db == nil {
			return nil, fmt.Errorf("table event bus requires a database")
		}
		return NewTableBus(db, opts.Table), nil
	case DriverFile:
		return NewFileBus(opts.File, opts.Retention, opts.SnowflakeNode)
	}
	return nil, fmt.Errorf("unknown event bus driver %q", opts.Driver)
}
