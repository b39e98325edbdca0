package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// FileBus keeps recent events in a JSON array on disk, the layout the PHP
// dashboard also reads. Records older than the retention window are pruned
// on every access. The mutex only serialises writers inside this process.
type FileBus struct {
	path      string
	retention time.Duration
	node      *snowflake.Node
	mu        sync.Mutex
	now       func() time.Time
}

func NewFileBus(path string, retention time.Duration, nodeID int64) (*FileBus, error) {
	if path == "" {
		return nil, errors.New("event bus file path is empty")
	}
	if retention <= 0 {
		retention = time.Minute
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileBus{path: path, retention: retention, node: node, now: time.Now}, nil
}

func (b *FileBus) Append(_ context.Context, ev Event) (Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	events, err := b.load()
	if err != nil {
		return Event{}, err
	}
	events = b.prune(events)

	ev.ID = b.node.Generate().Int64()
	ev.CreatedAt = b.now()
	ev.Payload = normalizePayload(ev.Payload)
	events = append(events, ev)

	if err := b.store(events); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (b *FileBus) Since(_ context.Context, channel string, afterID int64, limit int) ([]Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	events, err := b.load()
	if err != nil {
		return nil, err
	}
	if kept := b.prune(events); len(kept) != len(events) {
		if err := b.store(kept); err != nil {
			return nil, err
		}
		events = kept
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	out := make([]Event, 0)
	for _, ev := range events {
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

func (b *FileBus) LatestID(_ context.Context, channel string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	events, err := b.load()
	if err != nil {
		return 0, err
	}

	var maxID int64
	for _, ev := range events {
		if matchesChannel(channel, ev.Channel) && ev.ID > maxID {
			maxID = ev.ID
		}
	}
	return maxID, nil
}

func (b *FileBus) prune(events []Event) []Event {
	cutoff := b.now().Add(-b.retention)
	kept := events[:0:0]
	for _, ev := range events {
		if ev.CreatedAt.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func (b *FileBus) load() ([]Event, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		// a truncated file from a concurrent writer is treated as empty
		return nil, nil
	}
	return events, nil
}

func (b *FileBus) store(events []Event) error {
	if events == nil {
		events = []Event{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return err
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, b.path)
}
