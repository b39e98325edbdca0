package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

// TableBus reads and appends rows of an event table. Other writers, such as
// the MySQL triggers on os, append to the same table; subscribers only see
// their rows on the next poll.
type TableBus struct {
	db    *gorm.DB
	table string
}

func NewTableBus(db *gorm.DB, table string) *TableBus {
	if table == "" {
		table = models.BusEvent{}.TableName()
	}
	return &TableBus{db: db, table: table}
}

func (b *TableBus) Append(ctx context.Context, ev Event) (Event, error) {
	row := models.BusEvent{
		Type:    ev.Type,
		Channel: ev.Channel,
	}
	payload := string(normalizePayload(ev.Payload))
	row.Payload = &payload
	if len(ev.UserIDs) > 0 {
		ids, err := json.Marshal(ev.UserIDs)
		if err != nil {
			return Event{}, err
		}
		s := string(ids)
		row.UserIDs = &s
	}

	if err := b.db.WithContext(ctx).Table(b.table).Create(&row).Error; err != nil {
		return Event{}, fmt.Errorf("append to %s: %w", b.table, err)
	}
	return rowToEvent(row), nil
}

func (b *TableBus) Since(ctx context.Context, channel string, afterID int64, limit int) ([]Event, error) {
	q := b.db.WithContext(ctx).Table(b.table).Where("id > ?", afterID)
	if channel != ChannelAll {
		q = q.Where("channel = ?", channel)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.BusEvent
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s: %w", b.table, err)
	}

	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToEvent(r))
	}
	return out, nil
}

func (b *TableBus) LatestID(ctx context.Context, channel string) (int64, error) {
	q := b.db.WithContext(ctx).Table(b.table).Select("COALESCE(MAX(id), 0)")
	if channel != ChannelAll {
		q = q.Where("channel = ?", channel)
	}

	var maxID int64
	if err := q.Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("max id of %s: %w", b.table, err)
	}
	return maxID, nil
}

func rowToEvent(r models.BusEvent) Event {
	ev := Event{
		ID:        r.ID,
		Type:      r.Type,
		Channel:   r.Channel,
		CreatedAt: r.CreatedAt,
	}
	if ev.Type == "" {
		ev.Type = "message"
	}
	if r.Payload != nil {
		ev.Payload = normalizePayload(json.RawMessage(*r.Payload))
	} else {
		ev.Payload = json.RawMessage("{}")
	}
	if r.UserIDs != nil && *r.UserIDs != "" {
		if err := json.Unmarshal([]byte(*r.UserIDs), &ev.UserIDs); err != nil {
			ev.UserIDs = nil
			ev.unaddressed = true
			if ev.Channel == ChannelChat {
				utils.ErrorLogger.Warnf("[SSE] event %d has unreadable user_ids %q, hiding it", r.ID, *r.UserIDs)
			}
		}
	}
	return ev
}
