package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/realtime"
)

func TestBusJanitorPrunesOldRowsButKeepsNewest(t *testing.T) {
	db := setupTestDB(t)
	bus := realtime.NewTableBus(db, "event_bus")
	ctx := context.Background()

	var last realtime.Event
	for i := 0; i < 3; i++ {
		ev, err := bus.Append(ctx, realtime.Event{
			Type:    realtime.EventOrderUpdate,
			Channel: realtime.ChannelOrders,
			Payload: json.RawMessage(`{"id":1}`),
		})
		require.NoError(t, err)
		last = ev
	}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&models.BusEvent{}).Where("1 = 1").Update("created_at", old).Error)

	janitor := NewBusJanitor(db, "event_bus", time.Minute)
	assert.Equal(t, int64(2), janitor.Prune(time.Now()))

	latest, err := bus.LatestID(ctx, realtime.ChannelOrders)
	require.NoError(t, err)
	assert.Equal(t, last.ID, latest)

	assert.Zero(t, janitor.Prune(time.Now()))
}

func TestBusJanitorStopIsIdempotent(t *testing.T) {
	janitor := NewBusJanitor(setupTestDB(t), "", 0)
	assert.Equal(t, "event_bus", janitor.Table)
	assert.Equal(t, time.Minute, janitor.Retention)

	janitor.Start()
	janitor.Stop()
	janitor.Stop()
}
