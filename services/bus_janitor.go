package services

import (
	"sync"
	"time"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

// BusJanitor trims old rows from the event table read by the table bus.
type BusJanitor struct {
	DB        *gorm.DB
	Table     string
	Retention time.Duration
	Interval  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewBusJanitor(db *gorm.DB, table string, retention time.Duration) *BusJanitor {
	if table == "" {
		table = models.BusEvent{}.TableName()
	}
	if retention <= 0 {
		retention = time.Minute
	}
	return &BusJanitor{
		DB:        db,
		Table:     table,
		Retention: retention,
		Interval:  retention,
		stop:      make(chan struct{}),
	}
}

func (j *BusJanitor) Start() {
	go func() {
		ticker := time.NewTicker(j.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.Prune(time.Now())
			case <-j.stop:
				return
			}
		}
	}()
}

func (j *BusJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// Prune deletes events older than the retention window, always keeping the
// newest row so LatestID never goes backwards.
func (j *BusJanitor) Prune(now time.Time) int64 {
	var maxID int64
	if err := j.DB.Table(j.Table).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		utils.ErrorLogger.Errorf("[SSE] error reading %s: %v", j.Table, err)
		return 0
	}

	res := j.DB.Table(j.Table).
		Where("created_at < ? AND id < ?", now.Add(-j.Retention), maxID).
		Delete(&models.BusEvent{})
	if res.Error != nil {
		utils.ErrorLogger.Errorf("[SSE] error pruning %s: %v", j.Table, res.Error)
		return 0
	}
	if res.RowsAffected > 0 {
		utils.InfoLogger.Printf("[SSE] pruned %d events from %s", res.RowsAffected, j.Table)
	}
	return res.RowsAffected
}
