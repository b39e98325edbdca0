package models

import "time"

// BusEvent is a row of the shared event table read by the table bus and
// written by the MySQL triggers.
type BusEvent struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Type      string    `gorm:"column:type;type:varchar(50);not null"`
	Channel   string    `gorm:"column:channel;type:varchar(50);not null;index:idx_channel_id"`
	UserIDs   *string   `gorm:"column:user_ids;type:text"`
	Payload   *string   `gorm:"column:payload;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BusEvent) TableName() string { return "event_bus" }

// All returns every model the service migrates, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Attendance{},
		&Cliente{},
		&DeliveryPlace{},
		&Order{},
		&Payment{},
		&OrderPayment{},
		&Lancamento{},
		&ChatMessage{},
		&BusEvent{},
	}
}
