package models

import "time"

type ChatMessage struct {
	ID                uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SenderID          int64      `gorm:"column:sender_id;index" json:"sender_id"`
	ReceiverID        int64      `gorm:"column:receiver_id;index" json:"receiver_id"`
	Message           string     `gorm:"column:message;type:text" json:"message"`
	CreatedAt         time.Time  `gorm:"column:created_at" json:"created_at"`
	ReadAt            *time.Time `gorm:"column:read_at" json:"read_at"`
	DeletedBySender   bool       `gorm:"column:deleted_by_sender;default:false" json:"-"`
	DeletedByReceiver bool       `gorm:"column:deleted_by_receiver;default:false" json:"-"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
