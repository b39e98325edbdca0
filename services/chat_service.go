package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yeremiapane/backoffice/models"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

const (
	chatPageSize      = 50
	maxChatMessageLen = 5000
)

type ChatUser struct {
	ID          uint    `json:"id"`
	Nombre      string  `json:"nombre"`
	Email       string  `json:"email"`
	Avatar      *string `json:"avatar"`
	UnreadCount int64   `json:"unread_count"`
}

type Conversation struct {
	UserID        uint       `json:"user_id"`
	UserName      string     `json:"user_name"`
	Avatar        *string    `json:"avatar"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int64      `json:"unread_count"`
}

// ChatMessageView is a message joined with its sender.
type ChatMessageView struct {
	ID           uint       `gorm:"column:id" json:"id"`
	SenderID     int64      `gorm:"column:sender_id" json:"sender_id"`
	ReceiverID   int64      `gorm:"column:receiver_id" json:"receiver_id"`
	Message      string     `gorm:"column:message" json:"message"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	ReadAt       *time.Time `gorm:"column:read_at" json:"read_at"`
	SenderName   *string    `gorm:"column:sender_name" json:"sender_name"`
	SenderAvatar *string    `gorm:"column:sender_avatar" json:"sender_avatar"`
}

type UnreadMessages struct {
	UnreadCount int               `json:"unread_count"`
	Messages    []ChatMessageView `json:"messages"`
}

type ChatService struct {
	DB     *gorm.DB
	Events Publisher
}

func NewChatService(db *gorm.DB, events Publisher) *ChatService {
	return &ChatService{DB: db, Events: events}
}

const chatMessageSelect = `SELECT
	chat_messages.id,
	chat_messages.sender_id,
	chat_messages.receiver_id,
	chat_messages.message,
	chat_messages.created_at,
	chat_messages.read_at,
	usuarios.nome AS sender_name,
	usuarios.foto AS sender_avatar
FROM chat_messages
LEFT JOIN usuarios ON usuarios.idUsuarios = chat_messages.sender_id`

// unreadBySender counts the unread messages addressed to userID per sender.
func (s *ChatService) unreadBySender(ctx context.Context, userID int64) (map[int64]int64, error) {
	var rows []struct {
		SenderID int64 `gorm:"column:sender_id"`
		Total    int64 `gorm:"column:total"`
	}
	err := s.DB.WithContext(ctx).Model(&models.ChatMessage{}).
		Select("sender_id, COUNT(*) AS total").
		Where("receiver_id = ? AND read_at IS NULL", userID).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.Total
	}
	return out, nil
}

// AvailableUsers lists everyone but userID, by name.
func (s *ChatService) AvailableUsers(ctx context.Context, userID int64) ([]ChatUser, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("idUsuarios <> ?", userID).Order("nome").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("chat users: %w", err)
	}
	unread, err := s.unreadBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat unread counts: %w", err)
	}

	out := make([]ChatUser, 0, len(users))
	for _, u := range users {
		out = append(out, ChatUser{
			ID:          u.ID,
			Nombre:      u.Nome,
			Email:       u.Email,
			Avatar:      u.Foto,
			UnreadCount: unread[int64(u.ID)],
		})
	}
	return out, nil
}

// Conversations returns one entry per user userID has exchanged messages
// with, most recent first.
func (s *ChatService) Conversations(ctx context.Context, userID int64) ([]Conversation, error) {
	db := s.DB.WithContext(ctx)

	var last []struct {
		OtherID int64 `gorm:"column:other_id"`
		LastID  int64 `gorm:"column:last_id"`
	}
	err := db.Raw(`SELECT
	CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS other_id,
	MAX(id) AS last_id
FROM chat_messages
WHERE sender_id = ? OR receiver_id = ?
GROUP BY other_id`,
		userID, userID, userID).Scan(&last).Error
	if err != nil {
		return nil, fmt.Errorf("chat conversations: %w", err)
	}
	if len(last) == 0 {
		return []Conversation{}, nil
	}

	otherIDs := make([]int64, 0, len(last))
	lastIDs := make([]int64, 0, len(last))
	for _, l := range last {
		otherIDs = append(otherIDs, l.OtherID)
		lastIDs = append(lastIDs, l.LastID)
	}

	var users []models.User
	if err := db.Where("idUsuarios IN ?", otherIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("chat conversation users: %w", err)
	}
	var messages []models.ChatMessage
	if err := db.Where("id IN ?", lastIDs).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("chat last messages: %w", err)
	}
	unread, err := s.unreadBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat unread counts: %w", err)
	}

	usersByID := make(map[int64]models.User, len(users))
	for _, u := range users {
		usersByID[int64(u.ID)] = u
	}
	msgByID := make(map[int64]models.ChatMessage, len(messages))
	for _, m := range messages {
		msgByID[int64(m.ID)] = m
	}

	out := make([]Conversation, 0, len(last))
	for _, l := range last {
		u, ok := usersByID[l.OtherID]
		if !ok {
			continue
		}
		conv := Conversation{
			UserID:      u.ID,
			UserName:    u.Nome,
			Avatar:      u.Foto,
			UnreadCount: unread[l.OtherID],
		}
		if m, ok := msgByID[l.LastID]; ok {
			conv.LastMessage = m.Message
			at := m.CreatedAt
			conv.LastMessageAt = &at
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return out, nil
}

// Messages returns the thread between userID and otherID in id order,
// optionally only after the message id since.
func (s *ChatService) Messages(ctx context.Context, userID, otherID, since int64) ([]ChatMessageView, error) {
	query := chatMessageSelect + `
WHERE ((chat_messages.sender_id = ? AND chat_messages.receiver_id = ?)
	OR (chat_messages.sender_id = ? AND chat_messages.receiver_id = ?))`
	args := []interface{}{userID, otherID, otherID, userID}
	if since > 0 {
		query += "\n\tAND chat_messages.id > ?"
		args = append(args, since)
	}
	query += "\nORDER BY chat_messages.id ASC\nLIMIT ?"
	args = append(args, chatPageSize)

	out := []ChatMessageView{}
	if err := s.DB.WithContext(ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("chat messages: %w", err)
	}
	return out, nil
}

// Send stores a message and notifies both participants.
func (s *ChatService) Send(ctx context.Context, userID, receiverID int64, text string) (*ChatMessageView, error) {
	if receiverID <= 0 {
		return nil, &ValidationError{Message: "receiverId es requerido"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Message: "message es requerido"}
	}
	if utf8.RuneCountInString(text) > maxChatMessageLen {
		return nil, &ValidationError{Message: fmt.Sprintf("message no puede superar %d caracteres", maxChatMessageLen)}
	}

	msg := &models.ChatMessage{SenderID: userID, ReceiverID: receiverID, Message: text}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("send chat message: %w", err)
	}

	var view ChatMessageView
	if err := s.DB.WithContext(ctx).Raw(chatMessageSelect+"\nWHERE chat_messages.id = ?", msg.ID).Scan(&view).Error; err != nil {
		return nil, fmt.Errorf("load chat message %d: %w", msg.ID, err)
	}

	utils.InfoLogger.Debugf("[chat] message %d from %d to %d", msg.ID, userID, receiverID)
	publish(ctx, s.Events, realtime.EventChatMessage, realtime.ChannelChat, []int64{userID, receiverID}, view)
	return &view, nil
}

// MarkAsRead marks every unread message from otherID to userID as read.
func (s *ChatService) MarkAsRead(ctx context.Context, userID, otherID int64) (int64, error) {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("sender_id = ? AND receiver_id = ? AND read_at IS NULL", otherID, userID).
		Update("read_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("mark chat read: %w", res.Error)
	}

	publish(ctx, s.Events, realtime.EventChatRead, realtime.ChannelChat, []int64{userID, otherID}, map[string]interface{}{
		"reader_id": userID,
		"sender_id": otherID,
		"timestamp": now.Format(time.RFC3339),
	})
	return res.RowsAffected, nil
}

// Unread returns the latest unread messages addressed to userID. sinceMs, a
// unix timestamp in milliseconds, keeps only messages created after it.
func (s *ChatService) Unread(ctx context.Context, userID, sinceMs int64) (*UnreadMessages, error) {
	query := chatMessageSelect + "\nWHERE chat_messages.receiver_id = ? AND chat_messages.read_at IS NULL"
	args := []interface{}{userID}
	if sinceMs > 0 {
		query += " AND chat_messages.created_at > ?"
		args = append(args, time.UnixMilli(sinceMs))
	}
	query += "\nORDER BY chat_messages.id DESC\nLIMIT ?"
	args = append(args, chatPageSize)

	out := &UnreadMessages{Messages: []ChatMessageView{}}
	if err := s.DB.WithContext(ctx).Raw(query, args...).Scan(&out.Messages).Error; err != nil {
		return nil, fmt.Errorf("chat unread: %w", err)
	}
	out.UnreadCount = len(out.Messages)
	return out, nil
}
