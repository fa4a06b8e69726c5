package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message сообщение чата в рамках заявки на поездку
type Message struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid"`
	TripRequestID string    `json:"tripRequestId" gorm:"type:uuid;not null"`
	SenderID      string    `json:"senderId" gorm:"not null"`
	ReceiverID    string    `json:"receiverId" gorm:"not null"`
	Content       string    `json:"content" gorm:"not null"`
	Timestamp     time.Time `json:"timestamp" gorm:"column:sent_at;not null"`
	Seq           int64     `json:"-" gorm:"autoIncrement"` // порядок вставки, разрешает равные timestamp
	Read          bool      `json:"read" gorm:"not null;default:false"`
}

func (m *Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type ChatUser struct {
	ID string `json:"_id"`
}

// RoomMessage формат сообщения, рассылаемый всем участникам комнаты чата
type RoomMessage struct {
	ID            string    `json:"_id"`
	TripRequestID string    `json:"tripRequestId"`
	Text          string    `json:"text"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"createdAt"`
	Timestamp     time.Time `json:"timestamp"`
	User          ChatUser  `json:"user"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Read          bool      `json:"read"`
}

// ChatMessage формат сообщения в истории чата конкретного пользователя
type ChatMessage struct {
	RoomMessage
	Received bool `json:"received"`
}

func (m *Message) ToRoom() RoomMessage {
	return RoomMessage{
		ID:            m.ID,
		TripRequestID: m.TripRequestID,
		Text:          m.Content,
		Content:       m.Content,
		CreatedAt:     m.Timestamp,
		Timestamp:     m.Timestamp,
		User:          ChatUser{ID: m.SenderID},
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Read:          m.Read,
	}
}

// ToChat форматирует сообщение; received показывает, что сообщение пришло просматривающему
func (m *Message) ToChat(viewerID string) ChatMessage {
	return ChatMessage{RoomMessage: m.ToRoom(), Received: m.SenderID != viewerID}
}
