package repository

import (
	"context"

	"carpool-backend/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var msg models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// ListByTripRequest сообщения заявки от старых к новым
func (r *MessageRepository) ListByTripRequest(ctx context.Context, tripRequestID string) ([]models.Message, error) {
	messages := []models.Message{}
	if !validID(tripRequestID) {
		return messages, nil
	}
	err := r.db.WithContext(ctx).
		Where("trip_request_id = ?", tripRequestID).
		Order("sent_at ASC").
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update("read", true).Error
}
