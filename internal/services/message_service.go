package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"

	"go.uber.org/zap"
)

// EventNewMessage событие комнаты чата с новым сообщением
const EventNewMessage = "new-message"

// SendMessageInput сообщение в чат заявки
type SendMessageInput struct {
	TripRequestID string `json:"tripRequestId" validate:"required"`
	Content       string `json:"content" validate:"required,max=2000"`
	ReceiverID    string `json:"receiverId" validate:"required"`
}

// MessageService чат между водителем и пассажиром заявки. Используется и HTTP, и WebSocket.
type MessageService struct {
	messages MessageStore
	requests TripRequestStore
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

func NewMessageService(messages MessageStore, requests TripRequestStore, notifier Notifier, log *zap.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		requests: requests,
		notifier: notifier,
		now:      time.Now,
		log:      log.Named("messages"),
	}
}

// Authorize проверяет, что actorID участник заявки
func (s *MessageService) Authorize(ctx context.Context, tripRequestID, actorID string) (*models.TripRequest, error) {
	req, err := s.requests.GetByID(ctx, tripRequestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Заявка не найдена")
	}
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении заявки", err)
	}
	if !req.IsParticipant(actorID) {
		return nil, apperrors.Forbidden("Нет доступа к сообщениям этой заявки")
	}
	return req, nil
}

// ListMessages сообщения заявки от старых к новым
func (s *MessageService) ListMessages(ctx context.Context, tripRequestID, callerID string) ([]models.Message, error) {
	if _, err := s.Authorize(ctx, tripRequestID, callerID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByTripRequest(ctx, tripRequestID)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении сообщений", err)
	}
	return messages, nil
}

// SendMessage сохраняет сообщение; получатель должен быть вторым участником заявки
func (s *MessageService) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*models.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.TripRequestID = strings.TrimSpace(in.TripRequestID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	req, err := s.Authorize(ctx, in.TripRequestID, senderID)
	if err != nil {
		return nil, err
	}
	if in.ReceiverID != req.OtherParticipant(senderID) || in.ReceiverID == senderID {
		return nil, apperrors.ValidationCode(apperrors.CodeInvalidReceiver, "Неверный получатель")
	}

	msg := &models.Message{
		TripRequestID: req.ID,
		SenderID:      senderID,
		ReceiverID:    in.ReceiverID,
		Content:       in.Content,
		Timestamp:     s.now().UTC(),
		Read:          false,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.Upstream("Ошибка при сохранении сообщения", err)
	}

	s.notifier.Notify(msg.ReceiverID, req.RoleOf(msg.ReceiverID), NotificationEvent{
		Type:  NotificationNewMessage,
		Title: "Новое сообщение",
		Body:  preview(msg.Content, 100),
		Data: map[string]string{
			"tripRequestId": req.ID,
			"messageId":     msg.ID,
			"senderId":      senderID,
		},
	})

	s.log.Debug("Сообщение сохранено",
		zap.String("message_id", msg.ID),
		zap.String("trip_request_id", req.ID),
		zap.String("sender_id", senderID))
	return msg, nil
}

// MarkRead отмечает сообщение прочитанным; доступно только получателю
func (s *MessageService) MarkRead(ctx context.Context, messageID, callerID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Сообщение не найдено")
	}
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении сообщения", err)
	}
	if msg.ReceiverID != callerID {
		return nil, apperrors.Forbidden("Нет прав отметить это сообщение прочитанным")
	}
	if msg.Read {
		return msg, nil
	}
	if err := s.messages.MarkRead(ctx, messageID); err != nil {
		return nil, apperrors.Upstream("Ошибка при обновлении сообщения", err)
	}
	msg.Read = true
	return msg, nil
}

func preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "…"
}
