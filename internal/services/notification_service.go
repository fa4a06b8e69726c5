package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"carpool-backend/internal/metrics"
	"carpool-backend/internal/models"
	"carpool-backend/internal/repository"

	"firebase.google.com/go/v4/messaging"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Типы уведомлений в поле data.type
const (
	NotificationTripRequest         = "TRIP_REQUEST"
	NotificationTripRequestAccepted = "TRIP_REQUEST_ACCEPTED"
	NotificationTripRequestRejected = "TRIP_REQUEST_REJECTED"
	NotificationTripRequestCanceled = "TRIP_REQUEST_CANCELLED"
	NotificationNewMessage          = "NEW_MESSAGE"
)

const (
	defaultMaxAttempts   = 3
	defaultRetryInterval = 500 * time.Millisecond
	sendTimeout          = 10 * time.Second
)

// NotificationEvent содержимое push-уведомления
type NotificationEvent struct {
	Type  string
	Title string
	Body  string
	Data  map[string]string
}

// MessageSender часть *messaging.Client, нужная для отправки
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type notificationJob struct {
	userID string
	role   models.UserRole
	event  NotificationEvent
}

// NotificationService отправляет push-уведомления через FCM пулом воркеров.
// Ошибки отправки логируются и никогда не возвращаются вызывающему.
type NotificationService struct {
	sender        MessageSender
	users         UserStore
	queue         chan notificationJob
	workers       int
	maxAttempts   uint64
	retryInterval time.Duration
	log           *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewNotificationService создает сервис; при nil sender уведомления только логируются
func NewNotificationService(sender MessageSender, users UserStore, workers, queueSize int, log *zap.Logger) *NotificationService {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &NotificationService{
		sender:        sender,
		users:         users,
		queue:         make(chan notificationJob, queueSize),
		workers:       workers,
		maxAttempts:   defaultMaxAttempts,
		retryInterval: defaultRetryInterval,
		log:           log.Named("notifications"),
		stop:          make(chan struct{}),
	}
}

// Start запускает воркеры
func (s *NotificationService) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.worker(id)
		}(i)
	}
	s.log.Info("Сервис уведомлений запущен", zap.Int("workers", s.workers), zap.Int("queue_size", cap(s.queue)))
}

// Stop останавливает воркеры; задачи, оставшиеся в очереди, отбрасываются
func (s *NotificationService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Notify ставит уведомление в очередь; при заполненной очереди оно отбрасывается
func (s *NotificationService) Notify(userID string, role models.UserRole, event NotificationEvent) {
	if s.sender == nil {
		s.log.Debug("FCM не настроен, уведомление пропущено",
			zap.String("user_id", userID), zap.String("type", event.Type))
		return
	}

	select {
	case s.queue <- notificationJob{userID: userID, role: role, event: event}:
	default:
		metrics.TrackNotification(metrics.NotificationDropped)
		s.log.Warn("Очередь уведомлений заполнена, уведомление отброшено",
			zap.String("user_id", userID), zap.String("type", event.Type))
	}
}

func (s *NotificationService) worker(id int) {
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.queue:
			s.deliver(job)
		}
	}
}

func (s *NotificationService) deliver(job notificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	logger := s.log.With(
		zap.String("user_id", job.userID),
		zap.String("role", string(job.role)),
		zap.String("type", job.event.Type))

	user, err := s.users.GetBySubjectRole(ctx, job.userID, job.role)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		metrics.TrackNotification(metrics.NotificationFailed)
		logger.Error("Ошибка при получении токена устройства", zap.Error(err))
		return
	}
	if user == nil || !user.HasDeviceToken() {
		metrics.TrackNotification(metrics.NotificationNoToken)
		logger.Debug("Пользователь не найден или нет токена устройства")
		return
	}
	token := *user.DeviceToken

	message := buildMessage(token, job.event)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.maxAttempts-1), ctx)

	var messageID string
	err = backoff.Retry(func() error {
		id, sendErr := s.sender.Send(ctx, message)
		if sendErr == nil {
			messageID = id
			return nil
		}
		if messaging.IsUnregistered(sendErr) || messaging.IsInvalidArgument(sendErr) {
			return backoff.Permanent(sendErr)
		}
		logger.Warn("Ошибка отправки уведомления, повторяем", zap.Error(sendErr))
		return sendErr
	}, retry)

	if err == nil {
		metrics.TrackNotification(metrics.NotificationSent)
		logger.Debug("Уведомление отправлено", zap.String("message_id", messageID))
		return
	}

	if messaging.IsUnregistered(err) {
		if clearErr := s.users.ClearDeviceToken(ctx, token); clearErr != nil {
			logger.Error("Не удалось удалить устаревший токен устройства", zap.Error(clearErr))
		} else {
			metrics.TrackNotification(metrics.NotificationTokenReset)
			logger.Info("Устаревший токен устройства удален")
		}
		return
	}

	metrics.TrackNotification(metrics.NotificationFailed)
	logger.Error("Не удалось отправить уведомление", zap.Error(err))
}

func buildMessage(token string, event NotificationEvent) *messaging.Message {
	data := make(map[string]string, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	data["type"] = event.Type

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: event.Title,
			Body:  event.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
