package services

import (
	"context"
	"strings"

	"carpool-backend/internal/apperrors"
	"carpool-backend/internal/models"

	"go.uber.org/zap"
)

// RegisterDeviceTokenInput регистрация устройства для push-уведомлений.
// Без роли токен сохраняется и для водителя, и для пассажира.
type RegisterDeviceTokenInput struct {
	Token       string          `json:"token" validate:"required"`
	Role        models.UserRole `json:"role" validate:"omitempty,oneof=driver passenger"`
	DisplayName string          `json:"displayName" validate:"max=100"`
	Email       string          `json:"email" validate:"omitempty,email"`
}

type UserService struct {
	users UserStore
	log   *zap.Logger
}

func NewUserService(users UserStore, log *zap.Logger) *UserService {
	return &UserService{users: users, log: log.Named("users")}
}

// RegisterDeviceToken сохраняет токен устройства пользователя subject
func (s *UserService) RegisterDeviceToken(ctx context.Context, subject string, in RegisterDeviceTokenInput) ([]models.User, error) {
	in.Token = strings.TrimSpace(in.Token)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	roles := []models.UserRole{in.Role}
	if in.Role == "" {
		roles = []models.UserRole{models.UserRoleDriver, models.UserRolePassenger}
	}

	for _, role := range roles {
		token := in.Token
		user := &models.User{
			Subject:     subject,
			Role:        role,
			DisplayName: in.DisplayName,
			Email:       in.Email,
			DeviceToken: &token,
		}
		if err := s.users.UpsertDeviceToken(ctx, user); err != nil {
			return nil, apperrors.Upstream("Ошибка при сохранении токена устройства", err)
		}
	}

	s.log.Info("Токен устройства обновлен", zap.String("subject", subject), zap.Int("roles", len(roles)))
	return s.Profiles(ctx, subject)
}

// Profiles записи пользователя по всем ролям
func (s *UserService) Profiles(ctx context.Context, subject string) ([]models.User, error) {
	users, err := s.users.ListBySubject(ctx, subject)
	if err != nil {
		return nil, apperrors.Upstream("Ошибка при получении пользователя", err)
	}
	return users, nil
}
