package repository

import (
	"context"
	"time"

	"carpool-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertDeviceToken создает или обновляет запись (subject, role) одним INSERT ... ON CONFLICT
func (r *UserRepository) UpsertDeviceToken(ctx context.Context, user *models.User) error {
	updates := []string{"device_token", "updated_at"}
	if user.DisplayName != "" {
		updates = append(updates, "display_name")
	}
	if user.Email != "" {
		updates = append(updates, "email")
	}

	user.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}, {Name: "role"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(user).Error
}

func (r *UserRepository) GetBySubjectRole(ctx context.Context, subject string, role models.UserRole) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("subject = ? AND role = ?", subject, role).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) ListBySubject(ctx context.Context, subject string) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.WithContext(ctx).Where("subject = ?", subject).Order("role").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// DisplayNames имена пользователей с заданной ролью по subject
func (r *UserRepository) DisplayNames(ctx context.Context, subjects []string, role models.UserRole) (map[string]string, error) {
	names := make(map[string]string, len(subjects))
	if len(subjects) == 0 {
		return names, nil
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Select("subject", "display_name").
		Where("subject IN ? AND role = ?", subjects, role).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.DisplayName != "" {
			names[u.Subject] = u.DisplayName
		}
	}
	return names, nil
}

// ClearDeviceToken удаляет токен, который FCM больше не принимает
func (r *UserRepository) ClearDeviceToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("device_token = ?", token).
		Update("device_token", nil).Error
}
