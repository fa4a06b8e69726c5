package repository

import (
	"context"
	"time"

	"carpool-backend/internal/models"

	"gorm.io/gorm"
)

type TripRequestRepository struct {
	db *gorm.DB
}

func NewTripRequestRepository(db *gorm.DB) *TripRequestRepository {
	return &TripRequestRepository{db: db}
}

func (r *TripRequestRepository) Create(ctx context.Context, req *models.TripRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *TripRequestRepository) GetByID(ctx context.Context, id string) (*models.TripRequest, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var req models.TripRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// TransitionFromPending меняет статус только если заявка все еще в pending.
// Возвращает false, если ни одна строка не изменилась.
func (r *TripRequestRepository) TransitionFromPending(ctx context.Context, id string, to models.TripRequestStatus, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.TripRequest{}).
		Where("id = ? AND status = ?", id, models.TripRequestStatusPending).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TripRequestRepository) ListByDriver(ctx context.Context, driverID string) ([]models.TripRequest, error) {
	return r.list(ctx, "driver_id = ?", driverID)
}

func (r *TripRequestRepository) ListByPassenger(ctx context.Context, passengerID string) ([]models.TripRequest, error) {
	return r.list(ctx, "passenger_id = ?", passengerID)
}

func (r *TripRequestRepository) list(ctx context.Context, cond string, id string) ([]models.TripRequest, error) {
	requests := []models.TripRequest{}
	if err := r.db.WithContext(ctx).Where(cond, id).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
