package repository

import (
	"context"

	"carpool-backend/internal/models"

	"gorm.io/gorm"
)

const routeBatchSize = 500

type RouteRepository struct {
	db *gorm.DB
}

func NewRouteRepository(db *gorm.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

func (r *RouteRepository) Create(ctx context.Context, route *models.Route) error {
	return r.db.WithContext(ctx).Create(route).Error
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*models.Route, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var route models.Route
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&route).Error; err != nil {
		return nil, translate(err)
	}
	return &route, nil
}

// GetByIDs загружает маршруты одним запросом; порядок результата не определен
func (r *RouteRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Route, error) {
	routes := []models.Route{}
	ids = validIDs(ids)
	if len(ids) == 0 {
		return routes, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&routes).Error; err != nil {
		return nil, err
	}
	return routes, nil
}

// ForEach обходит все маршруты пачками
func (r *RouteRepository) ForEach(ctx context.Context, fn func(route *models.Route) error) error {
	var batch []models.Route
	return r.db.WithContext(ctx).Order("created_at").FindInBatches(&batch, routeBatchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	}).Error
}
