package repository

import (
	"context"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
)

// InstanceRepositoryImpl implements InstanceRepository interface
type InstanceRepositoryImpl struct {
	*BaseRepository[models.Instance, models.InstanceFilter]
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &InstanceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Instance, models.InstanceFilter](db),
	}
}

// ListActiveByInstanceID returns the events a provider instance serves, newest binding first
func (r *InstanceRepositoryImpl) ListActiveByInstanceID(ctx context.Context, instanceID string) ([]*models.Instance, error) {
	filter := models.InstanceFilter{InstanceID: &instanceID, IsActive: utils.ToPtr(true)}
	return r.ByFilter(ctx, filter, "updated_at DESC, id DESC", 0, 0)
}

// Update persists every column of the instance binding
func (r *InstanceRepositoryImpl) Update(ctx context.Context, instance *models.Instance) error {
	return r.update(ctx, instance)
}

func (r *InstanceRepositoryImpl) applyFilter(query *gorm.DB, filter models.InstanceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.InstanceID != nil {
		query = query.Where("instance_id = ?", *filter.InstanceID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves instance bindings based on filter criteria
func (r *InstanceRepositoryImpl) ByFilter(ctx context.Context, filter models.InstanceFilter, orderBy string, limit, offset int) ([]*models.Instance, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Instance{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Instance
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of bindings matching the filter
func (r *InstanceRepositoryImpl) Count(ctx context.Context, filter models.InstanceFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Instance{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any binding matching the filter exists
func (r *InstanceRepositoryImpl) Exists(ctx context.Context, filter models.InstanceFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
