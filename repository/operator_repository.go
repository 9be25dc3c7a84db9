package repository

import (
	"context"

	"github.com/amirphl/rsvp-relay/models"
	"gorm.io/gorm"
)

// OperatorRepositoryImpl implements OperatorRepository interface
type OperatorRepositoryImpl struct {
	*BaseRepository[models.Operator, models.OperatorFilter]
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &OperatorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Operator, models.OperatorFilter](db),
	}
}

// ByUsername retrieves an operator by username
func (r *OperatorRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Operator, error) {
	filter := models.OperatorFilter{Username: &username}
	operators, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(operators) == 0 {
		return nil, nil
	}

	return operators[0], nil
}

// Update persists every column of the operator
func (r *OperatorRepositoryImpl) Update(ctx context.Context, operator *models.Operator) error {
	return r.update(ctx, operator)
}

// applyFilter applies filter criteria to a GORM query
func (r *OperatorRepositoryImpl) applyFilter(query *gorm.DB, filter models.OperatorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves operators based on filter criteria
func (r *OperatorRepositoryImpl) ByFilter(ctx context.Context, filter models.OperatorFilter, orderBy string, limit, offset int) ([]*models.Operator, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Operator{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var operators []*models.Operator
	if err := query.Find(&operators).Error; err != nil {
		return nil, err
	}

	return operators, nil
}

// Count returns the number of operators matching the filter
func (r *OperatorRepositoryImpl) Count(ctx context.Context, filter models.OperatorFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Operator{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any operator matching the filter exists
func (r *OperatorRepositoryImpl) Exists(ctx context.Context, filter models.OperatorFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
