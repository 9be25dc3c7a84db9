package repository

import (
	"context"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BulkJobRepositoryImpl implements BulkJobRepository
type BulkJobRepositoryImpl struct {
	*BaseRepository[models.BulkJob, models.BulkJobFilter]
}

func NewBulkJobRepository(db *gorm.DB) BulkJobRepository {
	return &BulkJobRepositoryImpl{BaseRepository: NewBaseRepository[models.BulkJob, models.BulkJobFilter](db)}
}

func (r *BulkJobRepositoryImpl) ByUUID(ctx context.Context, id string) (*models.BulkJob, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		// Malformed ids cannot match a job
		return nil, nil
	}
	rows, err := r.ByFilter(ctx, models.BulkJobFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListResumable returns pending and running jobs, oldest first
func (r *BulkJobRepositoryImpl) ListResumable(ctx context.Context, limit int) ([]*models.BulkJob, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := models.BulkJobFilter{Statuses: []models.BulkJobStatus{models.BulkJobStatusPending, models.BulkJobStatusRunning}}
	return r.ByFilter(ctx, filter, "created_at ASC, id ASC", limit, 0)
}

func (r *BulkJobRepositoryImpl) Update(ctx context.Context, job *models.BulkJob) error {
	return r.update(ctx, job)
}

func (r *BulkJobRepositoryImpl) applyFilter(query *gorm.DB, filter models.BulkJobFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}
	return query
}

func (r *BulkJobRepositoryImpl) ByFilter(ctx context.Context, filter models.BulkJobFilter, orderBy string, limit, offset int) ([]*models.BulkJob, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.BulkJob{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.BulkJob
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BulkJobRepositoryImpl) Count(ctx context.Context, filter models.BulkJobFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.BulkJob{}), filter).Count(&count).Error
	return count, err
}

func (r *BulkJobRepositoryImpl) Exists(ctx context.Context, filter models.BulkJobFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
