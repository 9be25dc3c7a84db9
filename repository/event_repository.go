package repository

import (
	"context"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRepositoryImpl implements EventRepository interface
type EventRepositoryImpl struct {
	*BaseRepository[models.Event, models.EventFilter]
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &EventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Event, models.EventFilter](db),
	}
}

// ByUUID retrieves an event by its public id
func (r *EventRepositoryImpl) ByUUID(ctx context.Context, id string) (*models.Event, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}

	events, err := r.ByFilter(ctx, models.EventFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// Update persists every column of the event
func (r *EventRepositoryImpl) Update(ctx context.Context, event *models.Event) error {
	return r.update(ctx, event)
}

func (r *EventRepositoryImpl) applyFilter(query *gorm.DB, filter models.EventFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Name != nil {
		query = query.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.OpenAt != nil {
		query = query.Where("starts_at < ? AND ends_at > ?", *filter.OpenAt, *filter.OpenAt)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves events based on filter criteria
func (r *EventRepositoryImpl) ByFilter(ctx context.Context, filter models.EventFilter, orderBy string, limit, offset int) ([]*models.Event, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Event{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var events []*models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of events matching the filter
func (r *EventRepositoryImpl) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Event{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any event matching the filter exists
func (r *EventRepositoryImpl) Exists(ctx context.Context, filter models.EventFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
