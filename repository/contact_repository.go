package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/rsvp-relay/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository interface
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db),
	}
}

// ByEventAndNumber retrieves the contact registered for an event under a number
func (r *ContactRepositoryImpl) ByEventAndNumber(ctx context.Context, eventID uint, number string) (*models.Contact, error) {
	var contact models.Contact
	err := r.getDB(ctx).
		Where("event_id = ? AND number = ?", eventID, number).
		Take(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	return &contact, nil
}

// ByEventAndNameOrNumber finds a contact of the event that shares the name or the number
func (r *ContactRepositoryImpl) ByEventAndNameOrNumber(ctx context.Context, eventID uint, name, number string) (*models.Contact, error) {
	var contact models.Contact
	err := r.getDB(ctx).
		Where("event_id = ?", eventID).
		Where(r.getDB(ctx).Where("name = ?", name).Or("number = ?", number)).
		Order("id ASC").
		Take(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contact by name or number: %w", err)
	}
	return &contact, nil
}

// Update persists every column of the contact
func (r *ContactRepositoryImpl) Update(ctx context.Context, contact *models.Contact) error {
	return r.update(ctx, contact)
}

// applyFilter applies filter criteria to a GORM query. Day filters address
// the jsonb days array by position.
func (r *ContactRepositoryImpl) applyFilter(query *gorm.DB, filter models.ContactFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := "%" + *filter.Search + "%"
		query = query.Where("(name ILIKE ? OR number LIKE ?)", like, like)
	}
	if filter.OverallStatus != nil {
		query = query.Where("overall_status = ?", *filter.OverallStatus)
	}
	if filter.InviteMessageStatus != nil {
		query = query.Where("invite_message_status = ?", *filter.InviteMessageStatus)
	}
	if filter.IsAdmin != nil {
		query = query.Where("is_admin = ?", *filter.IsAdmin)
	}
	if filter.DayIndex != nil && *filter.DayIndex >= 0 {
		idx := *filter.DayIndex
		query = query.Where(fmt.Sprintf("COALESCE(days -> %d ->> 'invites_allocated', '') NOT IN ('', '0')", idx))
		if filter.DayStatus != nil {
			query = query.Where(fmt.Sprintf("days -> %d ->> 'status' = ?", idx), string(*filter.DayStatus))
		}
	}
	if filter.UpdatedAfter != nil {
		query = query.Where("updated_at >= ?", *filter.UpdatedAfter)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}
	return query
}

// ByFilter retrieves contacts based on filter criteria
func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Contact{}), filter)
	query = paginate(query, orderBy, "id ASC", limit, offset)

	var contacts []*models.Contact
	if err := query.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

// Count returns the number of contacts matching the filter
func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Contact{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any contact matching the filter exists
func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
