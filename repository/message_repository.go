package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/rsvp-relay/models"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// ByMessageID retrieves the first message carrying a provider message id
func (r *MessageRepositoryImpl) ByMessageID(ctx context.Context, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, nil
	}
	var row models.Message
	err := r.getDB(ctx).Where("message_id = ?", messageID).Order("id ASC").Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message %s: %w", messageID, err)
	}
	return &row, nil
}

// PreviousInbound returns the sender's latest message that was not sent by us
func (r *MessageRepositoryImpl) PreviousInbound(ctx context.Context, eventID uint, number, instanceID string) (*models.Message, error) {
	var row models.Message
	err := r.getDB(ctx).
		Where("event_id = ? AND number = ? AND instance_id = ? AND from_me = ?", eventID, number, instanceID, false).
		Order("created_at DESC, id DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find previous message: %w", err)
	}
	return &row, nil
}

// Update persists every column of the message
func (r *MessageRepositoryImpl) Update(ctx context.Context, message *models.Message) error {
	return r.update(ctx, message)
}

func (r *MessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.MessageFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	if filter.InstanceID != nil {
		query = query.Where("instance_id = ?", *filter.InstanceID)
	}
	if filter.FromMe != nil {
		query = query.Where("from_me = ?", *filter.FromMe)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.MessageID != nil {
		query = query.Where("message_id = ?", *filter.MessageID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves messages based on filter criteria
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Message{}), filter)
	query = paginate(query, orderBy, "created_at DESC, id DESC", limit, offset)

	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of messages matching the filter
func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.Message{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any message matching the filter exists
func (r *MessageRepositoryImpl) Exists(ctx context.Context, filter models.MessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
