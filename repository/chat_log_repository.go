package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatLogRepositoryImpl implements ChatLogRepository interface
type ChatLogRepositoryImpl struct {
	*BaseRepository[models.ChatLog, models.ChatLogFilter]
}

// NewChatLogRepository creates a new chat log repository
func NewChatLogRepository(db *gorm.DB) ChatLogRepository {
	return &ChatLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ChatLog, models.ChatLogFilter](db),
	}
}

// Current returns the most recently updated cursor for (number, instance, event)
func (r *ChatLogRepositoryImpl) Current(ctx context.Context, number, instanceID string, eventID uint) (*models.ChatLog, error) {
	var row models.ChatLog
	err := r.getDB(ctx).
		Where("number = ? AND instance_id = ? AND event_id = ?", number, instanceID, eventID).
		Order("updated_at DESC, id DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load chat log: %w", err)
	}
	return &row, nil
}

// LatestByEvent returns the most recently updated cursor of each number in an event
func (r *ChatLogRepositoryImpl) LatestByEvent(ctx context.Context, eventID uint) (map[string]*models.ChatLog, error) {
	var rows []*models.ChatLog
	err := r.getDB(ctx).
		Raw(`SELECT DISTINCT ON (number) * FROM chat_logs WHERE event_id = ? ORDER BY number, updated_at DESC, id DESC`, eventID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat logs for event %d: %w", eventID, err)
	}

	out := make(map[string]*models.ChatLog, len(rows))
	for _, row := range rows {
		out[row.Number] = row
	}
	return out, nil
}

// Upsert inserts the cursor or overwrites the existing one for the same triple
func (r *ChatLogRepositoryImpl) Upsert(ctx context.Context, log *models.ChatLog) error {
	log.UpdatedAt = utils.UTCNow()
	err := r.getDB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "number"}, {Name: "instance_id"}, {Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"message_track", "invite_index", "is_completed", "invite_status",
				"final_response", "extra", "updated_at",
			}),
		}).
		Create(log).Error
	if err != nil {
		return fmt.Errorf("failed to upsert chat log: %w", err)
	}
	return nil
}

func (r *ChatLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.ChatLogFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	if filter.InstanceID != nil {
		query = query.Where("instance_id = ?", *filter.InstanceID)
	}
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.MessageTrack != nil {
		query = query.Where("message_track = ?", *filter.MessageTrack)
	}
	if filter.IsCompleted != nil {
		query = query.Where("is_completed = ?", *filter.IsCompleted)
	}
	if filter.UpdatedAfter != nil {
		query = query.Where("updated_at >= ?", *filter.UpdatedAfter)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}
	return query
}

// ByFilter retrieves chat logs based on filter criteria
func (r *ChatLogRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatLogFilter, orderBy string, limit, offset int) ([]*models.ChatLog, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.ChatLog{}), filter)
	query = paginate(query, orderBy, "updated_at DESC", limit, offset)

	var rows []*models.ChatLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of chat logs matching the filter
func (r *ChatLogRepositoryImpl) Count(ctx context.Context, filter models.ChatLogFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.ChatLog{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any chat log matching the filter exists
func (r *ChatLogRepositoryImpl) Exists(ctx context.Context, filter models.ChatLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
