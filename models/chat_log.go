package models

import (
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
)

// MessageTrack is the coarse stage of a conversation
type MessageTrack int

const (
	// TrackInvited means the invitation went out and a top-level answer is awaited
	TrackInvited MessageTrack = 1
	// TrackDayLoop means the contact is answering sub-events one by one
	TrackDayLoop MessageTrack = 2
	// TrackCompleted is terminal until a rewrite
	TrackCompleted MessageTrack = 3
)

// ChatLog is the persisted cursor of one contact's conversation within one
// event on one provider instance.
type ChatLog struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Number        string       `gorm:"size:32;not null;uniqueIndex:uk_chat_logs_cursor" json:"number"`
	InstanceID    string       `gorm:"size:128;not null;uniqueIndex:uk_chat_logs_cursor" json:"instance_id"`
	EventID       uint         `gorm:"not null;uniqueIndex:uk_chat_logs_cursor;index:idx_chat_logs_event_id" json:"event_id"`
	MessageTrack  MessageTrack `gorm:"not null;default:1" json:"message_track"`
	InviteIndex   int          `gorm:"not null;default:0" json:"invite_index"`
	IsCompleted   bool         `gorm:"not null;default:false" json:"is_completed"`
	InviteStatus  string       `gorm:"size:16" json:"invite_status"`
	FinalResponse string       `gorm:"type:text" json:"final_response"`
	Extra         StringMap    `gorm:"type:jsonb;not null;default:'{}'" json:"extra"`
	CreatedAt     time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_chat_logs_updated_at" json:"updated_at"`
}

func (ChatLog) TableName() string {
	return "chat_logs"
}

// BeforeSave keeps UpdatedAt as the recency tie-break
func (l *ChatLog) BeforeSave(tx *gorm.DB) error {
	l.UpdatedAt = utils.UTCNow()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = l.UpdatedAt
	}
	return nil
}

// Finish moves the cursor to the terminal state past the last day
func (l *ChatLog) Finish(numDays int) {
	l.InviteIndex = numDays
	l.IsCompleted = true
	l.MessageTrack = TrackCompleted
}

// ChatLogFilter represents filter criteria for chat log queries
type ChatLogFilter struct {
	ID            *uint
	Number        *string
	InstanceID    *string
	EventID       *uint
	MessageTrack  *MessageTrack
	IsCompleted   *bool
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}
