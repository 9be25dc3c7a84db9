package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// BulkJobStatus is the lifecycle of a bulk send
type BulkJobStatus string

const (
	BulkJobStatusPending BulkJobStatus = "pending"
	BulkJobStatusRunning BulkJobStatus = "running"
	BulkJobStatusDone    BulkJobStatus = "done"
	BulkJobStatusFailed  BulkJobStatus = "failed"
)

func (s BulkJobStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s BulkJobStatus) Valid() bool {
	switch s {
	case BulkJobStatusPending, BulkJobStatusRunning, BulkJobStatusDone, BulkJobStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for BulkJobStatus
func (s *BulkJobStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = BulkJobStatus(v)
	case []byte:
		*s = BulkJobStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BulkJobStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for BulkJobStatus
func (s BulkJobStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid BulkJobStatus: %s", s)
	}
	return string(s), nil
}

// BulkMessageType decides how each recipient's RSVP state changes after a
// bulk message goes out.
type BulkMessageType string

const (
	BulkMessageTypeInvite BulkMessageType = "invite"
	BulkMessageTypeAccept BulkMessageType = "accept"
	BulkMessageTypeReject BulkMessageType = "reject"
	BulkMessageTypePlain  BulkMessageType = "plain"
)

// Valid checks if the message type is valid
func (t BulkMessageType) Valid() bool {
	switch t {
	case BulkMessageTypeInvite, BulkMessageTypeAccept, BulkMessageTypeReject, BulkMessageTypePlain:
		return true
	default:
		return false
	}
}

// BulkJob is a persisted rate-limited bulk send. Targets are processed in
// order; NextIndex is the first target not yet delivered.
type BulkJob struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_bulk_jobs_uuid" json:"uuid"`
	EventID      uint            `gorm:"not null;index:idx_bulk_jobs_event_id" json:"event_id"`
	InstanceID   string          `gorm:"size:128;not null" json:"instance_id"`
	Targets      pq.StringArray  `gorm:"type:text[];not null" json:"targets"`
	Template     string          `gorm:"type:text;not null" json:"template"`
	Media        string          `gorm:"size:512" json:"media,omitempty"`
	MessageType  BulkMessageType `gorm:"size:16;not null;default:'plain'" json:"message_type"`
	MessageTrack MessageTrack    `gorm:"not null;default:1" json:"message_track"`
	Status       BulkJobStatus   `gorm:"size:16;not null;default:'pending';index:idx_bulk_jobs_status" json:"status"`
	NextIndex    int             `gorm:"not null;default:0" json:"next_index"`
	FailedIndex  *int            `json:"failed_index,omitempty"`
	Error        *string         `gorm:"type:text" json:"error,omitempty"`
	DelayMillis  int64           `gorm:"not null" json:"delay_millis"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	CreatedBy    *uint           `json:"created_by,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (BulkJob) TableName() string { return "bulk_jobs" }

// BeforeCreate is called before creating a new record
func (j *BulkJob) BeforeCreate(tx *gorm.DB) error {
	if j.UUID == uuid.Nil {
		j.UUID = uuid.New()
	}
	if j.Status == "" {
		j.Status = BulkJobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Delay is the pause between two consecutive recipients
func (j *BulkJob) Delay() time.Duration {
	return time.Duration(j.DelayMillis) * time.Millisecond
}

// Resumable reports whether a runner should pick the job up
func (j *BulkJob) Resumable() bool {
	return j.Status == BulkJobStatusPending || j.Status == BulkJobStatusRunning
}

// BulkJobFilter represents filter criteria for bulk job queries
type BulkJobFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	EventID  *uint
	Statuses []BulkJobStatus
}
