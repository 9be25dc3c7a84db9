package models

import (
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator is a person managing events through the HTTP API. Operators
// authenticate with a username and password hash.
type Operator struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_operators_uuid" json:"uuid"`
	Username     string     `gorm:"size:255;not null;uniqueIndex:uk_operators_username" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	IsActive     *bool      `gorm:"default:true;index:idx_operators_is_active" json:"is_active"`
	CreatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func (Operator) TableName() string {
	return "operators"
}

// BeforeCreate is called before creating a new record
func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}
	if o.IsActive == nil {
		o.IsActive = utils.ToPtr(true)
	}
	return nil
}

// OperatorFilter represents filter criteria for operator queries
type OperatorFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Username *string
	IsActive *bool
}

// AllModels lists every persisted model, in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{
		&Operator{},
		&Event{},
		&Instance{},
		&Contact{},
		&ChatLog{},
		&Message{},
		&BulkJob{},
	}
}
