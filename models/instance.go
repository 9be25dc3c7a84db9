package models

import (
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
)

// Instance binds a provider instance (one connected chat number) to an event.
// An instance may serve several events.
type Instance struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	InstanceID string    `gorm:"size:128;not null;uniqueIndex:uk_instances_instance_event;index:idx_instances_instance_id" json:"instance_id"`
	EventID    uint      `gorm:"not null;uniqueIndex:uk_instances_instance_event" json:"event_id"`
	Label      string    `gorm:"size:255" json:"label,omitempty"`
	IsActive   *bool     `gorm:"default:true;index:idx_instances_is_active" json:"is_active"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Instance) TableName() string {
	return "instances"
}

// BeforeCreate is called before creating a new record
func (i *Instance) BeforeCreate(tx *gorm.DB) error {
	if i.IsActive == nil {
		i.IsActive = utils.ToPtr(true)
	}
	return nil
}

// InstanceFilter represents filter criteria for instance queries
type InstanceFilter struct {
	ID         *uint
	InstanceID *string
	EventID    *uint
	IsActive   *bool
}
