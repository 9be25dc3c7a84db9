package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
)

// MessageKind says why a message exists
type MessageKind string

const (
	MessageKindInbound     MessageKind = "inbound"
	MessageKindEcho        MessageKind = "echo"
	MessageKindInvitation  MessageKind = "invitation"
	MessageKindSubEvent    MessageKind = "sub_event"
	MessageKindAcknowledge MessageKind = "acknowledgment"
	MessageKindSummary     MessageKind = "summary"
	MessageKindReply       MessageKind = "reply"
	MessageKindBulk        MessageKind = "bulk"
	MessageKindAdmin       MessageKind = "admin"
)

func (k MessageKind) String() string {
	return string(k)
}

// Valid checks if the kind is valid
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindInbound, MessageKindEcho, MessageKindInvitation, MessageKindSubEvent,
		MessageKindAcknowledge, MessageKindSummary, MessageKindReply, MessageKindBulk, MessageKindAdmin:
		return true
	default:
		return false
	}
}

// MessageStatusEntry is one delivery status report
type MessageStatusEntry struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// MessageStatuses is the ordered status history stored as jsonb
type MessageStatuses []MessageStatusEntry

// Value implements the driver.Valuer interface for MessageStatuses
func (s MessageStatuses) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for MessageStatuses
func (s *MessageStatuses) Scan(value any) error {
	if value == nil {
		*s = MessageStatuses{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MessageStatuses", value)
	}

	return json.Unmarshal(bytes, s)
}

// Has reports whether status was already recorded
func (s MessageStatuses) Has(status string) bool {
	for _, e := range s {
		if e.Status == status {
			return true
		}
	}
	return false
}

// Message is an append-only record of every inbound and outbound text
type Message struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	EventID    *uint           `gorm:"index:idx_messages_event_number" json:"event_id,omitempty"`
	Number     string          `gorm:"size:32;not null;index:idx_messages_event_number" json:"number"`
	InstanceID string          `gorm:"size:128;index:idx_messages_instance_id" json:"instance_id"`
	FromMe     bool            `gorm:"not null;default:false" json:"from_me"`
	Kind       MessageKind     `gorm:"size:32;not null;index:idx_messages_kind" json:"kind"`
	Text       string          `gorm:"type:text" json:"text"`
	MediaURL   string          `gorm:"size:1024" json:"media_url,omitempty"`
	MessageID  string          `gorm:"size:128;index:idx_messages_message_id" json:"message_id,omitempty"`
	Statuses   MessageStatuses `gorm:"type:jsonb;not null;default:'[]'" json:"statuses"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	CreatedAt  time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate is called before creating a new record
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	ID            *uint
	EventID       *uint
	Number        *string
	InstanceID    *string
	FromMe        *bool
	Kind          *MessageKind
	MessageID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
