package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubEvent is one day-level occasion of an event. Its position in
// Event.SubEvents is the same ordinal used by Contact.Days.
type SubEvent struct {
	Name     string `json:"name"`
	Text     string `json:"text,omitempty"`
	Venue    string `json:"venue,omitempty"`
	Date     string `json:"date,omitempty"`
	Media    string `json:"media,omitempty"`
	Template string `json:"template,omitempty"`
}

// SubEvents is the ordered sub-event list stored as jsonb
type SubEvents []SubEvent

// Value implements the driver.Valuer interface for SubEvents
func (s SubEvents) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for SubEvents
func (s *SubEvents) Scan(value any) error {
	if value == nil {
		*s = SubEvents{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SubEvents", value)
	}

	return json.Unmarshal(bytes, s)
}

// Event is an RSVP campaign with its templates, keywords and answering window
type Event struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_events_uuid" json:"uuid"`
	Name string    `gorm:"size:255;not null" json:"name"`

	StartsAt time.Time `gorm:"not null;index:idx_events_window" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null;index:idx_events_window" json:"ends_at"`

	SubEvents SubEvents `gorm:"type:jsonb;not null;default:'[]'" json:"sub_events"`

	InvitationText           string `gorm:"type:text" json:"invitation_text"`
	InvitationMedia          string `gorm:"size:512" json:"invitation_media,omitempty"`
	AcceptanceKeyword        string `gorm:"size:64" json:"acceptance_keyword"`
	AcceptanceAcknowledgment string `gorm:"type:text" json:"acceptance_acknowledgment"`
	ThankYouMedia            string `gorm:"size:512" json:"thank_you_media,omitempty"`
	RejectionKeyword         string `gorm:"size:64" json:"rejection_keyword"`
	RejectionAcknowledgment  string `gorm:"type:text" json:"rejection_acknowledgment"`
	MoreThanOneInvitesText   string `gorm:"type:text" json:"more_than_one_invites_text"`
	ClosedInvitationsText    string `gorm:"type:text" json:"closed_invitations_text"`
	SubEventInvitation       string `gorm:"type:text" json:"sub_event_invitation"`
	SummaryTemplate          string `gorm:"type:text" json:"summary_template,omitempty"`

	StartingKeyword string `gorm:"size:128" json:"starting_keyword"`
	RewriteKeyword  string `gorm:"size:64" json:"rewrite_keyword"`
	ReportKeyword   string `gorm:"size:64" json:"report_keyword"`
	StatsKeyword    string `gorm:"size:64" json:"stats_keyword"`

	InitialCode    string `gorm:"size:32" json:"initial_code"`
	InviteCode     string `gorm:"size:32" json:"invite_code"`
	AcceptCode     string `gorm:"size:32" json:"accept_code"`
	RejectCode     string `gorm:"size:32" json:"reject_code"`
	NewContactCode string `gorm:"size:32" json:"new_contact_code"`

	CreatedBy *uint     `gorm:"index:idx_events_created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_events_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}

// BeforeCreate is called before creating a new record
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsOpen reports whether now falls strictly inside the answering window
func (e *Event) IsOpen(now time.Time) bool {
	return now.After(e.StartsAt) && now.Before(e.EndsAt)
}

// SubEventAt returns the sub-event at index i or nil when out of range
func (e *Event) SubEventAt(i int) *SubEvent {
	if i < 0 || i >= len(e.SubEvents) {
		return nil
	}
	return &e.SubEvents[i]
}

// NumDays is the number of sub-events, falling back to one implicit day for
// events configured without sub-events.
func (e *Event) NumDays() int {
	if len(e.SubEvents) == 0 {
		return 1
	}
	return len(e.SubEvents)
}

// SubEventTemplate picks the template for the sub-event at index i: its own
// template when set, otherwise the event wide sub-event invitation.
func (e *Event) SubEventTemplate(i int) string {
	if se := e.SubEventAt(i); se != nil && strings.TrimSpace(se.Template) != "" {
		return se.Template
	}
	return e.SubEventInvitation
}

// SubEventMedia returns the media attached to the sub-event at index i
func (e *Event) SubEventMedia(i int) string {
	if se := e.SubEventAt(i); se != nil {
		return se.Media
	}
	return ""
}

// ProtocolCode builds "{initialCode}/{code}" in lower case
func (e *Event) ProtocolCode(code string) string {
	return strings.ToLower(e.InitialCode + "/" + code)
}

// EventFilter represents filter criteria for event queries
type EventFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CreatedBy     *uint
	Name          *string
	OpenAt        *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
