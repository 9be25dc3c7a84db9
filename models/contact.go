package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/utils"
	"gorm.io/gorm"
)

// DayStatus is the per sub-event answer of a contact
type DayStatus string

const (
	DayStatusNone     DayStatus = ""
	DayStatusPending  DayStatus = "Pending"
	DayStatusAccepted DayStatus = "Accepted"
	DayStatusRejected DayStatus = "Rejected"
)

func (s DayStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DayStatus) Valid() bool {
	switch s {
	case DayStatusNone, DayStatusPending, DayStatusAccepted, DayStatusRejected:
		return true
	default:
		return false
	}
}

// OverallStatus is the aggregate RSVP state of a contact
type OverallStatus string

const (
	OverallStatusPending  OverallStatus = "Pending"
	OverallStatusAccepted OverallStatus = "Accepted"
	OverallStatusRejected OverallStatus = "Rejected"
)

func (s OverallStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s OverallStatus) Valid() bool {
	switch s {
	case OverallStatusPending, OverallStatusAccepted, OverallStatusRejected:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for OverallStatus
func (s *OverallStatus) Scan(value any) error {
	if value == nil {
		*s = OverallStatusPending
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = OverallStatus(v)
	case []byte:
		*s = OverallStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into OverallStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for OverallStatus
func (s OverallStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid OverallStatus: %s", s)
	}
	return string(s), nil
}

// InviteMessageStatus tracks delivery of the last invite. The spelling of the
// values is what reports and the dashboard have always shown.
type InviteMessageStatus string

const (
	InviteMessagePending  InviteMessageStatus = "Pending"
	InviteMessageReceived InviteMessageStatus = "Recieved"
	InviteMessageRead     InviteMessageStatus = "Readed"
)

func (s InviteMessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s InviteMessageStatus) Valid() bool {
	switch s {
	case InviteMessagePending, InviteMessageReceived, InviteMessageRead:
		return true
	default:
		return false
	}
}

// Rank orders statuses so delivery updates only ever move forward
func (s InviteMessageStatus) Rank() int {
	switch s {
	case InviteMessageReceived:
		return 1
	case InviteMessageRead:
		return 2
	default:
		return 0
	}
}

// Scan implements the sql.Scanner interface for InviteMessageStatus
func (s *InviteMessageStatus) Scan(value any) error {
	if value == nil {
		*s = InviteMessagePending
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = InviteMessageStatus(v)
	case []byte:
		*s = InviteMessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into InviteMessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for InviteMessageStatus
func (s InviteMessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid InviteMessageStatus: %s", s)
	}
	return string(s), nil
}

// AllInvites is the allocation value meaning "any number of seats"
const AllInvites = "all"

// ContactDay is the contact's allocation and answer for one sub-event
type ContactDay struct {
	InvitesAllocated string    `json:"invites_allocated"`
	InvitesAccepted  string    `json:"invites_accepted"`
	Status           DayStatus `json:"status"`
}

// Eligible reports whether the day was offered at all
func (d ContactDay) Eligible() bool {
	a := strings.TrimSpace(d.InvitesAllocated)
	return a != "" && a != "0"
}

// IsSingleSeat reports whether exactly one seat was offered
func (d ContactDay) IsSingleSeat() bool {
	return strings.TrimSpace(d.InvitesAllocated) == "1"
}

// IsPending reports whether the day still awaits an answer
func (d ContactDay) IsPending() bool {
	return d.Eligible() && d.Status == DayStatusPending
}

// AcceptsQuantity validates a requested seat count ("all" or digits) against
// the allocation.
func (d ContactDay) AcceptsQuantity(q string) bool {
	alloc := strings.ToLower(strings.TrimSpace(d.InvitesAllocated))
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || !d.Eligible() {
		return false
	}
	if q == alloc || alloc == AllInvites {
		return true
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		return false
	}
	max, err := strconv.Atoi(alloc)
	if err != nil {
		return false
	}
	return n <= max
}

// AcceptedCount parses InvitesAccepted, treating anything non numeric as 0
func (d ContactDay) AcceptedCount() int {
	n, err := strconv.Atoi(strings.TrimSpace(d.InvitesAccepted))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ContactDays is the per sub-event list stored as jsonb, index aligned with
// Event.SubEvents.
type ContactDays []ContactDay

// Value implements the driver.Valuer interface for ContactDays
func (d ContactDays) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for ContactDays
func (d *ContactDays) Scan(value any) error {
	if value == nil {
		*d = ContactDays{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ContactDays", value)
	}

	return json.Unmarshal(bytes, d)
}

// StringMap is a free-form string map stored as jsonb
type StringMap map[string]string

// Value implements the driver.Valuer interface for StringMap
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for StringMap
func (m *StringMap) Scan(value any) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// Contact is one invitee of one event
type Contact struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    uint      `gorm:"not null;uniqueIndex:uk_contacts_event_number;index:idx_contacts_event_id" json:"event_id"`
	InstanceID string    `gorm:"size:128;index:idx_contacts_instance_id" json:"instance_id,omitempty"`
	Name       string    `gorm:"size:255;not null;index:idx_contacts_name" json:"name"`
	Number     string    `gorm:"size:32;not null;uniqueIndex:uk_contacts_event_number" json:"number"`
	Params     StringMap `gorm:"type:jsonb;not null;default:'{}'" json:"params"`

	Days                ContactDays         `gorm:"type:jsonb;not null;default:'[]'" json:"days"`
	OverallStatus       OverallStatus       `gorm:"size:16;not null;default:'Pending';index:idx_contacts_overall_status" json:"overall_status"`
	HasCompletedForm    bool                `gorm:"not null;default:false" json:"has_completed_form"`
	InviteMessageStatus InviteMessageStatus `gorm:"size:16;not null;default:'Pending';index:idx_contacts_invite_message_status" json:"invite_message_status"`
	IsAdmin             bool                `gorm:"not null;default:false" json:"is_admin"`

	LastResponse   string     `gorm:"type:text" json:"last_response,omitempty"`
	LastResponseAt *time.Time `json:"last_response_at,omitempty"`

	CreatedBy *uint     `json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_contacts_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_contacts_updated_at" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// BeforeCreate is called before creating a new record
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.OverallStatus == "" {
		c.OverallStatus = OverallStatusPending
	}
	if c.InviteMessageStatus == "" {
		c.InviteMessageStatus = InviteMessagePending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// NormalizeDays pads Days to n entries so every sub-event index has a day
// and marks offered days without an answer as Pending. Days past n are kept
// but ignored. Days allocated "0" or nothing stay unoffered.
func (c *Contact) NormalizeDays(n int) {
	for len(c.Days) < n {
		c.Days = append(c.Days, ContactDay{InvitesAccepted: "0"})
	}
	for i := 0; i < n; i++ {
		if !c.Days[i].Eligible() {
			continue
		}
		if c.Days[i].Status == DayStatusNone {
			c.Days[i].Status = DayStatusPending
		}
		if c.Days[i].InvitesAccepted == "" {
			c.Days[i].InvitesAccepted = "0"
		}
	}
}

// NextPendingDay returns the first pending eligible day with index >= from
// and < n, or -1.
func (c *Contact) NextPendingDay(from, n int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < n && i < len(c.Days); i++ {
		if c.Days[i].IsPending() {
			return i
		}
	}
	return -1
}

// DeriveOverallStatus recomputes the aggregate from the first n days. A
// contact offered no day stays Pending until the form is completed.
func (c *Contact) DeriveOverallStatus(n int) OverallStatus {
	accepted, offered := false, false
	for i := 0; i < n && i < len(c.Days); i++ {
		d := c.Days[i]
		if d.IsPending() {
			return OverallStatusPending
		}
		if d.Eligible() {
			offered = true
		}
		if d.Status == DayStatusAccepted {
			accepted = true
		}
	}
	if accepted {
		return OverallStatusAccepted
	}
	if !offered && !c.HasCompletedForm {
		return OverallStatusPending
	}
	return OverallStatusRejected
}

// RefreshOverallStatus stores DeriveOverallStatus(n) on the contact
func (c *Contact) RefreshOverallStatus(n int) {
	c.OverallStatus = c.DeriveOverallStatus(n)
}

// ResetDays puts every eligible day back to Pending with nothing accepted
func (c *Contact) ResetDays(n int) {
	for i := 0; i < n && i < len(c.Days); i++ {
		if c.Days[i].Eligible() {
			c.Days[i].Status = DayStatusPending
			c.Days[i].InvitesAccepted = "0"
		}
	}
}

// AcceptAllDays accepts every eligible day with its full allocation. "all"
// allocations are recorded as allCount seats.
func (c *Contact) AcceptAllDays(n int, allCount string) {
	for i := 0; i < n && i < len(c.Days); i++ {
		if !c.Days[i].Eligible() {
			continue
		}
		c.Days[i].Status = DayStatusAccepted
		if strings.EqualFold(strings.TrimSpace(c.Days[i].InvitesAllocated), AllInvites) {
			c.Days[i].InvitesAccepted = allCount
		} else {
			c.Days[i].InvitesAccepted = strings.TrimSpace(c.Days[i].InvitesAllocated)
		}
	}
}

// RejectAllDays rejects every eligible day
func (c *Contact) RejectAllDays(n int) {
	for i := 0; i < n && i < len(c.Days); i++ {
		if c.Days[i].Eligible() {
			c.Days[i].Status = DayStatusRejected
			c.Days[i].InvitesAccepted = "0"
		}
	}
}

// TotalAccepted sums accepted seats over the first n days
func (c *Contact) TotalAccepted(n int) int {
	total := 0
	for i := 0; i < n && i < len(c.Days); i++ {
		if c.Days[i].Status == DayStatusAccepted {
			total += c.Days[i].AcceptedCount()
		}
	}
	return total
}

// ContactFilter represents filter criteria for contact queries
type ContactFilter struct {
	ID                  *uint
	EventID             *uint
	Number              *string
	Name                *string
	Search              *string
	OverallStatus       *OverallStatus
	InviteMessageStatus *InviteMessageStatus
	IsAdmin             *bool
	DayIndex            *int
	DayStatus           *DayStatus
	UpdatedAfter        *time.Time
	UpdatedBefore       *time.Time
}
