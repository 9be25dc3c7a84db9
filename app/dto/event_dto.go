package dto

// SubEventDTO is one day-level occasion of an event
type SubEventDTO struct {
	Name     string `json:"name" validate:"required,max=255" example:"Sangeet"`
	Text     string `json:"text,omitempty" example:"An evening of music"`
	Venue    string `json:"venue,omitempty" example:"Grand Hall"`
	Date     string `json:"date,omitempty" example:"2024-12-01"`
	Media    string `json:"media,omitempty" example:"/uploads/sangeet.jpg"`
	Template string `json:"template,omitempty" example:"Will you join us for {subEvent} on {date}? Reply with the number of guests."`
}

// EventWindowDTO is a point in time given as date plus hour and minute, interpreted in UTC
type EventWindowDTO struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02" example:"2024-11-20"`
	Hour   int    `json:"hour" validate:"min=0,max=23" example:"9"`
	Minute int    `json:"minute" validate:"min=0,max=59" example:"30"`
}

// UpsertEventRequest creates or replaces an event definition
type UpsertEventRequest struct {
	Name  string         `json:"name" validate:"required,max=255" example:"Asha & Ravi Wedding"`
	Start EventWindowDTO `json:"start" validate:"required"`
	End   EventWindowDTO `json:"end" validate:"required"`

	SubEvents []SubEventDTO `json:"sub_events" validate:"omitempty,dive"`

	InvitationText           string `json:"invitation_text" validate:"required" example:"Dear {name}, you are invited. Reply YES to continue."`
	InvitationMedia          string `json:"invitation_media,omitempty"`
	AcceptanceKeyword        string `json:"acceptance_keyword" validate:"required,max=64" example:"yes"`
	AcceptanceAcknowledgment string `json:"acceptance_acknowledgment" validate:"required"`
	ThankYouMedia            string `json:"thank_you_media,omitempty"`
	RejectionKeyword         string `json:"rejection_keyword" validate:"required,max=64" example:"no"`
	RejectionAcknowledgment  string `json:"rejection_acknowledgment" validate:"required"`
	MoreThanOneInvitesText   string `json:"more_than_one_invites_text"`
	ClosedInvitationsText    string `json:"closed_invitations_text"`
	SubEventInvitation       string `json:"sub_event_invitation"`
	SummaryTemplate          string `json:"summary_template,omitempty"`

	StartingKeyword string `json:"starting_keyword" validate:"required,max=128" example:"hello wedding"`
	RewriteKeyword  string `json:"rewrite_keyword" validate:"max=64" example:"rewrite"`
	ReportKeyword   string `json:"report_keyword" validate:"max=64" example:"report"`
	StatsKeyword    string `json:"stats_keyword" validate:"max=64" example:"stats"`

	InitialCode    string `json:"initial_code" validate:"max=32" example:"rsvp"`
	InviteCode     string `json:"invite_code" validate:"max=32" example:"inv"`
	AcceptCode     string `json:"accept_code" validate:"max=32" example:"acc"`
	RejectCode     string `json:"reject_code" validate:"max=32" example:"rej"`
	NewContactCode string `json:"new_contact_code" validate:"max=32" example:"new"`
}

// EventDTO is the operator facing view of an event
type EventDTO struct {
	ID        uint          `json:"id"`
	UUID      string        `json:"uuid"`
	Name      string        `json:"name"`
	StartsAt  string        `json:"starts_at"`
	EndsAt    string        `json:"ends_at"`
	IsOpen    bool          `json:"is_open"`
	SubEvents []SubEventDTO `json:"sub_events"`

	InvitationText           string `json:"invitation_text"`
	InvitationMedia          string `json:"invitation_media,omitempty"`
	AcceptanceKeyword        string `json:"acceptance_keyword"`
	AcceptanceAcknowledgment string `json:"acceptance_acknowledgment"`
	ThankYouMedia            string `json:"thank_you_media,omitempty"`
	RejectionKeyword         string `json:"rejection_keyword"`
	RejectionAcknowledgment  string `json:"rejection_acknowledgment"`
	MoreThanOneInvitesText   string `json:"more_than_one_invites_text"`
	ClosedInvitationsText    string `json:"closed_invitations_text"`
	SubEventInvitation       string `json:"sub_event_invitation"`
	SummaryTemplate          string `json:"summary_template,omitempty"`

	StartingKeyword string `json:"starting_keyword"`
	RewriteKeyword  string `json:"rewrite_keyword"`
	ReportKeyword   string `json:"report_keyword"`
	StatsKeyword    string `json:"stats_keyword"`

	InitialCode    string `json:"initial_code"`
	InviteCode     string `json:"invite_code"`
	AcceptCode     string `json:"accept_code"`
	RejectCode     string `json:"reject_code"`
	NewContactCode string `json:"new_contact_code"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ListEventsRequest filters for listing events
type ListEventsRequest struct {
	Name     *string `json:"name,omitempty"`
	OpenOnly bool    `json:"open_only,omitempty"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// ListEventsResponse is one page of events
type ListEventsResponse struct {
	Items []EventDTO `json:"items"`
	Total int64      `json:"total"`
	Page  uint       `json:"page"`
}

// BindInstanceRequest attaches a provider instance to an event
type BindInstanceRequest struct {
	InstanceID string `json:"instance_id" validate:"required,max=128" example:"64F1A2B3C4D5E"`
	Label      string `json:"label,omitempty" validate:"max=255" example:"Bride family phone"`
}

// InstanceDTO is a provider instance binding
type InstanceDTO struct {
	ID         uint   `json:"id"`
	InstanceID string `json:"instance_id"`
	EventID    uint   `json:"event_id"`
	Label      string `json:"label,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}
