package dto

// ContactDayDTO is a contact's allocation and answer for one sub-event
type ContactDayDTO struct {
	InvitesAllocated string `json:"invites_allocated" example:"2"`
	InvitesAccepted  string `json:"invites_accepted" example:"0"`
	Status           string `json:"status" example:"Pending"`
}

// CreateContactRequest registers one invitee. Days is index aligned with the
// event's sub-events; Invites, when set, applies to every day instead.
type CreateContactRequest struct {
	Name       string            `json:"name" validate:"required,max=255" example:"Asha"`
	Number     string            `json:"number" validate:"required,max=32" example:"919999999999"`
	ISDCode    string            `json:"isd_code,omitempty" validate:"omitempty,numeric,max=4" example:"91"`
	InstanceID string            `json:"instance_id,omitempty" validate:"max=128"`
	Invites    string            `json:"invites,omitempty" validate:"max=8" example:"all"`
	Days       []string          `json:"days,omitempty" validate:"omitempty,dive,max=8"`
	Params     map[string]string `json:"params,omitempty"`
	IsAdmin    bool              `json:"is_admin,omitempty"`
}

// ContactDTO is the operator facing view of a contact
type ContactDTO struct {
	ID                  uint              `json:"id"`
	EventID             uint              `json:"event_id"`
	InstanceID          string            `json:"instance_id,omitempty"`
	Name                string            `json:"name"`
	Number              string            `json:"number"`
	Params              map[string]string `json:"params,omitempty"`
	Days                []ContactDayDTO   `json:"days"`
	OverallStatus       string            `json:"overall_status"`
	HasCompletedForm    bool              `json:"has_completed_form"`
	InviteMessageStatus string            `json:"invite_message_status"`
	IsAdmin             bool              `json:"is_admin"`
	LastResponse        string            `json:"last_response,omitempty"`
	LastResponseAt      *string           `json:"last_response_at,omitempty"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
}

// ListContactsRequest filters contacts of an event
type ListContactsRequest struct {
	EventID             uint    `json:"-"`
	Search              *string `json:"search,omitempty"`
	OverallStatus       *string `json:"overall_status,omitempty" validate:"omitempty,oneof=Pending Accepted Rejected"`
	InviteMessageStatus *string `json:"invite_message_status,omitempty" validate:"omitempty,oneof=Pending Recieved Readed"`
	DayIndex            *int    `json:"day_index,omitempty" validate:"omitempty,min=0"`
	DayStatus           *string `json:"day_status,omitempty" validate:"omitempty,oneof=Pending Accepted Rejected"`
	Page                uint    `json:"page,omitempty"`
	PageSize            uint    `json:"page_size,omitempty"`
}

// ListContactsResponse is one page of contacts
type ListContactsResponse struct {
	Items []ContactDTO `json:"items"`
	Total int64        `json:"total"`
	Page  uint         `json:"page"`
}

// ImportContactsResponse summarises a spreadsheet import
type ImportContactsResponse struct {
	Created  int                 `json:"created"`
	Skipped  []ImportSkippedItem `json:"skipped"`
	Received int                 `json:"received"`
}

// ImportSkippedItem names a sheet row that was not imported
type ImportSkippedItem struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// MessageDTO is one logged chat message
type MessageDTO struct {
	ID         uint               `json:"id"`
	Number     string             `json:"number"`
	InstanceID string             `json:"instance_id"`
	FromMe     bool               `json:"from_me"`
	Kind       string             `json:"kind"`
	Text       string             `json:"text"`
	MediaURL   string             `json:"media_url,omitempty"`
	MessageID  string             `json:"message_id,omitempty"`
	Statuses   []MessageStatusDTO `json:"statuses"`
	CreatedAt  string             `json:"created_at"`
}

// MessageStatusDTO is one delivery status entry
type MessageStatusDTO struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ListMessagesResponse is one page of a contact's message history
type ListMessagesResponse struct {
	Items []MessageDTO `json:"items"`
	Total int64        `json:"total"`
	Page  uint         `json:"page"`
}
