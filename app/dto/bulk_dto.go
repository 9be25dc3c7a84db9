package dto

// CreateBulkJobRequest starts a rate limited bulk send. When Numbers is empty
// the recipients are the event's contacts matching the optional filters.
type CreateBulkJobRequest struct {
	InstanceID  string   `json:"instance_id" validate:"required,max=128" example:"64F1A2B3C4D5E"`
	Numbers     []string `json:"numbers,omitempty" validate:"omitempty,dive,required,max=32"`
	Message     string   `json:"message" example:"Dear {name}, a reminder about our celebration."`
	Media       string   `json:"media,omitempty" example:"/uploads/card.jpg"`
	MessageType string   `json:"message_type" validate:"required,oneof=invite accept reject plain" example:"invite"`

	MessageTrack int `json:"message_track,omitempty" validate:"omitempty,min=1,max=3" example:"1"`

	DayIndex            *int    `json:"day_index,omitempty" validate:"omitempty,min=0"`
	DayStatus           *string `json:"day_status,omitempty" validate:"omitempty,oneof=Pending Accepted Rejected"`
	InviteMessageStatus *string `json:"invite_message_status,omitempty" validate:"omitempty,oneof=Pending Recieved Readed"`
	OverallStatus       *string `json:"overall_status,omitempty" validate:"omitempty,oneof=Pending Accepted Rejected"`

	// DelayMillis can only raise the configured inter-message delay
	DelayMillis *int64 `json:"delay_millis,omitempty" validate:"omitempty,min=0,max=600000" example:"7500"`
}

// BulkJobDTO reports the progress of a bulk send
type BulkJobDTO struct {
	UUID         string  `json:"uuid"`
	EventID      uint    `json:"event_id"`
	InstanceID   string  `json:"instance_id"`
	MessageType  string  `json:"message_type"`
	MessageTrack int     `json:"message_track"`
	Status       string  `json:"status"`
	Total        int     `json:"total"`
	NextIndex    int     `json:"next_index"`
	FailedIndex  *int    `json:"failed_index,omitempty"`
	Error        *string `json:"error,omitempty"`
	DelayMillis  int64   `json:"delay_millis"`
	StartedAt    *string `json:"started_at,omitempty"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ListBulkJobsResponse lists the bulk jobs of an event
type ListBulkJobsResponse struct {
	Items []BulkJobDTO `json:"items"`
}
