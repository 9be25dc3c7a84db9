package dto

// EventStatsResponse is the dashboard summary of an event
type EventStatsResponse struct {
	TotalInvitees int           `json:"total_invitees"`
	Yes           int           `json:"yes"`
	No            int           `json:"no"`
	Balance       int           `json:"balance"`
	Days          []DayStatsDTO `json:"days"`
}

// DayStatsDTO counts answers for one sub-event
type DayStatsDTO struct {
	Day           int    `json:"day"`
	Name          string `json:"name,omitempty"`
	Yes           int    `json:"yes"`
	No            int    `json:"no"`
	Pending       int    `json:"pending"`
	TotalAccepted int    `json:"total_accepted"`
}
