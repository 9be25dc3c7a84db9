// Package businessflow contains the use cases of the RSVP relay: conversations, admin commands, bulk sends and management
package businessflow

import (
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds the caller information handlers pass down to flows
type ClientMetadata struct {
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	RequestID  string `json:"request_id,omitempty"`
	OperatorID *uint  `json:"operator_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetOperatorID records the authenticated operator
func (cm *ClientMetadata) SetOperatorID(id uint) {
	cm.OperatorID = &id
}

func operatorOf(metadata *ClientMetadata) *uint {
	if metadata == nil {
		return nil
	}
	return metadata.OperatorID
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ToEventDTO converts an event model to its API view
func ToEventDTO(e models.Event) dto.EventDTO {
	subEvents := make([]dto.SubEventDTO, 0, len(e.SubEvents))
	for _, se := range e.SubEvents {
		subEvents = append(subEvents, dto.SubEventDTO{
			Name:     se.Name,
			Text:     se.Text,
			Venue:    se.Venue,
			Date:     se.Date,
			Media:    se.Media,
			Template: se.Template,
		})
	}

	return dto.EventDTO{
		ID:        e.ID,
		UUID:      e.UUID.String(),
		Name:      e.Name,
		StartsAt:  e.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:    e.EndsAt.UTC().Format(time.RFC3339),
		IsOpen:    e.IsOpen(utils.UTCNow()),
		SubEvents: subEvents,

		InvitationText:           e.InvitationText,
		InvitationMedia:          e.InvitationMedia,
		AcceptanceKeyword:        e.AcceptanceKeyword,
		AcceptanceAcknowledgment: e.AcceptanceAcknowledgment,
		ThankYouMedia:            e.ThankYouMedia,
		RejectionKeyword:         e.RejectionKeyword,
		RejectionAcknowledgment:  e.RejectionAcknowledgment,
		MoreThanOneInvitesText:   e.MoreThanOneInvitesText,
		ClosedInvitationsText:    e.ClosedInvitationsText,
		SubEventInvitation:       e.SubEventInvitation,
		SummaryTemplate:          e.SummaryTemplate,

		StartingKeyword: e.StartingKeyword,
		RewriteKeyword:  e.RewriteKeyword,
		ReportKeyword:   e.ReportKeyword,
		StatsKeyword:    e.StatsKeyword,

		InitialCode:    e.InitialCode,
		InviteCode:     e.InviteCode,
		AcceptCode:     e.AcceptCode,
		RejectCode:     e.RejectCode,
		NewContactCode: e.NewContactCode,

		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToInstanceDTO converts an instance binding to its API view
func ToInstanceDTO(i models.Instance) dto.InstanceDTO {
	return dto.InstanceDTO{
		ID:         i.ID,
		InstanceID: i.InstanceID,
		EventID:    i.EventID,
		Label:      i.Label,
		IsActive:   utils.IsTrue(i.IsActive),
		CreatedAt:  i.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToContactDTO converts a contact model to its API view
func ToContactDTO(c models.Contact) dto.ContactDTO {
	days := make([]dto.ContactDayDTO, 0, len(c.Days))
	for _, d := range c.Days {
		days = append(days, dto.ContactDayDTO{
			InvitesAllocated: d.InvitesAllocated,
			InvitesAccepted:  d.InvitesAccepted,
			Status:           d.Status.String(),
		})
	}

	return dto.ContactDTO{
		ID:                  c.ID,
		EventID:             c.EventID,
		InstanceID:          c.InstanceID,
		Name:                c.Name,
		Number:              c.Number,
		Params:              c.Params,
		Days:                days,
		OverallStatus:       c.OverallStatus.String(),
		HasCompletedForm:    c.HasCompletedForm,
		InviteMessageStatus: c.InviteMessageStatus.String(),
		IsAdmin:             c.IsAdmin,
		LastResponse:        c.LastResponse,
		LastResponseAt:      formatTimePtr(c.LastResponseAt),
		CreatedAt:           c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToMessageDTO converts a logged message to its API view
func ToMessageDTO(m models.Message) dto.MessageDTO {
	statuses := make([]dto.MessageStatusDTO, 0, len(m.Statuses))
	for _, s := range m.Statuses {
		statuses = append(statuses, dto.MessageStatusDTO{
			Status: s.Status,
			Time:   s.Time.UTC().Format(time.RFC3339),
		})
	}

	return dto.MessageDTO{
		ID:         m.ID,
		Number:     m.Number,
		InstanceID: m.InstanceID,
		FromMe:     m.FromMe,
		Kind:       m.Kind.String(),
		Text:       m.Text,
		MediaURL:   m.MediaURL,
		MessageID:  m.MessageID,
		Statuses:   statuses,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToBulkJobDTO converts a bulk job to its API view
func ToBulkJobDTO(j models.BulkJob) dto.BulkJobDTO {
	return dto.BulkJobDTO{
		UUID:         j.UUID.String(),
		EventID:      j.EventID,
		InstanceID:   j.InstanceID,
		MessageType:  string(j.MessageType),
		MessageTrack: int(j.MessageTrack),
		Status:       j.Status.String(),
		Total:        len(j.Targets),
		NextIndex:    j.NextIndex,
		FailedIndex:  j.FailedIndex,
		Error:        j.Error,
		DelayMillis:  j.DelayMillis,
		StartedAt:    formatTimePtr(j.StartedAt),
		FinishedAt:   formatTimePtr(j.FinishedAt),
		CreatedAt:    j.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToOperatorInfo converts an operator to the login response view
func ToOperatorInfo(o models.Operator) dto.OperatorInfo {
	return dto.OperatorInfo{
		ID:          o.ID,
		UUID:        o.UUID.String(),
		Username:    o.Username,
		IsActive:    utils.IsTrue(o.IsActive),
		LastLoginAt: formatTimePtr(o.LastLoginAt),
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
