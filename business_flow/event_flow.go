package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventFlow manages event definitions and their provider instances
type EventFlow interface {
	Create(ctx context.Context, req *dto.UpsertEventRequest, metadata *ClientMetadata) (*dto.EventDTO, error)
	Update(ctx context.Context, id uint, req *dto.UpsertEventRequest, metadata *ClientMetadata) (*dto.EventDTO, error)
	Get(ctx context.Context, id uint) (*dto.EventDTO, error)
	List(ctx context.Context, req *dto.ListEventsRequest) (*dto.ListEventsResponse, error)
	BindInstance(ctx context.Context, eventID uint, req *dto.BindInstanceRequest) (*dto.InstanceDTO, error)
	ListInstances(ctx context.Context, eventID uint) ([]dto.InstanceDTO, error)
}

type EventFlowImpl struct {
	eventRepo    repository.EventRepository
	instanceRepo repository.InstanceRepository
	logger       *zap.Logger
}

func NewEventFlow(eventRepo repository.EventRepository, instanceRepo repository.InstanceRepository, logger *zap.Logger) EventFlow {
	return &EventFlowImpl{
		eventRepo:    eventRepo,
		instanceRepo: instanceRepo,
		logger:       logger.Named("events"),
	}
}

func (f *EventFlowImpl) Create(ctx context.Context, req *dto.UpsertEventRequest, metadata *ClientMetadata) (*dto.EventDTO, error) {
	event := &models.Event{UUID: uuid.New(), CreatedBy: operatorOf(metadata), CreatedAt: utils.UTCNow()}
	if err := applyEventRequest(event, req); err != nil {
		return nil, err
	}
	event.UpdatedAt = event.CreatedAt

	if err := f.eventRepo.Save(ctx, event); err != nil {
		return nil, NewBusinessError("EVENT_SAVE_FAILED", "Failed to save event", err)
	}
	f.logger.Info("Event created", zap.Uint("event_id", event.ID), zap.String("name", event.Name), zap.Int("sub_events", len(event.SubEvents)))

	resp := ToEventDTO(*event)
	return &resp, nil
}

// Update replaces the definition. Contacts keep their days, which stay
// aligned with sub-events by position.
func (f *EventFlowImpl) Update(ctx context.Context, id uint, req *dto.UpsertEventRequest, metadata *ClientMetadata) (*dto.EventDTO, error) {
	event, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyEventRequest(event, req); err != nil {
		return nil, err
	}
	event.UpdatedAt = utils.UTCNow()

	if err := f.eventRepo.Update(ctx, event); err != nil {
		return nil, NewBusinessError("EVENT_UPDATE_FAILED", "Failed to update event", err)
	}
	resp := ToEventDTO(*event)
	return &resp, nil
}

func (f *EventFlowImpl) Get(ctx context.Context, id uint) (*dto.EventDTO, error) {
	event, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToEventDTO(*event)
	return &resp, nil
}

func (f *EventFlowImpl) List(ctx context.Context, req *dto.ListEventsRequest) (*dto.ListEventsResponse, error) {
	page, size, err := pageBounds(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	filter := models.EventFilter{Name: req.Name}
	if req.OpenOnly {
		filter.OpenAt = utils.UTCNowPtr()
	}

	total, err := f.eventRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to count events", err)
	}
	events, err := f.eventRepo.ByFilter(ctx, filter, "id DESC", int(size), int((page-1)*size))
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to list events", err)
	}

	items := make([]dto.EventDTO, 0, len(events))
	for _, e := range events {
		items = append(items, ToEventDTO(*e))
	}
	return &dto.ListEventsResponse{Items: items, Total: total, Page: page}, nil
}

func (f *EventFlowImpl) BindInstance(ctx context.Context, eventID uint, req *dto.BindInstanceRequest) (*dto.InstanceDTO, error) {
	if _, err := f.load(ctx, eventID); err != nil {
		return nil, err
	}
	instanceID := strings.TrimSpace(req.InstanceID)

	existing, err := f.instanceRepo.ByFilter(ctx, models.InstanceFilter{InstanceID: &instanceID, EventID: &eventID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		inst := existing[0]
		if utils.IsTrue(inst.IsActive) {
			return nil, NewBusinessError("INSTANCE_ALREADY_BOUND", "Instance already bound to this event", ErrInstanceBound)
		}
		inst.IsActive = utils.ToPtr(true)
		inst.Label = req.Label
		inst.UpdatedAt = utils.UTCNow()
		if err := f.instanceRepo.Update(ctx, inst); err != nil {
			return nil, NewBusinessError("INSTANCE_BIND_FAILED", "Failed to bind instance", err)
		}
		resp := ToInstanceDTO(*inst)
		return &resp, nil
	}

	inst := &models.Instance{
		InstanceID: instanceID,
		EventID:    eventID,
		Label:      req.Label,
		IsActive:   utils.ToPtr(true),
		CreatedAt:  utils.UTCNow(),
		UpdatedAt:  utils.UTCNow(),
	}
	if err := f.instanceRepo.Save(ctx, inst); err != nil {
		return nil, NewBusinessError("INSTANCE_BIND_FAILED", "Failed to bind instance", err)
	}
	f.logger.Info("Instance bound", zap.Uint("event_id", eventID), zap.String("instance_id", instanceID))
	resp := ToInstanceDTO(*inst)
	return &resp, nil
}

func (f *EventFlowImpl) ListInstances(ctx context.Context, eventID uint) ([]dto.InstanceDTO, error) {
	if _, err := f.load(ctx, eventID); err != nil {
		return nil, err
	}
	instances, err := f.instanceRepo.ByFilter(ctx, models.InstanceFilter{EventID: &eventID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("INSTANCE_LIST_FAILED", "Failed to list instances", err)
	}
	out := make([]dto.InstanceDTO, 0, len(instances))
	for _, i := range instances {
		out = append(out, ToInstanceDTO(*i))
	}
	return out, nil
}

func (f *EventFlowImpl) load(ctx context.Context, id uint) (*models.Event, error) {
	event, err := f.eventRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, NewBusinessError("EVENT_NOT_FOUND", "Event not found", ErrEventNotFound)
	}
	return event, nil
}

func windowTime(w dto.EventWindowDTO) (time.Time, error) {
	return utils.ComposeUTC(w.Date, w.Hour, w.Minute)
}

func applyEventRequest(event *models.Event, req *dto.UpsertEventRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return NewBusinessError("EVENT_NAME_REQUIRED", "Event name is required", ErrEventNameRequired)
	}
	start, err := windowTime(req.Start)
	if err != nil {
		return NewBusinessError("INVALID_EVENT_WINDOW", "Invalid start date", ErrInvalidEventWindow)
	}
	end, err := windowTime(req.End)
	if err != nil {
		return NewBusinessError("INVALID_EVENT_WINDOW", "Invalid end date", ErrInvalidEventWindow)
	}
	if !end.After(start) {
		return NewBusinessError("INVALID_EVENT_WINDOW", "Event must end after it starts", ErrInvalidEventWindow)
	}

	subEvents := make(models.SubEvents, 0, len(req.SubEvents))
	for _, se := range req.SubEvents {
		subEvents = append(subEvents, models.SubEvent{
			Name:     strings.TrimSpace(se.Name),
			Text:     se.Text,
			Venue:    se.Venue,
			Date:     se.Date,
			Media:    se.Media,
			Template: se.Template,
		})
	}

	event.Name = name
	event.StartsAt = start
	event.EndsAt = end
	event.SubEvents = subEvents
	event.InvitationText = req.InvitationText
	event.InvitationMedia = req.InvitationMedia
	event.AcceptanceKeyword = strings.TrimSpace(req.AcceptanceKeyword)
	event.AcceptanceAcknowledgment = req.AcceptanceAcknowledgment
	event.ThankYouMedia = req.ThankYouMedia
	event.RejectionKeyword = strings.TrimSpace(req.RejectionKeyword)
	event.RejectionAcknowledgment = req.RejectionAcknowledgment
	event.MoreThanOneInvitesText = req.MoreThanOneInvitesText
	event.ClosedInvitationsText = req.ClosedInvitationsText
	event.SubEventInvitation = req.SubEventInvitation
	event.SummaryTemplate = req.SummaryTemplate
	event.StartingKeyword = strings.TrimSpace(req.StartingKeyword)
	event.RewriteKeyword = strings.TrimSpace(req.RewriteKeyword)
	event.ReportKeyword = strings.TrimSpace(req.ReportKeyword)
	event.StatsKeyword = strings.TrimSpace(req.StatsKeyword)
	event.InitialCode = strings.TrimSpace(req.InitialCode)
	event.InviteCode = strings.TrimSpace(req.InviteCode)
	event.AcceptCode = strings.TrimSpace(req.AcceptCode)
	event.RejectCode = strings.TrimSpace(req.RejectCode)
	event.NewContactCode = strings.TrimSpace(req.NewContactCode)
	return nil
}
