package businessflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/metrics"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

// InboundFlow routes provider webhooks to the conversation, admin and
// delivery status flows
type InboundFlow interface {
	HandleWebhook(ctx context.Context, req *dto.WebhookRequest) (*dto.WebhookResponse, error)
}

type InboundFlowImpl struct {
	instanceRepo    repository.InstanceRepository
	eventRepo       repository.EventRepository
	contactRepo     repository.ContactRepository
	chatLogRepo     repository.ChatLogRepository
	messageRepo     repository.MessageRepository
	locker          services.KeyedLocker
	dispatcher      Dispatcher
	conversation    ConversationFlow
	admin           AdminCommandFlow
	delivery        DeliveryStatusFlow
	matcher         *services.KeywordMatcher
	maxNumberLength int
	logger          *zap.Logger
}

func NewInboundFlow(
	instanceRepo repository.InstanceRepository,
	eventRepo repository.EventRepository,
	contactRepo repository.ContactRepository,
	chatLogRepo repository.ChatLogRepository,
	messageRepo repository.MessageRepository,
	locker services.KeyedLocker,
	dispatcher Dispatcher,
	conversation ConversationFlow,
	admin AdminCommandFlow,
	delivery DeliveryStatusFlow,
	matcher *services.KeywordMatcher,
	maxNumberLength int,
	logger *zap.Logger,
) InboundFlow {
	return &InboundFlowImpl{
		instanceRepo:    instanceRepo,
		eventRepo:       eventRepo,
		contactRepo:     contactRepo,
		chatLogRepo:     chatLogRepo,
		messageRepo:     messageRepo,
		locker:          locker,
		dispatcher:      dispatcher,
		conversation:    conversation,
		admin:           admin,
		delivery:        delivery,
		matcher:         matcher,
		maxNumberLength: maxNumberLength,
		logger:          logger.Named("inbound"),
	}
}

func (f *InboundFlowImpl) HandleWebhook(ctx context.Context, req *dto.WebhookRequest) (*dto.WebhookResponse, error) {
	switch req.Data.Event {
	case dto.WebhookEventMessagesUpsert:
		var data dto.WebhookUpsertData
		if err := json.Unmarshal(req.Data.Data, &data); err != nil {
			return nil, NewBusinessError("INVALID_WEBHOOK_PAYLOAD", "Invalid messages.upsert payload", err)
		}
		processed := 0
		for _, m := range data.Messages {
			ok, err := f.handleMessage(ctx, req.InstanceID, m)
			if err != nil {
				return &dto.WebhookResponse{Processed: processed}, err
			}
			if ok {
				processed++
			}
		}
		return &dto.WebhookResponse{Processed: processed}, nil

	case dto.WebhookEventMessagesUpdate:
		updates, err := decodeStatusUpdates(req.Data.Data)
		if err != nil {
			return nil, NewBusinessError("INVALID_WEBHOOK_PAYLOAD", "Invalid messages.update payload", err)
		}
		applied, err := f.delivery.Apply(ctx, updates)
		return &dto.WebhookResponse{Processed: applied}, err

	default:
		f.logger.Debug("Ignoring webhook event", zap.String("event", req.Data.Event), zap.String("instance_id", req.InstanceID))
		return &dto.WebhookResponse{}, nil
	}
}

// decodeStatusUpdates accepts a list of updates or a single one
func decodeStatusUpdates(raw json.RawMessage) ([]dto.WebhookStatusUpdate, error) {
	var list []dto.WebhookStatusUpdate
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var one dto.WebhookStatusUpdate
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []dto.WebhookStatusUpdate{one}, nil
}

func (f *InboundFlowImpl) handleMessage(ctx context.Context, instanceID string, m dto.WebhookMessage) (bool, error) {
	text := strings.TrimSpace(m.Text())
	if text == "" {
		return false, nil
	}
	number := m.SenderID()

	if !validNumber(number, f.maxNumberLength) {
		metrics.InboundMessages.WithLabelValues("invalid_number").Inc()
		if m.Key.FromMe {
			return false, nil
		}
		if _, err := f.dispatcher.Send(ctx, Outbound{
			Number:     number,
			InstanceID: instanceID,
			Template:   ReplyInvalidNumber,
			Kind:       models.MessageKindReply,
			Data:       services.TemplateData{},
		}); err != nil {
			f.logger.Warn("Failed to answer invalid sender", zap.String("sender", number), zap.Error(err))
		}
		return true, nil
	}

	events, err := f.boundEvents(ctx, instanceID)
	if err != nil {
		return false, err
	}

	if m.Key.FromMe {
		return f.handleOperatorMessage(ctx, events, number, instanceID, m, text)
	}

	if len(events) == 0 {
		metrics.InboundMessages.WithLabelValues("no_event").Inc()
		return true, f.replyPlain(ctx, nil, number, instanceID, ReplyNoActiveEvent)
	}

	event, err := f.selectEvent(ctx, events, number, instanceID, text)
	if err != nil {
		return false, err
	}
	if event == nil {
		metrics.InboundMessages.WithLabelValues("no_event").Inc()
		return true, f.replyPlain(ctx, nil, number, instanceID, ReplyNoActiveEvent)
	}
	return true, f.handleInEvent(ctx, event, number, instanceID, m, text)
}

func (f *InboundFlowImpl) boundEvents(ctx context.Context, instanceID string) ([]*models.Event, error) {
	bindings, err := f.instanceRepo.ListActiveByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	events := make([]*models.Event, 0, len(bindings))
	for _, b := range bindings {
		ev, err := f.eventRepo.ByID(ctx, b.EventID)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// selectEvent picks the event a message belongs to: an event whose starting
// keyword it is and that has no conversation yet, else the event with the
// most recent conversation, else the only event, else an event the sender
// administers.
func (f *InboundFlowImpl) selectEvent(ctx context.Context, events []*models.Event, number, instanceID, text string) (*models.Event, error) {
	var latest *models.Event
	var latestAt time.Time
	for _, ev := range events {
		cursor, err := f.chatLogRepo.Current(ctx, number, instanceID, ev.ID)
		if err != nil {
			return nil, err
		}
		if cursor == nil {
			if f.matcher.Equals(text, ev.StartingKeyword) {
				return ev, nil
			}
			continue
		}
		if latest == nil || cursor.UpdatedAt.After(latestAt) {
			latest, latestAt = ev, cursor.UpdatedAt
		}
	}
	if latest != nil {
		return latest, nil
	}
	if len(events) == 1 {
		return events[0], nil
	}
	for _, ev := range events {
		contact, err := f.contactRepo.ByEventAndNumber(ctx, ev.ID, number)
		if err != nil {
			return nil, err
		}
		if contact != nil && contact.IsAdmin {
			return ev, nil
		}
	}
	return nil, nil
}

func (f *InboundFlowImpl) handleInEvent(ctx context.Context, event *models.Event, number, instanceID string, m dto.WebhookMessage, text string) error {
	unlock, err := f.lock(ctx, number, event.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if m.Key.ID != "" {
		seen, err := f.messageRepo.ByMessageID(ctx, m.Key.ID)
		if err != nil {
			return err
		}
		if seen != nil {
			metrics.InboundMessages.WithLabelValues("duplicate").Inc()
			f.logger.Debug("Duplicate webhook message", zap.String("message_id", m.Key.ID))
			return nil
		}
	}

	previous, err := f.messageRepo.PreviousInbound(ctx, event.ID, number, instanceID)
	if err != nil {
		return err
	}
	if err := f.logInbound(ctx, event, number, instanceID, m, text, models.MessageKindInbound); err != nil {
		return err
	}

	contact, err := f.contactRepo.ByEventAndNumber(ctx, event.ID, number)
	if err != nil {
		return err
	}
	if contact == nil {
		metrics.InboundMessages.WithLabelValues("unknown_contact").Inc()
		return f.replyPlain(ctx, event, number, instanceID, ReplyAccountNotFound)
	}

	if contact.IsAdmin {
		handled, err := f.admin.Handle(ctx, &AdminCommandInput{
			Event:      event,
			Contact:    contact,
			Number:     number,
			InstanceID: instanceID,
			Text:       text,
			Previous:   previous,
		})
		if handled || err != nil {
			metrics.InboundMessages.WithLabelValues("admin").Inc()
			return err
		}
	}

	cursor, err := f.chatLogRepo.Current(ctx, number, instanceID, event.ID)
	if err != nil {
		return err
	}
	metrics.InboundMessages.WithLabelValues("conversation").Inc()
	return f.conversation.HandleMessage(ctx, &ConversationInput{
		Event:      event,
		Contact:    contact,
		Cursor:     cursor,
		Number:     number,
		InstanceID: instanceID,
		Text:       text,
	})
}

// handleOperatorMessage applies protocol commands typed on the monitored
// device. number is the contact the operator wrote to.
func (f *InboundFlowImpl) handleOperatorMessage(ctx context.Context, events []*models.Event, number, instanceID string, m dto.WebhookMessage, text string) (bool, error) {
	if m.Key.ID != "" {
		seen, err := f.messageRepo.ByMessageID(ctx, m.Key.ID)
		if err != nil {
			return false, err
		}
		if seen != nil {
			return false, nil
		}
	}

	for _, ev := range events {
		if _, ok := parseOperatorCommand(ev, text); !ok {
			continue
		}
		metrics.InboundMessages.WithLabelValues("operator").Inc()
		return true, f.applyOperatorCommand(ctx, ev, number, instanceID, m, text)
	}
	metrics.InboundMessages.WithLabelValues("echo").Inc()
	return false, nil
}

func (f *InboundFlowImpl) applyOperatorCommand(ctx context.Context, event *models.Event, number, instanceID string, m dto.WebhookMessage, text string) error {
	unlock, err := f.lock(ctx, number, event.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := f.logInbound(ctx, event, number, instanceID, m, text, models.MessageKindEcho); err != nil {
		return err
	}
	contact, err := f.contactRepo.ByEventAndNumber(ctx, event.ID, number)
	if err != nil {
		return err
	}
	if contact == nil {
		f.logger.Warn("Operator command for unknown contact", zap.String("number", number), zap.Uint("event_id", event.ID))
		return nil
	}
	cursor, err := f.chatLogRepo.Current(ctx, number, instanceID, event.ID)
	if err != nil {
		return err
	}
	_, err = f.conversation.HandleOperatorCommand(ctx, &ConversationInput{
		Event:      event,
		Contact:    contact,
		Cursor:     cursor,
		Number:     number,
		InstanceID: instanceID,
		Text:       text,
	})
	return err
}

func (f *InboundFlowImpl) lock(ctx context.Context, number string, eventID uint) (func(), error) {
	start := time.Now()
	unlock, err := f.locker.Lock(ctx, services.ConversationKey(number, eventID))
	metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		f.logger.Error("Failed to take conversation lock", zap.String("number", number), zap.Uint("event_id", eventID), zap.Error(err))
		return nil, err
	}
	return unlock, nil
}

func (f *InboundFlowImpl) logInbound(ctx context.Context, event *models.Event, number, instanceID string, m dto.WebhookMessage, text string, kind models.MessageKind) error {
	msg := &models.Message{
		EventID:    utils.ToPtr(event.ID),
		Number:     number,
		InstanceID: instanceID,
		FromMe:     m.Key.FromMe,
		Kind:       kind,
		Text:       text,
		MessageID:  m.Key.ID,
		Statuses:   models.MessageStatuses{},
	}
	return f.messageRepo.Save(ctx, msg)
}

func (f *InboundFlowImpl) replyPlain(ctx context.Context, event *models.Event, number, instanceID, text string) error {
	_, err := f.dispatcher.Send(ctx, Outbound{
		Event:      event,
		Number:     number,
		InstanceID: instanceID,
		Template:   text,
		Kind:       models.MessageKindReply,
		Data:       services.TemplateData{},
	})
	return err
}
