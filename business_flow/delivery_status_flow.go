package businessflow

import (
	"context"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/metrics"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

// DeliveryStatusFlow records provider delivery reports
type DeliveryStatusFlow interface {
	// Apply returns how many updates changed a message
	Apply(ctx context.Context, updates []dto.WebhookStatusUpdate) (int, error)
}

type DeliveryStatusFlowImpl struct {
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	locker      services.KeyedLocker
	logger      *zap.Logger
}

func NewDeliveryStatusFlow(
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	locker services.KeyedLocker,
	logger *zap.Logger,
) DeliveryStatusFlow {
	return &DeliveryStatusFlowImpl{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		locker:      locker,
		logger:      logger.Named("delivery"),
	}
}

// deliveryStatus maps provider codes to the stored status names. Codes below
// delivery carry nothing worth recording.
func deliveryStatus(code dto.StatusCode) (models.InviteMessageStatus, bool) {
	switch code {
	case dto.StatusCodeDeliveryAck:
		return models.InviteMessageReceived, true
	case dto.StatusCodeRead, dto.StatusCodePlayed:
		return models.InviteMessageRead, true
	default:
		return "", false
	}
}

func (f *DeliveryStatusFlowImpl) Apply(ctx context.Context, updates []dto.WebhookStatusUpdate) (int, error) {
	applied := 0
	for _, u := range updates {
		status, ok := deliveryStatus(u.Update.Status)
		if !ok || u.Key.ID == "" {
			continue
		}
		changed, err := f.applyOne(ctx, u.Key.ID, status)
		if err != nil {
			metrics.DeliveryUpdates.WithLabelValues(status.String(), "error").Inc()
			return applied, err
		}
		if changed {
			applied++
			metrics.DeliveryUpdates.WithLabelValues(status.String(), "applied").Inc()
		} else {
			metrics.DeliveryUpdates.WithLabelValues(status.String(), "duplicate").Inc()
		}
	}
	return applied, nil
}

func (f *DeliveryStatusFlowImpl) applyOne(ctx context.Context, messageID string, status models.InviteMessageStatus) (bool, error) {
	msg, err := f.messageRepo.ByMessageID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg == nil {
		f.logger.Debug("Status for unknown message", zap.String("message_id", messageID))
		return false, nil
	}

	// Contact flags are only driven by invitations we sent
	tracked := msg.FromMe && msg.Kind == models.MessageKindInvitation && msg.EventID != nil
	if tracked {
		unlock, err := f.locker.Lock(ctx, services.ConversationKey(msg.Number, *msg.EventID))
		if err != nil {
			return false, err
		}
		defer unlock()
		// Reload under the lock so concurrent replays see each other
		if msg, err = f.messageRepo.ByMessageID(ctx, messageID); err != nil || msg == nil {
			return false, err
		}
	}

	if msg.Statuses.Has(status.String()) {
		return false, nil
	}
	msg.Statuses = append(msg.Statuses, models.MessageStatusEntry{Status: status.String(), Time: utils.UTCNow()})
	if err := f.messageRepo.Update(ctx, msg); err != nil {
		return false, err
	}

	if !tracked {
		return true, nil
	}
	contact, err := f.contactRepo.ByEventAndNumber(ctx, *msg.EventID, msg.Number)
	if err != nil {
		return true, err
	}
	if contact == nil || status.Rank() <= contact.InviteMessageStatus.Rank() {
		return true, nil
	}
	contact.InviteMessageStatus = status
	if err := f.contactRepo.Update(ctx, contact); err != nil {
		return true, err
	}
	return true, nil
}
