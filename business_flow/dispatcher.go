package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/rsvp-relay/app/metrics"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

// Outbound is one message to render and deliver
type Outbound struct {
	Event      *models.Event
	Number     string
	InstanceID string
	Template   string
	// Media is a stored relative path, turned into a public URL on send
	Media string
	Kind  models.MessageKind
	// Data is resolved from the addressee's contact when nil
	Data        services.TemplateData
	Conditional bool
}

// Dispatcher renders and sends single messages and logs them
type Dispatcher interface {
	Send(ctx context.Context, out Outbound) (*models.Message, error)
}

type DispatcherImpl struct {
	gateway      services.ChatGateway
	contactRepo  repository.ContactRepository
	messageRepo  repository.MessageRepository
	mediaBaseURL string
	logger       *zap.Logger
}

func NewDispatcher(
	gateway services.ChatGateway,
	contactRepo repository.ContactRepository,
	messageRepo repository.MessageRepository,
	mediaBaseURL string,
	logger *zap.Logger,
) Dispatcher {
	return &DispatcherImpl{
		gateway:      gateway,
		contactRepo:  contactRepo,
		messageRepo:  messageRepo,
		mediaBaseURL: mediaBaseURL,
		logger:       logger.Named("dispatcher"),
	}
}

// Send renders the template, delivers it with its optional media and appends
// the outbound Message. A message with neither text nor media is skipped and
// (nil, nil) is returned.
func (d *DispatcherImpl) Send(ctx context.Context, out Outbound) (*models.Message, error) {
	data := out.Data
	if data == nil {
		var contact *models.Contact
		if out.Event != nil {
			c, err := d.contactRepo.ByEventAndNumber(ctx, out.Event.ID, out.Number)
			if err != nil {
				return nil, err
			}
			contact = c
		}
		data = BuildTemplateData(out.Event, contact, -1, nil)
	}

	var text string
	if out.Conditional {
		text = services.RenderConditional(out.Template, data)
	} else {
		text = services.Render(out.Template, data)
	}

	media := strings.TrimSpace(out.Media)
	if strings.TrimSpace(text) == "" && media == "" {
		d.logger.Debug("Skipping empty message", zap.String("number", out.Number), zap.String("kind", out.Kind.String()))
		return nil, nil
	}

	filename, mediaURL := services.MediaAttachment(d.mediaBaseURL, media)
	res, err := d.gateway.Send(ctx, services.SendRequest{
		Number:     out.Number,
		InstanceID: out.InstanceID,
		Text:       text,
		Filename:   filename,
		MediaURL:   mediaURL,
	})
	metrics.MessagesSent.WithLabelValues(out.Kind.String(), metrics.Result(err)).Inc()
	if err != nil {
		d.logger.Error("Failed to send message",
			zap.String("number", out.Number),
			zap.String("instance_id", out.InstanceID),
			zap.String("kind", out.Kind.String()),
			zap.Error(err))
		return nil, fmt.Errorf("send %s message to %s: %w", out.Kind, out.Number, err)
	}

	msg := &models.Message{
		Number:     out.Number,
		InstanceID: out.InstanceID,
		FromMe:     true,
		Kind:       out.Kind,
		Text:       text,
		MediaURL:   mediaURL,
		Statuses:   models.MessageStatuses{},
		SentAt:     utils.UTCNowPtr(),
	}
	if out.Event != nil {
		msg.EventID = utils.ToPtr(out.Event.ID)
	}
	if res != nil {
		msg.MessageID = res.MessageID
	}
	if err := d.messageRepo.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("log outbound message: %w", err)
	}
	return msg, nil
}
