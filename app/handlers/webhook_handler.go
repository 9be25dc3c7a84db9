package handlers

import (
	"crypto/subtle"
	"errors"

	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// WebhookHandler receives the chat provider's message and status callbacks
type WebhookHandler struct {
	baseHandler
	inbound businessflow.InboundFlow
	secret  string
}

// NewWebhookHandler creates the webhook handler. An empty secret disables the
// shared secret check.
func NewWebhookHandler(inbound businessflow.InboundFlow, secret string) *WebhookHandler {
	return &WebhookHandler{
		baseHandler: newBaseHandler(),
		inbound:     inbound,
		secret:      secret,
	}
}

// Receive handles a provider webhook call
// @Summary Chat provider webhook
// @Description Receives messages.upsert and messages.update events. New messages drive the RSVP conversation, status updates are recorded on sent messages.
// @Tags Webhook
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string false "Shared secret, required when configured"
// @Param request body dto.WebhookRequest true "Webhook payload"
// @Success 200 {object} dto.APIResponse{data=dto.WebhookResponse} "Webhook processed"
// @Failure 400 {object} dto.APIResponse "Invalid payload"
// @Failure 401 {object} dto.APIResponse "Invalid secret"
// @Failure 500 {object} dto.APIResponse "Processing failed"
// @Router /api/v1/webhook [post]
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.Get("X-Webhook-Secret")), []byte(h.secret)) != 1 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid webhook secret", "INVALID_WEBHOOK_SECRET", nil)
	}

	var req dto.WebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/webhook", utils.WebhookTimeout)
	defer cancel()

	result, err := h.inbound.HandleWebhook(ctx, &req)
	if err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) && be.Code == "INVALID_WEBHOOK_PAYLOAD" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, be.Error())
		}
		zap.L().Error("Webhook processing failed",
			zap.String("instance_id", req.InstanceID),
			zap.String("event", req.Data.Event),
			zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", "WEBHOOK_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook processed", result)
}
