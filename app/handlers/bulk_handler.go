package handlers

import (
	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// BulkHandler queues bulk sends and reports their progress
type BulkHandler struct {
	baseHandler
	bulkFlow businessflow.BulkSendFlow
}

func NewBulkHandler(bulkFlow businessflow.BulkSendFlow) *BulkHandler {
	return &BulkHandler{
		baseHandler: newBaseHandler(),
		bulkFlow:    bulkFlow,
	}
}

// Create queues a bulk send for an event
// @Summary Create bulk job
// @Description Queue a rate limited bulk send. The job runs in the background, one message at a time, and resumes after a restart.
// @Tags Bulk
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body dto.CreateBulkJobRequest true "Bulk job"
// @Success 202 {object} dto.APIResponse{data=dto.BulkJobDTO} "Job queued"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/bulk [post]
func (h *BulkHandler) Create(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	var req dto.CreateBulkJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/bulk", defaultRequestTimeout)
	defer cancel()

	result, err := h.bulkFlow.SendBulk(ctx, eventID, &req, h.metadata(c))
	if err != nil {
		switch {
		case businessflow.IsEventNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Event not found", "EVENT_NOT_FOUND", nil)
		case businessflow.IsInvalidMessageType(err), businessflow.IsBulkTemplateEmpty(err), businessflow.IsNoBulkTargets(err):
			return h.businessError(c, fiber.StatusBadRequest, err, "INVALID_REQUEST")
		}
		zap.L().Error("Bulk job creation failed", zap.Uint("event_id", eventID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue bulk job", "BULK_JOB_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusAccepted, "Bulk job queued", result)
}

// Get reports the progress of one job
// @Summary Get bulk job
// @Tags Bulk
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Job UUID"
// @Success 200 {object} dto.APIResponse{data=dto.BulkJobDTO} "Job"
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Router /api/v1/bulk/{uuid} [get]
func (h *BulkHandler) Get(c fiber.Ctx) error {
	id := c.Params("uuid")
	if id == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Job uuid is required", "INVALID_JOB_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/bulk/{uuid}", defaultRequestTimeout)
	defer cancel()

	result, err := h.bulkFlow.GetJob(ctx, id)
	if err != nil {
		if businessflow.IsBulkJobNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Bulk job not found", "BULK_JOB_NOT_FOUND", nil)
		}
		zap.L().Error("Bulk job lookup failed", zap.String("job", id), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get bulk job", "BULK_JOB_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bulk job retrieved", result)
}

// List returns the jobs of an event, newest first
// @Summary List bulk jobs
// @Tags Bulk
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListBulkJobsResponse} "Jobs"
// @Router /api/v1/events/{id}/bulk [get]
func (h *BulkHandler) List(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/bulk", defaultRequestTimeout)
	defer cancel()

	result, err := h.bulkFlow.ListJobs(ctx, eventID)
	if err != nil {
		zap.L().Error("Bulk job listing failed", zap.Uint("event_id", eventID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list bulk jobs", "BULK_JOB_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bulk jobs retrieved", result)
}
