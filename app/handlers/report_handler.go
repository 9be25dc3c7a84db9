package handlers

import (
	"fmt"

	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves dashboard statistics and spreadsheet exports
type ReportHandler struct {
	baseHandler
	reportFlow businessflow.ReportFlow
}

func NewReportHandler(reportFlow businessflow.ReportFlow) *ReportHandler {
	return &ReportHandler{
		baseHandler: newBaseHandler(),
		reportFlow:  reportFlow,
	}
}

// Stats returns the RSVP counters of an event
// @Summary Event stats
// @Description Invitee totals, yes/no counts, remaining balance and per day counters
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.EventStatsResponse} "Stats"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/stats [get]
func (h *ReportHandler) Stats(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/stats", defaultRequestTimeout)
	defer cancel()

	result, err := h.reportFlow.Stats(ctx, eventID)
	if err != nil {
		return h.reportError(c, err, eventID)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stats retrieved", result)
}

// Report downloads the per contact, per day workbook
// @Summary Event report
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {file} file "xlsx workbook"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/report [get]
func (h *ReportHandler) Report(c fiber.Ctx) error {
	return h.download(c, false)
}

// ReportDump downloads every contact with its full chat history
// @Summary Event dump
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {file} file "xlsx workbook"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/report/dump [get]
func (h *ReportHandler) ReportDump(c fiber.Ctx) error {
	return h.download(c, true)
}

func (h *ReportHandler) download(c fiber.Ctx, dump bool) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/report", 2*defaultRequestTimeout)
	defer cancel()

	data, err := h.reportFlow.Report(ctx, eventID, dump)
	if err != nil {
		return h.reportError(c, err, eventID)
	}

	kind := "report"
	if dump {
		kind = "dump"
	}
	filename := fmt.Sprintf("event-%d-%s-%s.xlsx", eventID, kind, utils.FormatTimestamp(utils.UTCNow()))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *ReportHandler) reportError(c fiber.Ctx, err error, eventID uint) error {
	if businessflow.IsEventNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Event not found", "EVENT_NOT_FOUND", nil)
	}
	zap.L().Error("Report failed", zap.Uint("event_id", eventID), zap.Error(err))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build report", "REPORT_FAILED", nil)
}
