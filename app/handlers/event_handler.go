package handlers

import (
	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// EventHandler exposes event definitions and instance bindings to operators
type EventHandler struct {
	baseHandler
	eventFlow businessflow.EventFlow
}

func NewEventHandler(eventFlow businessflow.EventFlow) *EventHandler {
	return &EventHandler{
		baseHandler: newBaseHandler(),
		eventFlow:   eventFlow,
	}
}

func (h *EventHandler) eventError(c fiber.Ctx, err error, action string) error {
	switch {
	case businessflow.IsEventNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Event not found", "EVENT_NOT_FOUND", nil)
	case businessflow.IsEventNameRequired(err), businessflow.IsInvalidEventWindow(err), businessflow.IsInvalidPageSize(err):
		return h.businessError(c, fiber.StatusBadRequest, err, "INVALID_REQUEST")
	case businessflow.IsInstanceBound(err):
		return h.businessError(c, fiber.StatusConflict, err, "INSTANCE_ALREADY_BOUND")
	}
	zap.L().Error("Event request failed", zap.String("action", action), zap.Error(err))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to "+action, "EVENT_REQUEST_FAILED", nil)
}

// Create defines a new event
// @Summary Create event
// @Description Create an event with its sub-events, texts, keywords and protocol codes
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpsertEventRequest true "Event definition"
// @Success 201 {object} dto.APIResponse{data=dto.EventDTO} "Event created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/events [post]
func (h *EventHandler) Create(c fiber.Ctx) error {
	var req dto.UpsertEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.Create(ctx, &req, h.metadata(c))
	if err != nil {
		return h.eventError(c, err, "create event")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Event created", result)
}

// Update replaces an event definition
// @Summary Update event
// @Description Replace an event definition. Contact days stay aligned with sub-events by position.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body dto.UpsertEventRequest true "Event definition"
// @Success 200 {object} dto.APIResponse{data=dto.EventDTO} "Event updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id} [put]
func (h *EventHandler) Update(c fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	var req dto.UpsertEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.Update(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.eventError(c, err, "update event")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Event updated", result)
}

// Get returns one event
// @Summary Get event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=dto.EventDTO} "Event"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id} [get]
func (h *EventHandler) Get(c fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.Get(ctx, id)
	if err != nil {
		return h.eventError(c, err, "get event")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Event retrieved", result)
}

// List pages through events, newest first
// @Summary List events
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param name query string false "Exact event name"
// @Param open_only query bool false "Only events whose answering window is open"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListEventsResponse} "Events"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Router /api/v1/events [get]
func (h *EventHandler) List(c fiber.Ctx) error {
	page, err := queryUint(c, "page")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	pageSize, err := queryUint(c, "page_size")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	req := dto.ListEventsRequest{
		Name:     queryString(c, "name"),
		OpenOnly: c.Query("open_only") == "true",
		Page:     page,
		PageSize: pageSize,
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.List(ctx, &req)
	if err != nil {
		return h.eventError(c, err, "list events")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Events retrieved", result)
}

// BindInstance attaches a provider instance to the event
// @Summary Bind instance
// @Description Route webhook traffic of a provider instance to this event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body dto.BindInstanceRequest true "Instance"
// @Success 201 {object} dto.APIResponse{data=dto.InstanceDTO} "Instance bound"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Failure 409 {object} dto.APIResponse "Already bound"
// @Router /api/v1/events/{id}/instances [post]
func (h *EventHandler) BindInstance(c fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	var req dto.BindInstanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/instances", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.BindInstance(ctx, id, &req)
	if err != nil {
		return h.eventError(c, err, "bind instance")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Instance bound", result)
}

// ListInstances lists the instances bound to the event
// @Summary List instances
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.InstanceDTO} "Instances"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/instances [get]
func (h *EventHandler) ListInstances(c fiber.Ctx) error {
	id, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/instances", defaultRequestTimeout)
	defer cancel()

	result, err := h.eventFlow.ListInstances(ctx, id)
	if err != nil {
		return h.eventError(c, err, "list instances")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Instances retrieved", result)
}
