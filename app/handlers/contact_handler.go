package handlers

import (
	"errors"
	"strconv"

	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ContactHandler manages the invitees of an event
type ContactHandler struct {
	baseHandler
	contactFlow businessflow.ContactFlow
}

func NewContactHandler(contactFlow businessflow.ContactFlow) *ContactHandler {
	return &ContactHandler{
		baseHandler: newBaseHandler(),
		contactFlow: contactFlow,
	}
}

func (h *ContactHandler) contactError(c fiber.Ctx, err error, action string) error {
	switch {
	case businessflow.IsEventNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Event not found", "EVENT_NOT_FOUND", nil)
	case businessflow.IsContactNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", nil)
	case businessflow.IsContactAlreadyExists(err):
		return h.businessError(c, fiber.StatusConflict, err, "CONTACT_ALREADY_EXISTS")
	case businessflow.IsInvalidNumber(err), businessflow.IsInvalidAllocation(err), businessflow.IsInvalidPageSize(err):
		return h.businessError(c, fiber.StatusBadRequest, err, "INVALID_REQUEST")
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) && (be.Code == "IMPORT_MISSING_COLUMNS" || be.Code == "IMPORT_PARSE_FAILED") {
		return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
	}
	zap.L().Error("Contact request failed", zap.String("action", action), zap.Error(err))
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to "+action, "CONTACT_REQUEST_FAILED", nil)
}

// Create registers one contact
// @Summary Create contact
// @Description Register an invitee. Fails when the event already has a contact with the same name or number.
// @Tags Contacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body dto.CreateContactRequest true "Contact"
// @Success 201 {object} dto.APIResponse{data=dto.ContactDTO} "Contact created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Failure 409 {object} dto.APIResponse "Duplicate contact"
// @Router /api/v1/events/{id}/contacts [post]
func (h *ContactHandler) Create(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	var req dto.CreateContactRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/contacts", defaultRequestTimeout)
	defer cancel()

	result, err := h.contactFlow.Create(ctx, eventID, &req, h.metadata(c))
	if err != nil {
		return h.contactError(c, err, "create contact")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Contact created", result)
}

// Import loads contacts from an xlsx sheet
// @Summary Import contacts
// @Description Import contacts from the first sheet of an xlsx workbook with name, isd code, number and day1..dayN columns. Other columns become template params.
// @Tags Contacts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param file formData file true "xlsx workbook"
// @Param instance_id formData string false "Provider instance of the imported contacts"
// @Success 200 {object} dto.APIResponse{data=dto.ImportContactsResponse} "Import summary"
// @Failure 400 {object} dto.APIResponse "Invalid file"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/contacts/import [post]
func (h *ContactHandler) Import(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_FILE", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/contacts/import", 2*defaultRequestTimeout)
	defer cancel()

	result, err := h.contactFlow.Import(ctx, eventID, c.FormValue("instance_id"), file, h.metadata(c))
	if err != nil {
		return h.contactError(c, err, "import contacts")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Contacts imported", result)
}

// List pages through the contacts of an event
// @Summary List contacts
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param search query string false "Name or number fragment"
// @Param overall_status query string false "Pending, Accepted or Rejected"
// @Param invite_message_status query string false "Pending, Recieved or Readed"
// @Param day_index query int false "Zero based sub-event index"
// @Param day_status query string false "Status of the day at day_index"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListContactsResponse} "Contacts"
// @Failure 400 {object} dto.APIResponse "Invalid query"
// @Failure 404 {object} dto.APIResponse "Event not found"
// @Router /api/v1/events/{id}/contacts [get]
func (h *ContactHandler) List(c fiber.Ctx) error {
	eventID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event id", "INVALID_EVENT_ID", nil)
	}
	page, err := queryUint(c, "page")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	pageSize, err := queryUint(c, "page_size")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	req := dto.ListContactsRequest{
		EventID:             eventID,
		Search:              queryString(c, "search"),
		OverallStatus:       queryString(c, "overall_status"),
		InviteMessageStatus: queryString(c, "invite_message_status"),
		DayStatus:           queryString(c, "day_status"),
		Page:                page,
		PageSize:            pageSize,
	}
	if s := c.Query("day_index"); s != "" {
		day, err := strconv.Atoi(s)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "day_index must be a number", "INVALID_QUERY", nil)
		}
		req.DayIndex = &day
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/events/{id}/contacts", defaultRequestTimeout)
	defer cancel()

	result, err := h.contactFlow.List(ctx, &req)
	if err != nil {
		return h.contactError(c, err, "list contacts")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Contacts retrieved", result)
}

// Messages returns the chat history of a contact, newest first
// @Summary Contact messages
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Contact ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListMessagesResponse} "Messages"
// @Failure 404 {object} dto.APIResponse "Contact not found"
// @Router /api/v1/contacts/{id}/messages [get]
func (h *ContactHandler) Messages(c fiber.Ctx) error {
	contactID, ok := paramUint(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact id", "INVALID_CONTACT_ID", nil)
	}
	page, err := queryUint(c, "page")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}
	pageSize, err := queryUint(c, "page_size")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_QUERY", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/contacts/{id}/messages", defaultRequestTimeout)
	defer cancel()

	result, err := h.contactFlow.Messages(ctx, contactID, page, pageSize)
	if err != nil {
		return h.contactError(c, err, "list messages")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved", result)
}
