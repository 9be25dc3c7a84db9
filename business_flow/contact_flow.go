package businessflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/report"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ContactFlow manages the invitees of an event
type ContactFlow interface {
	Create(ctx context.Context, eventID uint, req *dto.CreateContactRequest, metadata *ClientMetadata) (*dto.ContactDTO, error)
	Import(ctx context.Context, eventID uint, instanceID string, sheet io.Reader, metadata *ClientMetadata) (*dto.ImportContactsResponse, error)
	List(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error)
	Messages(ctx context.Context, contactID uint, page, pageSize uint) (*dto.ListMessagesResponse, error)
}

type ContactFlowImpl struct {
	eventRepo       repository.EventRepository
	contactRepo     repository.ContactRepository
	messageRepo     repository.MessageRepository
	maxNumberLength int
	logger          *zap.Logger
}

func NewContactFlow(
	eventRepo repository.EventRepository,
	contactRepo repository.ContactRepository,
	messageRepo repository.MessageRepository,
	maxNumberLength int,
	logger *zap.Logger,
) ContactFlow {
	return &ContactFlowImpl{
		eventRepo:       eventRepo,
		contactRepo:     contactRepo,
		messageRepo:     messageRepo,
		maxNumberLength: maxNumberLength,
		logger:          logger.Named("contacts"),
	}
}

func (f *ContactFlowImpl) Create(ctx context.Context, eventID uint, req *dto.CreateContactRequest, metadata *ClientMetadata) (*dto.ContactDTO, error) {
	event, err := f.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	number := report.NormalizeNumber(req.ISDCode + req.Number)
	if !validNumber(number, f.maxNumberLength) {
		return nil, NewBusinessError("INVALID_NUMBER", "Number must be digits only and not longer than the allowed length", ErrInvalidNumber)
	}

	contact, matched, err := saveNewContact(ctx, f.contactRepo, event, newContact{
		Name:       strings.TrimSpace(req.Name),
		Number:     number,
		InstanceID: req.InstanceID,
		Invites:    req.Invites,
		Days:       req.Days,
		Params:     req.Params,
		IsAdmin:    req.IsAdmin,
		CreatedBy:  operatorOf(metadata),
	})
	if err != nil {
		return nil, err
	}
	if len(matched) > 0 {
		return nil, NewBusinessError("CONTACT_ALREADY_EXISTS", duplicateContactMessage(matched), ErrContactAlreadyExists)
	}

	resp := ToContactDTO(*contact)
	return &resp, nil
}

func (f *ContactFlowImpl) Import(ctx context.Context, eventID uint, instanceID string, sheet io.Reader, metadata *ClientMetadata) (*dto.ImportContactsResponse, error) {
	event, err := f.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	parsed, skipped, err := report.ParseContactSheet(sheet, event.NumDays())
	if err != nil {
		if errors.Is(err, report.ErrMissingColumns) {
			return nil, NewBusinessError("IMPORT_MISSING_COLUMNS", err.Error(), err)
		}
		return nil, NewBusinessError("IMPORT_PARSE_FAILED", "Failed to read contact sheet", err)
	}

	resp := &dto.ImportContactsResponse{
		Received: len(parsed) + len(skipped),
		Skipped:  make([]dto.ImportSkippedItem, 0, len(skipped)),
	}
	for _, s := range skipped {
		resp.Skipped = append(resp.Skipped, dto.ImportSkippedItem{Row: s.Row, Reason: s.Reason})
	}

	for _, row := range parsed {
		if !validNumber(row.Number, f.maxNumberLength) {
			resp.Skipped = append(resp.Skipped, dto.ImportSkippedItem{Row: row.Row, Reason: ReplyInvalidNumber})
			continue
		}
		_, matched, err := saveNewContact(ctx, f.contactRepo, event, newContact{
			Name:       row.Name,
			Number:     row.Number,
			InstanceID: instanceID,
			Days:       row.Days,
			Params:     row.Params,
			CreatedBy:  operatorOf(metadata),
		})
		if err != nil {
			if IsInvalidAllocation(err) {
				resp.Skipped = append(resp.Skipped, dto.ImportSkippedItem{Row: row.Row, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		if len(matched) > 0 {
			resp.Skipped = append(resp.Skipped, dto.ImportSkippedItem{Row: row.Row, Reason: duplicateContactMessage(matched)})
			continue
		}
		resp.Created++
	}

	f.logger.Info("Contacts imported",
		zap.Uint("event_id", eventID),
		zap.Int("received", resp.Received),
		zap.Int("created", resp.Created),
		zap.Int("skipped", len(resp.Skipped)))
	return resp, nil
}

func (f *ContactFlowImpl) List(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error) {
	if _, err := f.loadEvent(ctx, req.EventID); err != nil {
		return nil, err
	}
	page, size, err := pageBounds(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.ContactFilter{EventID: &req.EventID, Search: req.Search, DayIndex: req.DayIndex}
	if req.OverallStatus != nil {
		s := models.OverallStatus(*req.OverallStatus)
		filter.OverallStatus = &s
	}
	if req.InviteMessageStatus != nil {
		s := models.InviteMessageStatus(*req.InviteMessageStatus)
		filter.InviteMessageStatus = &s
	}
	if req.DayStatus != nil {
		s := models.DayStatus(*req.DayStatus)
		filter.DayStatus = &s
	}

	total, err := f.contactRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to count contacts", err)
	}
	contacts, err := f.contactRepo.ByFilter(ctx, filter, "id ASC", int(size), int((page-1)*size))
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}

	items := make([]dto.ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, ToContactDTO(*c))
	}
	return &dto.ListContactsResponse{Items: items, Total: total, Page: page}, nil
}

func (f *ContactFlowImpl) Messages(ctx context.Context, contactID uint, page, pageSize uint) (*dto.ListMessagesResponse, error) {
	contact, err := f.contactRepo.ByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}
	page, size, err := pageBounds(page, pageSize)
	if err != nil {
		return nil, err
	}

	filter := models.MessageFilter{EventID: &contact.EventID, Number: &contact.Number}
	total, err := f.messageRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to count messages", err)
	}
	messages, err := f.messageRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(size), int((page-1)*size))
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list messages", err)
	}

	items := make([]dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		items = append(items, ToMessageDTO(*m))
	}
	return &dto.ListMessagesResponse{Items: items, Total: total, Page: page}, nil
}

func (f *ContactFlowImpl) loadEvent(ctx context.Context, id uint) (*models.Event, error) {
	event, err := f.eventRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, NewBusinessError("EVENT_NOT_FOUND", "Event not found", ErrEventNotFound)
	}
	return event, nil
}

// newContact is a registration from the API, a sheet row or the chat form
type newContact struct {
	Name       string
	Number     string
	InstanceID string
	// Invites, when set, is the allocation of every day
	Invites   string
	Days      []string
	Params    map[string]string
	IsAdmin   bool
	CreatedBy *uint
}

// saveNewContact stores the contact unless one of the event already has the
// same name or number, in which case the matching field names are returned.
func saveNewContact(ctx context.Context, repo repository.ContactRepository, event *models.Event, req newContact) (*models.Contact, []string, error) {
	existing, err := repo.ByEventAndNameOrNumber(ctx, event.ID, req.Name, req.Number)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		var matched []string
		if existing.Name == req.Name {
			matched = append(matched, "name")
		}
		if existing.Number == req.Number {
			matched = append(matched, "number")
		}
		return nil, matched, nil
	}

	n := event.NumDays()
	days := make(models.ContactDays, n)
	for i := 0; i < n; i++ {
		alloc := strings.TrimSpace(req.Invites)
		if alloc == "" && i < len(req.Days) {
			alloc = strings.TrimSpace(req.Days[i])
		}
		alloc, err := normalizeAllocation(alloc)
		if err != nil {
			return nil, nil, NewBusinessErrorf("INVALID_ALLOCATION", "Invalid invites for day %d", err, i+1)
		}
		days[i] = models.ContactDay{InvitesAllocated: alloc, InvitesAccepted: "0"}
	}

	params := models.StringMap{}
	for k, v := range req.Params {
		params[k] = v
	}
	contact := &models.Contact{
		EventID:             event.ID,
		InstanceID:          req.InstanceID,
		Name:                req.Name,
		Number:              req.Number,
		Params:              params,
		Days:                days,
		InviteMessageStatus: models.InviteMessagePending,
		IsAdmin:             req.IsAdmin,
		CreatedBy:           req.CreatedBy,
	}
	contact.NormalizeDays(n)
	contact.RefreshOverallStatus(n)

	if err := repo.Save(ctx, contact); err != nil {
		return nil, nil, err
	}
	return contact, nil, nil
}

// normalizeAllocation accepts "", a non negative count or "all"
func normalizeAllocation(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if strings.EqualFold(s, models.AllInvites) {
		return models.AllInvites, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return "", ErrInvalidAllocation
	}
	return strconv.Itoa(n), nil
}

func duplicateContactMessage(matched []string) string {
	return "Contact already exists with the same " + strings.Join(matched, " or ") + "."
}

// validNumber accepts digits only, at most maxLen of them
func validNumber(number string, maxLen int) bool {
	if number == "" || (maxLen > 0 && len(number) > maxLen) {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pageBounds(page, pageSize uint) (uint, uint, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		return 0, 0, NewBusinessError("INVALID_PAGE_SIZE", fmt.Sprintf("Page size must be at most %d", maxPageSize), ErrInvalidPageSize)
	}
	return page, pageSize, nil
}
