package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memRepo is a tiny in-memory table. Rows are cloned on the way in and out
// so flows cannot mutate stored state without calling Update.
type memRepo[T any, F any] struct {
	mu     sync.Mutex
	rows   []*T
	nextID uint
	id     func(*T) *uint
	match  func(*T, F) bool
	clone  func(*T) *T
}

func newMemRepo[T any, F any](id func(*T) *uint, match func(*T, F) bool, clone func(*T) *T) *memRepo[T, F] {
	if clone == nil {
		clone = func(t *T) *T { c := *t; return &c }
	}
	return &memRepo[T, F]{id: id, match: match, clone: clone}
}

func (r *memRepo[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if *r.id(row) == id {
			return r.clone(row), nil
		}
	}
	return nil, nil
}

func (r *memRepo[T, F]) ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*T
	for _, row := range r.rows {
		if r.match(row, filter) {
			out = append(out, r.clone(row))
		}
	}
	if strings.Contains(strings.ToLower(orderBy), "desc") {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo[T, F]) Save(ctx context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	*r.id(entity) = r.nextID
	r.rows = append(r.rows, r.clone(entity))
	return nil
}

func (r *memRepo[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRepo[T, F]) Count(ctx context.Context, filter F) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *memRepo[T, F]) Exists(ctx context.Context, filter F) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *memRepo[T, F]) Update(ctx context.Context, entity *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if *r.id(row) == *r.id(entity) {
			r.rows[i] = r.clone(entity)
			return nil
		}
	}
	return fmt.Errorf("row %d not found", *r.id(entity))
}

func (r *memRepo[T, F]) find(pred func(*T) bool) *T {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		if pred(r.rows[i]) {
			return r.clone(r.rows[i])
		}
	}
	return nil
}

func (r *memRepo[T, F]) all() []*T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*T, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, r.clone(row))
	}
	return out
}

func eq[V comparable](want *V, got V) bool {
	return want == nil || *want == got
}

type fakeEventRepo struct {
	*memRepo[models.Event, models.EventFilter]
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{newMemRepo(
		func(e *models.Event) *uint { return &e.ID },
		func(e *models.Event, f models.EventFilter) bool {
			return eq(f.ID, e.ID) && eq(f.Name, e.Name) && (f.OpenAt == nil || e.IsOpen(*f.OpenAt))
		},
		func(e *models.Event) *models.Event {
			c := *e
			c.SubEvents = append(models.SubEvents(nil), e.SubEvents...)
			return &c
		},
	)}
}

func (r *fakeEventRepo) ByUUID(ctx context.Context, id string) (*models.Event, error) {
	return r.find(func(e *models.Event) bool { return e.UUID.String() == id }), nil
}

type fakeInstanceRepo struct {
	*memRepo[models.Instance, models.InstanceFilter]
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{newMemRepo(
		func(i *models.Instance) *uint { return &i.ID },
		func(i *models.Instance, f models.InstanceFilter) bool {
			return eq(f.InstanceID, i.InstanceID) && eq(f.EventID, i.EventID) &&
				(f.IsActive == nil || *f.IsActive == utils.IsTrue(i.IsActive))
		},
		nil,
	)}
}

func (r *fakeInstanceRepo) ListActiveByInstanceID(ctx context.Context, instanceID string) ([]*models.Instance, error) {
	return r.ByFilter(ctx, models.InstanceFilter{InstanceID: &instanceID, IsActive: utils.ToPtr(true)}, "id ASC", 0, 0)
}

type fakeContactRepo struct {
	*memRepo[models.Contact, models.ContactFilter]
}

func cloneContact(c *models.Contact) *models.Contact {
	out := *c
	out.Days = append(models.ContactDays(nil), c.Days...)
	out.Params = models.StringMap{}
	for k, v := range c.Params {
		out.Params[k] = v
	}
	return &out
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{newMemRepo(
		func(c *models.Contact) *uint { return &c.ID },
		func(c *models.Contact, f models.ContactFilter) bool {
			if !eq(f.EventID, c.EventID) || !eq(f.Number, c.Number) || !eq(f.IsAdmin, c.IsAdmin) ||
				!eq(f.OverallStatus, c.OverallStatus) || !eq(f.InviteMessageStatus, c.InviteMessageStatus) {
				return false
			}
			if f.Search != nil && !strings.Contains(c.Name+c.Number, *f.Search) {
				return false
			}
			if f.DayIndex != nil {
				if *f.DayIndex >= len(c.Days) || !c.Days[*f.DayIndex].Eligible() {
					return false
				}
				if f.DayStatus != nil && c.Days[*f.DayIndex].Status != *f.DayStatus {
					return false
				}
			}
			return true
		},
		cloneContact,
	)}
}

func (r *fakeContactRepo) ByEventAndNumber(ctx context.Context, eventID uint, number string) (*models.Contact, error) {
	return r.find(func(c *models.Contact) bool { return c.EventID == eventID && c.Number == number }), nil
}

func (r *fakeContactRepo) ByEventAndNameOrNumber(ctx context.Context, eventID uint, name, number string) (*models.Contact, error) {
	return r.find(func(c *models.Contact) bool {
		return c.EventID == eventID && (c.Name == name || c.Number == number)
	}), nil
}

type fakeChatLogRepo struct {
	*memRepo[models.ChatLog, models.ChatLogFilter]
	tick time.Time
}

func newFakeChatLogRepo() *fakeChatLogRepo {
	return &fakeChatLogRepo{
		memRepo: newMemRepo(
			func(l *models.ChatLog) *uint { return &l.ID },
			func(l *models.ChatLog, f models.ChatLogFilter) bool {
				return eq(f.EventID, l.EventID) && eq(f.Number, l.Number) && eq(f.InstanceID, l.InstanceID)
			},
			func(l *models.ChatLog) *models.ChatLog {
				c := *l
				c.Extra = models.StringMap{}
				for k, v := range l.Extra {
					c.Extra[k] = v
				}
				return &c
			},
		),
		tick: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeChatLogRepo) Current(ctx context.Context, number, instanceID string, eventID uint) (*models.ChatLog, error) {
	return r.find(func(l *models.ChatLog) bool {
		return l.Number == number && l.InstanceID == instanceID && l.EventID == eventID
	}), nil
}

func (r *fakeChatLogRepo) LatestByEvent(ctx context.Context, eventID uint) (map[string]*models.ChatLog, error) {
	out := map[string]*models.ChatLog{}
	for _, l := range r.all() {
		if l.EventID != eventID {
			continue
		}
		if prev, ok := out[l.Number]; !ok || l.UpdatedAt.After(prev.UpdatedAt) {
			out[l.Number] = l
		}
	}
	return out, nil
}

// Upsert stamps a strictly increasing UpdatedAt so recency is deterministic
func (r *fakeChatLogRepo) Upsert(ctx context.Context, log *models.ChatLog) error {
	r.mu.Lock()
	r.tick = r.tick.Add(time.Second)
	log.UpdatedAt = r.tick
	r.mu.Unlock()

	existing, _ := r.Current(ctx, log.Number, log.InstanceID, log.EventID)
	if existing == nil {
		return r.Save(ctx, log)
	}
	log.ID = existing.ID
	return r.Update(ctx, log)
}

type fakeMessageRepo struct {
	*memRepo[models.Message, models.MessageFilter]
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{newMemRepo(
		func(m *models.Message) *uint { return &m.ID },
		func(m *models.Message, f models.MessageFilter) bool {
			return (f.EventID == nil || (m.EventID != nil && *m.EventID == *f.EventID)) &&
				eq(f.Number, m.Number) && eq(f.FromMe, m.FromMe) && eq(f.Kind, m.Kind)
		},
		func(m *models.Message) *models.Message {
			c := *m
			c.Statuses = append(models.MessageStatuses(nil), m.Statuses...)
			return &c
		},
	)}
}

func (r *fakeMessageRepo) ByMessageID(ctx context.Context, messageID string) (*models.Message, error) {
	return r.find(func(m *models.Message) bool { return m.MessageID == messageID }), nil
}

func (r *fakeMessageRepo) PreviousInbound(ctx context.Context, eventID uint, number, instanceID string) (*models.Message, error) {
	return r.find(func(m *models.Message) bool {
		return !m.FromMe && m.EventID != nil && *m.EventID == eventID && m.Number == number && m.InstanceID == instanceID
	}), nil
}

type fakeBulkJobRepo struct {
	*memRepo[models.BulkJob, models.BulkJobFilter]
}

func newFakeBulkJobRepo() *fakeBulkJobRepo {
	return &fakeBulkJobRepo{newMemRepo(
		func(j *models.BulkJob) *uint { return &j.ID },
		func(j *models.BulkJob, f models.BulkJobFilter) bool {
			if !eq(f.EventID, j.EventID) {
				return false
			}
			if len(f.Statuses) == 0 {
				return true
			}
			for _, s := range f.Statuses {
				if s == j.Status {
					return true
				}
			}
			return false
		},
		func(j *models.BulkJob) *models.BulkJob {
			c := *j
			c.Targets = append([]string(nil), j.Targets...)
			return &c
		},
	)}
}

func (r *fakeBulkJobRepo) ByUUID(ctx context.Context, id string) (*models.BulkJob, error) {
	return r.find(func(j *models.BulkJob) bool { return j.UUID.String() == id }), nil
}

func (r *fakeBulkJobRepo) ListResumable(ctx context.Context, limit int) ([]*models.BulkJob, error) {
	return r.ByFilter(ctx, models.BulkJobFilter{Statuses: []models.BulkJobStatus{models.BulkJobStatusPending, models.BulkJobStatusRunning}}, "id ASC", limit, 0)
}

type fakeOperatorRepo struct {
	*memRepo[models.Operator, models.OperatorFilter]
}

func newFakeOperatorRepo() *fakeOperatorRepo {
	return &fakeOperatorRepo{newMemRepo(
		func(o *models.Operator) *uint { return &o.ID },
		func(o *models.Operator, f models.OperatorFilter) bool {
			return eq(f.Username, o.Username)
		},
		nil,
	)}
}

func (r *fakeOperatorRepo) ByUsername(ctx context.Context, username string) (*models.Operator, error) {
	return r.find(func(o *models.Operator) bool { return o.Username == username }), nil
}

type noopTx struct{}

func (noopTx) WithinTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeMediaStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *fakeMediaStore) Save(ctx context.Context, subdir, filename string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	p := "/uploads/" + subdir + "/" + filename
	s.files[p] = data
	return p, nil
}

func (s *fakeMediaStore) Open(ctx context.Context, storedPath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[storedPath]
	if !ok {
		return nil, fmt.Errorf("no such file %s", storedPath)
	}
	return data, nil
}

const testInstance = "inst-1"

// harness wires every flow on top of the in-memory repositories
type harness struct {
	events    *fakeEventRepo
	instances *fakeInstanceRepo
	contacts  *fakeContactRepo
	chatLogs  *fakeChatLogRepo
	messages  *fakeMessageRepo
	jobs      *fakeBulkJobRepo
	media     *fakeMediaStore
	gateway   *services.MockChatGateway
	locker    *services.LocalLocker

	dispatcher   Dispatcher
	conversation *ConversationFlowImpl
	admin        *AdminCommandFlowImpl
	delivery     DeliveryStatusFlow
	inbound      InboundFlow
	bulk         *BulkSendFlowImpl

	seq int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		events:    newFakeEventRepo(),
		instances: newFakeInstanceRepo(),
		contacts:  newFakeContactRepo(),
		chatLogs:  newFakeChatLogRepo(),
		messages:  newFakeMessageRepo(),
		jobs:      newFakeBulkJobRepo(),
		media:     &fakeMediaStore{},
		gateway:   services.NewMockChatGateway(),
		locker:    services.NewLocalLocker(),
	}
	logger := zap.NewNop()
	matcher := services.NewKeywordMatcher()

	h.dispatcher = NewDispatcher(h.gateway, h.contacts, h.messages, "https://rsvp.example.com", logger)
	h.conversation = NewConversationFlow(h.dispatcher, h.contacts, h.chatLogs, noopTx{}, matcher, "all", logger).(*ConversationFlowImpl)
	h.admin = NewAdminCommandFlow(h.dispatcher, h.contacts, h.chatLogs, h.media, matcher, "reports", 0, 13, logger).(*AdminCommandFlowImpl)
	h.delivery = NewDeliveryStatusFlow(h.messages, h.contacts, h.locker, logger)
	h.inbound = NewInboundFlow(h.instances, h.events, h.contacts, h.chatLogs, h.messages, h.locker,
		h.dispatcher, h.conversation, h.admin, h.delivery, matcher, 13, logger)
	h.bulk = NewBulkSendFlow(h.events, h.contacts, h.chatLogs, h.jobs, noopTx{}, h.dispatcher, h.locker,
		7500*time.Millisecond, "all", 13, logger).(*BulkSendFlowImpl)
	return h
}

// weddingEvent has two sub-events and is open around the current time
func weddingEvent() *models.Event {
	now := utils.UTCNow()
	return &models.Event{
		UUID:     uuid.New(),
		Name:     "Asha & Ravi",
		StartsAt: now.Add(-24 * time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
		SubEvents: models.SubEvents{
			{Name: "Sangeet", Venue: "Grand Hall", Template: "Will you join the {subEvent} at {venue}? (day {day})"},
			{Name: "Wedding", Venue: "Temple", Template: "Will you join the {subEvent} at {venue}? (day {day})"},
		},
		InvitationText:           "Dear {name}, you are invited to {eventName}",
		AcceptanceKeyword:        "yes",
		AcceptanceAcknowledgment: "Thank you {name}",
		RejectionKeyword:         "no",
		RejectionAcknowledgment:  "Sorry to miss you {name}",
		MoreThanOneInvitesText:   "How many guests for {subEvent}? Up to {invitesAllocated}",
		ClosedInvitationsText:    "Invitations are closed",
		StartingKeyword:          "hello wedding",
		RewriteKeyword:           "rewrite",
		ReportKeyword:            "report",
		StatsKeyword:             "stats",
		InitialCode:              "rsvp",
		InviteCode:               "inv",
		AcceptCode:               "acc",
		RejectCode:               "rej",
		NewContactCode:           "new",
	}
}

func (h *harness) addEvent(t *testing.T, ev *models.Event) *models.Event {
	t.Helper()
	require.NoError(t, h.events.Save(context.Background(), ev))
	require.NoError(t, h.instances.Save(context.Background(), &models.Instance{
		InstanceID: testInstance,
		EventID:    ev.ID,
		IsActive:   utils.ToPtr(true),
	}))
	return ev
}

// addContact stores a contact with the given per-day allocations
func (h *harness) addContact(t *testing.T, ev *models.Event, name, number string, allocations ...string) *models.Contact {
	t.Helper()
	c := &models.Contact{
		EventID:             ev.ID,
		Name:                name,
		Number:              number,
		Params:              models.StringMap{},
		InviteMessageStatus: models.InviteMessagePending,
	}
	for _, a := range allocations {
		c.Days = append(c.Days, models.ContactDay{InvitesAllocated: a})
	}
	c.NormalizeDays(ev.NumDays())
	c.RefreshOverallStatus(ev.NumDays())
	require.NoError(t, h.contacts.Save(context.Background(), c))
	return c
}

func (h *harness) contact(t *testing.T, ev *models.Event, number string) *models.Contact {
	t.Helper()
	c, err := h.contacts.ByEventAndNumber(context.Background(), ev.ID, number)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func (h *harness) cursor(t *testing.T, ev *models.Event, number string) *models.ChatLog {
	t.Helper()
	l, err := h.chatLogs.Current(context.Background(), number, testInstance, ev.ID)
	require.NoError(t, err)
	return l
}

func upsertPayload(t *testing.T, number, id, text string, fromMe bool) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"messages": []map[string]any{{
			"key": map[string]any{
				"remoteJid": number + "@s.whatsapp.net",
				"fromMe":    fromMe,
				"id":        id,
			},
			"message": map[string]any{"conversation": text},
		}},
	})
	require.NoError(t, err)
	return raw
}

// receive delivers text from number through the webhook and returns the
// texts sent in response
func (h *harness) receive(t *testing.T, number, text string) []string {
	t.Helper()
	h.seq++
	return h.webhook(t, dto.WebhookEventMessagesUpsert, upsertPayload(t, number, fmt.Sprintf("in-%d", h.seq), text, false))
}

// operator delivers text typed on the monitored device in the chat with number
func (h *harness) operator(t *testing.T, number, text string) []string {
	t.Helper()
	h.seq++
	return h.webhook(t, dto.WebhookEventMessagesUpsert, upsertPayload(t, number, fmt.Sprintf("op-%d", h.seq), text, true))
}

func (h *harness) webhook(t *testing.T, event string, data json.RawMessage) []string {
	t.Helper()
	before := len(h.gateway.Sent())
	_, err := h.inbound.HandleWebhook(context.Background(), &dto.WebhookRequest{
		InstanceID: testInstance,
		Data:       dto.WebhookEnvelope{Event: event, Data: data},
	})
	require.NoError(t, err)
	return h.gateway.Texts()[before:]
}
