package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func eventRequest() *dto.UpsertEventRequest {
	return &dto.UpsertEventRequest{
		Name:  "  Asha & Ravi ",
		Start: dto.EventWindowDTO{Date: "2024-11-20", Hour: 9, Minute: 30},
		End:   dto.EventWindowDTO{Date: "2024-11-22", Hour: 18},
		SubEvents: []dto.SubEventDTO{
			{Name: " Sangeet ", Venue: "Grand Hall"},
			{Name: "Wedding", Venue: "Temple", Template: "Join us at {venue}"},
		},
		InvitationText:           "Dear {name}",
		AcceptanceKeyword:        " yes ",
		AcceptanceAcknowledgment: "Thanks",
		RejectionKeyword:         "no",
		RejectionAcknowledgment:  "Sorry",
		StartingKeyword:          "hello wedding",
		InitialCode:              "RSVP",
	}
}

func TestEventFlow_Create(t *testing.T) {
	h := newHarness(t)
	flow := NewEventFlow(h.events, h.instances, zap.NewNop())

	resp, err := flow.Create(context.Background(), eventRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Asha & Ravi", resp.Name)
	assert.Equal(t, "yes", resp.AcceptanceKeyword)
	assert.NotEmpty(t, resp.UUID)
	assert.False(t, resp.IsOpen)
	require.Len(t, resp.SubEvents, 2)
	assert.Equal(t, "Sangeet", resp.SubEvents[0].Name)

	stored, err := h.events.ByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, time.Date(2024, 11, 20, 9, 30, 0, 0, time.UTC), stored.StartsAt)
	assert.Equal(t, time.Date(2024, 11, 22, 18, 0, 0, 0, time.UTC), stored.EndsAt)
	assert.Equal(t, 2, stored.NumDays())
	assert.Equal(t, "Join us at {venue}", stored.SubEventTemplate(1))
	assert.Equal(t, "rsvp/acc", stored.ProtocolCode("ACC"))
}

func TestEventFlow_CreateRejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.UpsertEventRequest)
		check  func(error) bool
	}{
		{name: "blank name", mutate: func(r *dto.UpsertEventRequest) { r.Name = "  " }, check: IsEventNameRequired},
		{name: "bad start date", mutate: func(r *dto.UpsertEventRequest) { r.Start.Date = "20/11/2024" }, check: IsInvalidEventWindow},
		{name: "ends before start", mutate: func(r *dto.UpsertEventRequest) { r.End = dto.EventWindowDTO{Date: "2024-11-19"} }, check: IsInvalidEventWindow},
		{name: "empty window", mutate: func(r *dto.UpsertEventRequest) { r.End = r.Start }, check: IsInvalidEventWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := eventRequest()
			tt.mutate(req)
			_, err := NewEventFlow(h.events, h.instances, zap.NewNop()).Create(context.Background(), req, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestEventFlow_UpdateAndList(t *testing.T) {
	h := newHarness(t)
	flow := NewEventFlow(h.events, h.instances, zap.NewNop())

	created, err := flow.Create(context.Background(), eventRequest(), nil)
	require.NoError(t, err)

	req := eventRequest()
	req.Name = "Reception"
	now := utils.UTCNow()
	req.Start = dto.EventWindowDTO{Date: now.AddDate(0, 0, -1).Format("2006-01-02")}
	req.End = dto.EventWindowDTO{Date: now.AddDate(0, 0, 2).Format("2006-01-02")}
	updated, err := flow.Update(context.Background(), created.ID, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "Reception", updated.Name)
	assert.Equal(t, created.UUID, updated.UUID)
	assert.True(t, updated.IsOpen)

	_, err = flow.Create(context.Background(), eventRequest(), nil)
	require.NoError(t, err)

	all, err := flow.List(context.Background(), &dto.ListEventsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	open, err := flow.List(context.Background(), &dto.ListEventsRequest{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open.Items, 1)
	assert.Equal(t, "Reception", open.Items[0].Name)

	_, err = flow.Update(context.Background(), 99, req, nil)
	assert.True(t, IsEventNotFound(err))
	_, err = flow.Get(context.Background(), 99)
	assert.True(t, IsEventNotFound(err))
}

func TestEventFlow_BindInstance(t *testing.T) {
	h := newHarness(t)
	flow := NewEventFlow(h.events, h.instances, zap.NewNop())
	ev, err := flow.Create(context.Background(), eventRequest(), nil)
	require.NoError(t, err)

	inst, err := flow.BindInstance(context.Background(), ev.ID, &dto.BindInstanceRequest{InstanceID: " inst-9 ", Label: "Bride phone"})
	require.NoError(t, err)
	assert.Equal(t, "inst-9", inst.InstanceID)
	assert.True(t, inst.IsActive)

	_, err = flow.BindInstance(context.Background(), ev.ID, &dto.BindInstanceRequest{InstanceID: "inst-9"})
	assert.True(t, IsInstanceBound(err))

	// A deactivated binding is reactivated instead of duplicated
	stored, err := h.instances.ByID(context.Background(), inst.ID)
	require.NoError(t, err)
	stored.IsActive = utils.ToPtr(false)
	require.NoError(t, h.instances.Update(context.Background(), stored))

	again, err := flow.BindInstance(context.Background(), ev.ID, &dto.BindInstanceRequest{InstanceID: "inst-9", Label: "Groom phone"})
	require.NoError(t, err)
	assert.Equal(t, inst.ID, again.ID)
	assert.True(t, again.IsActive)
	assert.Equal(t, "Groom phone", again.Label)

	list, err := flow.ListInstances(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = flow.BindInstance(context.Background(), 99, &dto.BindInstanceRequest{InstanceID: "inst-9"})
	assert.True(t, IsEventNotFound(err))
}
