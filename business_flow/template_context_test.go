package businessflow

import (
	"testing"

	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildTemplateData_Precedence(t *testing.T) {
	ev := weddingEvent()
	contact := &models.Contact{
		Name:   "Asha",
		Number: ashaNumber,
		Params: models.StringMap{"venue": "Home", "name": "ignored", "table": "4"},
		Days: models.ContactDays{
			{InvitesAllocated: "1", InvitesAccepted: "0", Status: models.DayStatusPending},
			{InvitesAllocated: "3", InvitesAccepted: "2", Status: models.DayStatusAccepted},
		},
		OverallStatus: models.OverallStatusPending,
	}
	cursor := &models.ChatLog{Extra: models.StringMap{"table": "9"}}

	data := BuildTemplateData(ev, contact, 1, cursor)
	assert.Equal(t, "Asha", data["name"])
	assert.Equal(t, "Temple", data["venue"])
	assert.Equal(t, "Wedding", data["subEvent"])
	assert.Equal(t, 2, data["day"])
	assert.Equal(t, "3", data["invitesAllocated"])
	assert.Equal(t, "9", data["table"])
	assert.Equal(t, "Asha & Ravi", data["eventName"])
	assert.Equal(t, 2, data["totalAccepted"])

	plain := BuildTemplateData(ev, contact, -1, nil)
	assert.Equal(t, "Home", plain["venue"])
	assert.Equal(t, "4", plain["table"])
	assert.NotContains(t, plain, "day")
	assert.NotContains(t, plain, "invitesAllocated")
}

func TestBuildTemplateData_IsFreshPerCall(t *testing.T) {
	ev := weddingEvent()
	contact := &models.Contact{Name: "Asha", Params: models.StringMap{}}

	first := BuildTemplateData(ev, contact, 0, nil)
	first["name"] = "changed"
	second := BuildTemplateData(ev, contact, 0, nil)
	assert.Equal(t, "Asha", second["name"])
	assert.Empty(t, contact.Params)
}

func TestSummary_RendersAnsweredDaysOnly(t *testing.T) {
	ev := &models.Event{
		Name: "Gala",
		SubEvents: models.SubEvents{
			{Name: "Dinner"},
			{Name: "Brunch"},
			{Name: "Picnic"},
		},
	}
	contact := &models.Contact{
		Name: "Asha",
		Days: models.ContactDays{
			{InvitesAllocated: "2", InvitesAccepted: "2", Status: models.DayStatusAccepted},
			{InvitesAllocated: "1", InvitesAccepted: "0", Status: models.DayStatusRejected},
			{InvitesAllocated: "0", Status: models.DayStatusNone},
		},
	}

	data := BuildSummaryData(ev, contact, nil)
	assert.Equal(t, "2", data["accepted1"])
	assert.Equal(t, true, data["rejected2"])
	assert.NotContains(t, data, "accepted3")
	assert.NotContains(t, data, "rejected3")

	out := services.RenderConditional(SummaryTemplate(ev), data)
	assert.Equal(t, "Your RSVP summary for Gala:\nDinner: attending with 2 guest(s)\nBrunch: not attending", out)
}

func TestSummary_AllAllocationAndUnnamedDays(t *testing.T) {
	ev := &models.Event{Name: "Party"}
	contact := &models.Contact{
		Days: models.ContactDays{{InvitesAllocated: "all", InvitesAccepted: "all", Status: models.DayStatusAccepted}},
	}

	out := services.RenderConditional(SummaryTemplate(ev), BuildSummaryData(ev, contact, nil))
	assert.Equal(t, "Your RSVP summary for Party:\nDay 1: attending with all guest(s)", out)
}

func TestSummaryTemplate_PrefersEventTemplate(t *testing.T) {
	ev := &models.Event{SummaryTemplate: "{#if accepted1}See you{/if}"}
	assert.Equal(t, "{#if accepted1}See you{/if}", SummaryTemplate(ev))
}
