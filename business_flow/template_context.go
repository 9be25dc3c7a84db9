package businessflow

import (
	"fmt"
	"strings"

	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
)

// Template data is assembled fresh for every reply. Precedence, lowest first:
// contact, day, sub-event, cursor extras.

func contactData(event *models.Event, contact *models.Contact) map[string]any {
	data := map[string]any{}
	if event != nil {
		data["eventName"] = event.Name
	}
	if contact == nil {
		return data
	}
	for k, v := range contact.Params {
		data[k] = v
	}
	data["name"] = contact.Name
	data["number"] = contact.Number
	data["overallStatus"] = contact.OverallStatus.String()
	if event != nil {
		data["totalAccepted"] = contact.TotalAccepted(event.NumDays())
	}
	return data
}

func dayData(contact *models.Contact, i int) map[string]any {
	if contact == nil || i < 0 || i >= len(contact.Days) {
		return nil
	}
	d := contact.Days[i]
	return map[string]any{
		"invitesAllocated": d.InvitesAllocated,
		"invitesAccepted":  d.InvitesAccepted,
		"inviteStatus":     d.Status.String(),
	}
}

func subEventData(event *models.Event, i int) map[string]any {
	if event == nil || i < 0 {
		return nil
	}
	data := map[string]any{"day": i + 1}
	se := event.SubEventAt(i)
	if se == nil {
		return data
	}
	data["subEvent"] = se.Name
	data["subEventName"] = se.Name
	data["subEventText"] = se.Text
	data["venue"] = se.Venue
	data["date"] = se.Date
	return data
}

func cursorData(cursor *models.ChatLog) map[string]any {
	if cursor == nil || len(cursor.Extra) == 0 {
		return nil
	}
	data := make(map[string]any, len(cursor.Extra))
	for k, v := range cursor.Extra {
		data[k] = v
	}
	return data
}

// BuildTemplateData merges the records relevant to a reply about day i. A
// negative i leaves the day and sub-event out.
func BuildTemplateData(event *models.Event, contact *models.Contact, i int, cursor *models.ChatLog) services.TemplateData {
	return services.MergeData(
		contactData(event, contact),
		dayData(contact, i),
		subEventData(event, i),
		cursorData(cursor),
	)
}

// BuildSummaryData extends the contact record with one flag per answered day:
// acceptedN holds the accepted seats as stored ("all" included), rejectedN is
// set for declined days.
// subEventN names the sub-event, N is 1 based.
func BuildSummaryData(event *models.Event, contact *models.Contact, cursor *models.ChatLog) services.TemplateData {
	flags := map[string]any{}
	n := event.NumDays()
	for i := 0; i < n && i < len(contact.Days); i++ {
		key := i + 1
		d := contact.Days[i]
		name := fmt.Sprintf("Day %d", key)
		if se := event.SubEventAt(i); se != nil && se.Name != "" {
			name = se.Name
		}
		flags[fmt.Sprintf("subEvent%d", key)] = name
		flags[fmt.Sprintf("invitesAllocated%d", key)] = d.InvitesAllocated
		flags[fmt.Sprintf("invitesAccepted%d", key)] = d.InvitesAccepted
		switch d.Status {
		case models.DayStatusAccepted:
			seats := strings.TrimSpace(d.InvitesAccepted)
			if seats == "" {
				seats = "0"
			}
			flags[fmt.Sprintf("accepted%d", key)] = seats
		case models.DayStatusRejected:
			if d.Eligible() {
				flags[fmt.Sprintf("rejected%d", key)] = true
			}
		}
	}
	return services.MergeData(contactData(event, contact), flags, cursorData(cursor))
}

// SummaryTemplate returns the event's summary template or a generated one
// with a line per sub-event.
func SummaryTemplate(event *models.Event) string {
	if strings.TrimSpace(event.SummaryTemplate) != "" {
		return event.SummaryTemplate
	}
	var b strings.Builder
	b.WriteString("Your RSVP summary for {eventName}:\n")
	for i := 1; i <= event.NumDays(); i++ {
		fmt.Fprintf(&b, "{#if accepted%d}{subEvent%d}: attending with {accepted%d} guest(s){/if}\n", i, i, i)
		fmt.Fprintf(&b, "{#if rejected%d}{subEvent%d}: not attending{/if}\n", i, i)
	}
	return b.String()
}
