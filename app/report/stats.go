package report

import (
	"fmt"
	"strings"

	"github.com/amirphl/rsvp-relay/models"
)

// DayStats counts answers for one sub-event
type DayStats struct {
	Day           int `json:"day"`
	Yes           int `json:"yes"`
	No            int `json:"no"`
	Pending       int `json:"pending"`
	TotalAccepted int `json:"total_accepted"`
}

// EventStats is the dashboard and chat summary of an event
type EventStats struct {
	TotalInvitees int        `json:"total_invitees"`
	Yes           int        `json:"yes"`
	No            int        `json:"no"`
	Balance       int        `json:"balance"`
	Days          []DayStats `json:"days"`
}

// ComputeStats aggregates contacts over the first numDays days
func ComputeStats(contacts []*models.Contact, numDays int) EventStats {
	stats := EventStats{Days: make([]DayStats, numDays)}
	for i := range stats.Days {
		stats.Days[i].Day = i + 1
	}

	for _, c := range contacts {
		stats.TotalInvitees++
		switch c.OverallStatus {
		case models.OverallStatusAccepted:
			stats.Yes++
		case models.OverallStatusRejected:
			stats.No++
		default:
			stats.Balance++
		}

		for i := 0; i < numDays && i < len(c.Days); i++ {
			d := c.Days[i]
			switch d.Status {
			case models.DayStatusAccepted:
				stats.Days[i].Yes++
				stats.Days[i].TotalAccepted += d.AcceptedCount()
			case models.DayStatusRejected:
				stats.Days[i].No++
			case models.DayStatusPending:
				if d.Eligible() {
					stats.Days[i].Pending++
				}
			}
		}
	}
	return stats
}

// FormatStats renders stats as the chat reply admins receive
func FormatStats(stats EventStats) string {
	var b strings.Builder
	b.WriteString("*Statistics*\n")
	fmt.Fprintf(&b, "\n› Total nos of Invitees: *%d*", stats.TotalInvitees)
	fmt.Fprintf(&b, "\n› Yes: *%d*", stats.Yes)
	fmt.Fprintf(&b, "\n› No: *%d*", stats.No)
	fmt.Fprintf(&b, "\n› Balance: *%d*", stats.Balance)

	b.WriteString("\n\n*Day-wise Breakdown*\n")
	for _, d := range stats.Days {
		fmt.Fprintf(&b, "\n*Day %d*:\n", d.Day)
		fmt.Fprintf(&b, "  - Yes: *%d*\n", d.Yes)
		fmt.Fprintf(&b, "  - No: *%d*\n", d.No)
		fmt.Fprintf(&b, "  - Pending: *%d*\n", d.Pending)
		fmt.Fprintf(&b, "  - Total Accepted Invites: *%d*\n", d.TotalAccepted)
	}
	return b.String()
}
