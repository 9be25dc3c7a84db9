package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleContacts() []*models.Contact {
	updated := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	return []*models.Contact{
		{
			Name:          "Asha",
			Number:        "919000000001",
			OverallStatus: models.OverallStatusAccepted,
			UpdatedAt:     updated,
			Days: models.ContactDays{
				{InvitesAllocated: "1", InvitesAccepted: "1", Status: models.DayStatusAccepted},
				{InvitesAllocated: "2", InvitesAccepted: "0", Status: models.DayStatusRejected},
			},
		},
		{
			Name:          "Ravi",
			Number:        "919000000002",
			OverallStatus: models.OverallStatusPending,
			UpdatedAt:     updated,
			LastResponse:  "yes",
			Days: models.ContactDays{
				{InvitesAllocated: "0", InvitesAccepted: "0"},
				{InvitesAllocated: "all", InvitesAccepted: "0", Status: models.DayStatusPending},
			},
		},
	}
}

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()
	rows, err := xl.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestBuildContactReport(t *testing.T) {
	contacts := sampleContacts()
	cursorTime := time.Date(2024, 3, 6, 9, 5, 0, 0, time.UTC)
	rows := []ContactRow{
		{Contact: contacts[0], Cursor: &models.ChatLog{UpdatedAt: cursorTime}},
		{Contact: contacts[1]},
	}

	data, err := BuildContactReport(rows, 2)
	require.NoError(t, err)

	got := readRows(t, data, ReportSheet)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Name", "Phone Number", "Day1", "Day2", "Status", "Updated At"}, got[0])
	assert.Equal(t, []string{"Asha", "919000000001", "Day1: 1/1", "Day2: 2/0", "Accepted", "03/06/2024 09:05 AM"}, got[1])
	assert.Equal(t, []string{"Ravi", "919000000002", "Day1: not invited", "Day2: all/0", "Pending", "03/05/2024 02:30 PM"}, got[2])
}

func TestBuildContactDump(t *testing.T) {
	contacts := sampleContacts()
	rows := []ContactRow{
		{Contact: contacts[0], Cursor: &models.ChatLog{FinalResponse: "2"}},
		{Contact: contacts[1]},
	}

	data, err := BuildContactDump(rows, 2)
	require.NoError(t, err)

	got := readRows(t, data, DumpSheet)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Name", "Phone Number", "Invites", "Updated At", "Status", "Last Response", "Guest Count"}, got[0])
	assert.Equal(t, "Day1: 1, Day2: 2", got[1][2])
	assert.Equal(t, "2", got[1][5])
	assert.Equal(t, "1", got[1][6])
	assert.Equal(t, "Day1: 0, Day2: all", got[2][2])
	assert.Equal(t, "yes", got[2][5])
	assert.Equal(t, "0", got[2][6])
}

func TestComputeAndFormatStats(t *testing.T) {
	stats := ComputeStats(sampleContacts(), 2)

	assert.Equal(t, 2, stats.TotalInvitees)
	assert.Equal(t, 1, stats.Yes)
	assert.Equal(t, 0, stats.No)
	assert.Equal(t, 1, stats.Balance)
	require.Len(t, stats.Days, 2)
	assert.Equal(t, DayStats{Day: 1, Yes: 1, TotalAccepted: 1}, stats.Days[0])
	assert.Equal(t, DayStats{Day: 2, No: 1, Pending: 1}, stats.Days[1])

	text := FormatStats(stats)
	assert.True(t, strings.HasPrefix(text, "*Statistics*\n"))
	assert.Contains(t, text, "› Total nos of Invitees: *2*")
	assert.Contains(t, text, "› Balance: *1*")
	assert.Contains(t, text, "*Day-wise Breakdown*")
	assert.Contains(t, text, "*Day 2*:\n  - Yes: *0*\n  - No: *1*\n  - Pending: *1*\n  - Total Accepted Invites: *0*\n")
}

func buildSheet(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	sheet := xl.GetSheetName(0)
	for ri, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, ri+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, xl.SetSheetRow(sheet, cell, &r))
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseContactSheet(t *testing.T) {
	buf := buildSheet(t, [][]string{
		{"Name", "Number", "ISD Code", "Day1", "Day 2", "Day3", "Param1", "Table"},
		{"Asha", "99999 00001", "91", "1", "all", "5", "bride side", "T4"},
		{"", "", "", "", "", "", "", ""},
		{"", "9999900002", "", "1", "", "", "", ""},
		{"Ravi", "", "", "1", "", "", "", ""},
		{"Meera", "+91 99999-00003", "", "", "2", "", "", ""},
	})

	contacts, skipped, err := ParseContactSheet(buf, 2)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, "Asha", contacts[0].Name)
	assert.Equal(t, "919999900001", contacts[0].Number)
	assert.Equal(t, []string{"1", "all"}, contacts[0].Days)
	assert.Equal(t, "bride side", contacts[0].Params["param1"])
	assert.Equal(t, "T4", contacts[0].Params["table"])
	assert.Equal(t, 2, contacts[0].Row)

	assert.Equal(t, "919999900003", contacts[1].Number)
	assert.Equal(t, []string{"", "2"}, contacts[1].Days)

	require.Len(t, skipped, 2)
	assert.Equal(t, SkippedRow{Row: 4, Reason: "missing name"}, skipped[0])
	assert.Equal(t, SkippedRow{Row: 5, Reason: "missing number"}, skipped[1])
}

func TestParseContactSheet_MissingColumns(t *testing.T) {
	buf := buildSheet(t, [][]string{{"Full Name", "Phone"}, {"a", "1"}})
	_, _, err := ParseContactSheet(buf, 1)
	assert.ErrorIs(t, err, ErrMissingColumns)
}
