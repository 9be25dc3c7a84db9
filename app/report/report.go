// Package report builds and parses the spreadsheets operators exchange with the service
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/xuri/excelize/v2"
)

const (
	ReportSheet = "Report"
	DumpSheet   = "Dump"

	dateLayout = "01/02/2006 03:04 PM"
)

// ContactRow pairs a contact with its latest conversation cursor, which may be nil
type ContactRow struct {
	Contact *models.Contact
	Cursor  *models.ChatLog
}

// BuildContactReport renders the per contact, per day summary workbook
func BuildContactReport(rows []ContactRow, numDays int) ([]byte, error) {
	header := []string{"Name", "Phone Number"}
	for i := 1; i <= numDays; i++ {
		header = append(header, fmt.Sprintf("Day%d", i))
	}
	header = append(header, "Status", "Updated At")

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		c := r.Contact
		record := []string{c.Name, c.Number}
		for i := 0; i < numDays; i++ {
			record = append(record, dayCell(c, i))
		}
		record = append(record, string(c.OverallStatus), formatDate(updatedAt(r)))
		records = append(records, record)
	}

	return writeWorkbook(ReportSheet, header, records)
}

// BuildContactDump renders every contact with its raw allocation and last answer
func BuildContactDump(rows []ContactRow, numDays int) ([]byte, error) {
	header := []string{"Name", "Phone Number", "Invites", "Updated At", "Status", "Last Response", "Guest Count"}

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		c := r.Contact
		invites := make([]string, 0, numDays)
		for i := 0; i < numDays; i++ {
			alloc := "0"
			if i < len(c.Days) && c.Days[i].Eligible() {
				alloc = strings.TrimSpace(c.Days[i].InvitesAllocated)
			}
			invites = append(invites, fmt.Sprintf("Day%d: %s", i+1, alloc))
		}

		lastResponse := c.LastResponse
		if r.Cursor != nil && r.Cursor.FinalResponse != "" {
			lastResponse = r.Cursor.FinalResponse
		}

		records = append(records, []string{
			c.Name,
			c.Number,
			strings.Join(invites, ", "),
			formatDate(updatedAt(r)),
			string(c.OverallStatus),
			lastResponse,
			strconv.Itoa(c.TotalAccepted(numDays)),
		})
	}

	return writeWorkbook(DumpSheet, header, records)
}

func dayCell(c *models.Contact, i int) string {
	if i >= len(c.Days) || !c.Days[i].Eligible() {
		return fmt.Sprintf("Day%d: not invited", i+1)
	}
	d := c.Days[i]
	accepted := strings.TrimSpace(d.InvitesAccepted)
	if accepted == "" {
		accepted = "0"
	}
	return fmt.Sprintf("Day%d: %s/%s", i+1, strings.TrimSpace(d.InvitesAllocated), accepted)
}

func updatedAt(r ContactRow) time.Time {
	t := r.Contact.UpdatedAt
	if r.Cursor != nil && r.Cursor.UpdatedAt.After(t) {
		t = r.Cursor.UpdatedAt
	}
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func writeWorkbook(sheet string, header []string, records [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for ri, record := range records {
		cellRef, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", ri+2, err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
