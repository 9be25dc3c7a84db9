package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrMissingColumns = errors.New("sheet must have name and number columns")

// ImportedContact is one parsed sheet row. Days holds the raw allocation per
// sub-event index, "" when the column is absent or empty.
type ImportedContact struct {
	Row    int
	Name   string
	Number string
	Days   []string
	Params map[string]string
}

// SkippedRow is a sheet row that could not be turned into a contact
type SkippedRow struct {
	Row    int
	Reason string
}

// ParseContactSheet reads the first sheet of an xlsx workbook. Recognised
// headers (case and space insensitive): name, number, isdcode, day1..dayN.
// Every other non empty header is kept as a param.
func ParseContactSheet(r io.Reader, numDays int) ([]ImportedContact, []SkippedRow, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(xl.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrMissingColumns
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = normalizeKey(h)
	}
	if indexOf(headers, "name") < 0 || indexOf(headers, "number") < 0 {
		return nil, nil, ErrMissingColumns
	}

	var contacts []ImportedContact
	var skipped []SkippedRow
	for ri, row := range rows[1:] {
		rowNum := ri + 2
		if isBlank(row) {
			continue
		}

		c := ImportedContact{Row: rowNum, Days: make([]string, numDays), Params: map[string]string{}}
		isd := ""
		for ci, h := range headers {
			if h == "" || ci >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[ci])
			switch {
			case h == "name":
				c.Name = v
			case h == "number":
				c.Number = v
			case h == "isdcode":
				isd = v
			case strings.HasPrefix(h, "day"):
				if n, err := strconv.Atoi(strings.TrimPrefix(h, "day")); err == nil {
					if n >= 1 && n <= numDays {
						c.Days[n-1] = v
					}
					continue
				}
				c.Params[h] = v
			default:
				c.Params[h] = v
			}
		}

		c.Number = NormalizeNumber(isd + c.Number)
		switch {
		case c.Name == "":
			skipped = append(skipped, SkippedRow{Row: rowNum, Reason: "missing name"})
		case c.Number == "":
			skipped = append(skipped, SkippedRow{Row: rowNum, Reason: "missing number"})
		default:
			contacts = append(contacts, c)
		}
	}

	return contacts, skipped, nil
}

// NormalizeNumber keeps only digits, so "+91 99999-99999" becomes "919999999999"
func NormalizeNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

func indexOf(values []string, v string) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
