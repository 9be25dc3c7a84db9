// Package utils provides utility functions for the application.
package utils

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format operators use for event windows and sub-event dates
const DateLayout = "2006-01-02"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// ComposeUTC builds the UTC instant of a calendar date at hour:minute
func ComposeUTC(date string, hour, minute int) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// FormatTimestamp renders t in UTC for file names
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}
