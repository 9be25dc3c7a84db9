package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactDay_AcceptsQuantity(t *testing.T) {
	tests := []struct {
		alloc string
		q     string
		want  bool
	}{
		{alloc: "3", q: "2", want: true},
		{alloc: "3", q: "3", want: true},
		{alloc: "3", q: "4", want: false},
		{alloc: "3", q: "all", want: false},
		{alloc: "all", q: "all", want: true},
		{alloc: "ALL", q: "All", want: true},
		{alloc: "all", q: "12", want: true},
		{alloc: "0", q: "0", want: false},
		{alloc: "", q: "1", want: false},
		{alloc: "2", q: "", want: false},
	}
	for _, tt := range tests {
		d := ContactDay{InvitesAllocated: tt.alloc}
		assert.Equal(t, tt.want, d.AcceptsQuantity(tt.q), "alloc %q quantity %q", tt.alloc, tt.q)
	}
}

func TestContact_NormalizeDays(t *testing.T) {
	c := &Contact{Days: ContactDays{{InvitesAllocated: "0"}, {InvitesAllocated: "2"}}}
	c.NormalizeDays(3)
	require.Len(t, c.Days, 3)
	assert.Equal(t, DayStatusNone, c.Days[0].Status)
	assert.Equal(t, DayStatusPending, c.Days[1].Status)
	assert.Equal(t, "0", c.Days[1].InvitesAccepted)
	assert.False(t, c.Days[2].Eligible())

	// Nothing offered stays unoffered
	empty := &Contact{Days: ContactDays{{InvitesAllocated: "0"}, {InvitesAllocated: ""}}}
	empty.NormalizeDays(2)
	require.Len(t, empty.Days, 2)
	for _, d := range empty.Days {
		assert.False(t, d.Eligible())
		assert.Equal(t, DayStatusNone, d.Status)
	}
	assert.Equal(t, -1, empty.NextPendingDay(0, 2))
}

func TestContact_DeriveOverallStatus(t *testing.T) {
	tests := []struct {
		name      string
		days      ContactDays
		completed bool
		want      OverallStatus
	}{
		{
			name: "any pending day",
			days: ContactDays{{InvitesAllocated: "1", Status: DayStatusAccepted}, {InvitesAllocated: "2", Status: DayStatusPending}},
			want: OverallStatusPending,
		},
		{
			name: "one accepted",
			days: ContactDays{{InvitesAllocated: "1", Status: DayStatusRejected}, {InvitesAllocated: "2", Status: DayStatusAccepted}},
			want: OverallStatusAccepted,
		},
		{
			name: "all rejected",
			days: ContactDays{{InvitesAllocated: "1", Status: DayStatusRejected}, {InvitesAllocated: "0"}},
			want: OverallStatusRejected,
		},
		{
			name: "nothing offered",
			days: ContactDays{{InvitesAllocated: "0"}, {InvitesAllocated: ""}},
			want: OverallStatusPending,
		},
		{
			name:      "nothing offered and completed",
			days:      ContactDays{{InvitesAllocated: "0"}, {InvitesAllocated: ""}},
			completed: true,
			want:      OverallStatusRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Contact{Days: tt.days, HasCompletedForm: tt.completed}
			assert.Equal(t, tt.want, c.DeriveOverallStatus(len(tt.days)))
		})
	}
}

func TestContact_BulkTransitions(t *testing.T) {
	c := &Contact{Days: ContactDays{
		{InvitesAllocated: "2", InvitesAccepted: "0", Status: DayStatusPending},
		{InvitesAllocated: "all", InvitesAccepted: "0", Status: DayStatusPending},
		{InvitesAllocated: "0"},
	}}

	c.AcceptAllDays(3, "10")
	assert.Equal(t, "2", c.Days[0].InvitesAccepted)
	assert.Equal(t, "10", c.Days[1].InvitesAccepted)
	assert.Equal(t, DayStatusNone, c.Days[2].Status)
	assert.Equal(t, 12, c.TotalAccepted(3))

	c.RejectAllDays(3)
	assert.Equal(t, DayStatusRejected, c.Days[0].Status)
	assert.Equal(t, 0, c.TotalAccepted(3))

	c.ResetDays(3)
	assert.Equal(t, -1, c.NextPendingDay(2, 3))
	assert.Equal(t, 1, c.NextPendingDay(1, 3))
	assert.Equal(t, OverallStatusPending, c.DeriveOverallStatus(3))
}

func TestContactDays_ScanValue(t *testing.T) {
	days := ContactDays{{InvitesAllocated: "2", InvitesAccepted: "1", Status: DayStatusAccepted}}
	raw, err := days.Value()
	require.NoError(t, err)

	var scanned ContactDays
	require.NoError(t, scanned.Scan(raw))
	assert.Equal(t, days, scanned)

	var empty ContactDays
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)

	_, err = InviteMessageStatus("Delivered").Value()
	assert.Error(t, err)
}
