package note_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
)

func TestNewNote(t *testing.T) {
	order := types.NewOrderID("order-1")
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	n := note.New(order, 2, "buyer", "merchant", 250, due, due.AddDate(0, -1, 0))

	assert.Equal(t, types.Principal("merchant"), n.Beneficiary)
	assert.Equal(t, note.StatusIssued, n.Status)
	assert.Equal(t, uint8(2), n.Index)
}

func TestStatusOrdinals(t *testing.T) {
	assert.Equal(t, note.Status(0), note.StatusIssued)
	assert.Equal(t, note.Status(4), note.StatusPaid)
	assert.Equal(t, note.Status(7), note.StatusSettled)
}

func TestStatusTextRoundTrip(t *testing.T) {
	for s := note.StatusIssued; s <= note.StatusSettled; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back note.Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	var bad note.Status
	assert.Error(t, bad.UnmarshalText([]byte("refunded")))
}

func TestTransitionsAreForwardOnly(t *testing.T) {
	tests := []struct {
		from, to note.Status
		allowed  bool
	}{
		{note.StatusIssued, note.StatusAdvanced, true},
		{note.StatusIssued, note.StatusDefaulted, false},
		{note.StatusAdvanced, note.StatusIssued, false},
		{note.StatusDueToday, note.StatusDueUpcoming, false},
		{note.StatusPastDue, note.StatusDefaulted, true},
		{note.StatusPastDue, note.StatusAdvanced, false},
		{note.StatusDefaulted, note.StatusSettled, true},
		{note.StatusDefaulted, note.StatusPaid, false},
		{note.StatusPaid, note.StatusSettled, false},
		{note.StatusSettled, note.StatusPaid, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, note.StatusPaid.IsTerminal())
	assert.True(t, note.StatusSettled.IsTerminal())
	assert.False(t, note.StatusDefaulted.IsTerminal())
}

func TestNextAged(t *testing.T) {
	due := time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)
	grace := 30 * 24 * time.Hour

	tests := []struct {
		name   string
		status note.Status
		now    time.Time
		want   note.Status
		moved  bool
	}{
		{"far from due", note.StatusIssued, due.AddDate(0, 0, -10), note.StatusIssued, false},
		{"within window", note.StatusIssued, due.AddDate(0, 0, -2), note.StatusDueUpcoming, true},
		{"advanced within window", note.StatusAdvanced, due.AddDate(0, 0, -1), note.StatusDueUpcoming, true},
		{"due today", note.StatusDueUpcoming, due.Add(-6 * time.Hour), note.StatusDueToday, true},
		{"past due", note.StatusDueToday, due.Add(time.Minute), note.StatusPastDue, true},
		{"past due stays within grace", note.StatusPastDue, due.AddDate(0, 0, 5), note.StatusPastDue, false},
		{"defaults after grace", note.StatusPastDue, due.AddDate(0, 0, 31), note.StatusDefaulted, true},
		{"issued goes to past due before default", note.StatusIssued, due.AddDate(0, 0, 31), note.StatusPastDue, true},
		{"paid never ages", note.StatusPaid, due.AddDate(1, 0, 0), note.StatusPaid, false},
		{"settled never ages", note.StatusSettled, due.AddDate(1, 0, 0), note.StatusSettled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &note.Note{DueAt: due, Status: tt.status}
			got, moved := n.NextAged(tt.now, grace)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.moved, moved)
		})
	}
}

func TestSplit(t *testing.T) {
	parts := note.Split(1000, 3)
	require.Len(t, parts, 3)
	assert.Equal(t, []types.Amount{333, 333, 334}, parts)

	var sum types.Amount
	for _, p := range note.Split(400, 4) {
		sum += p
	}
	assert.Equal(t, types.Amount(400), sum)
	assert.Nil(t, note.Split(100, 0))
}

func TestListOptsMatches(t *testing.T) {
	order := types.NewOrderID("o")
	n := &note.Note{OrderID: order, Buyer: "b", Beneficiary: "m", Status: note.StatusPastDue}

	assert.True(t, note.ListOpts{}.Matches(n))
	assert.True(t, note.ListOpts{OrderID: &order, Statuses: []note.Status{note.StatusPastDue}}.Matches(n))
	assert.False(t, note.ListOpts{Beneficiary: "pool"}.Matches(n))
	assert.False(t, note.ListOpts{Statuses: []note.Status{note.StatusPaid}}.Matches(n))
}
