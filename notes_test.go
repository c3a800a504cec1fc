package bnpl_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/types"
)

func (f *fixture) mint(t *testing.T, ref string, index uint8, amount types.Amount, due time.Duration) *note.Note {
	t.Helper()
	n, err := f.engine.MintNote(context.Background(), bnpl.NewOrderID(ref), index, alice, merchant, amount, f.clock.Now().Add(due))
	require.NoError(t, err)
	return n
}

func TestScenarioD_DuplicateMintFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n := f.mint(t, "Z", 0, 250, 30*24*time.Hour)
	assert.Equal(t, id.NoteFor(bnpl.NewOrderID("Z"), 0), n.ID)
	assert.Equal(t, merchant, n.Beneficiary)
	assert.Equal(t, note.StatusIssued, n.Status)

	_, err := f.engine.MintNote(ctx, bnpl.NewOrderID("Z"), 0, alice, merchant, 250, f.clock.Now())
	assert.ErrorIs(t, err, bnpl.ErrAlreadyExists)

	_, err = f.engine.MintNote(ctx, bnpl.NewOrderID("Z"), 1, alice, merchant, 250, f.clock.Now())
	require.NoError(t, err)
	assert.Len(t, f.events.issued, 2)
}

func TestMintNoteValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.MintNote(ctx, types.OrderID{}, 0, "", merchant, 0, time.Time{})
	var multi bnpl.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 4)
	assert.Empty(t, f.events.issued)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "P", 0, 100, 10*24*time.Hour)

	_, err := f.engine.MarkPaid(ctx, alice, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	paid, err := f.engine.MarkPaid(ctx, merchant, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusPaid, paid.Status)

	_, err = f.engine.MarkPaid(ctx, merchant, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrInvalidTransition)

	require.Len(t, f.events.noteChanges, 1)
	assert.Equal(t, note.StatusIssued, f.events.noteChanges[0].From)
	assert.Equal(t, note.StatusPaid, f.events.noteChanges[0].To)
}

func TestAssignBeneficiary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "A", 0, 100, 10*24*time.Hour)

	_, err := f.engine.AssignBeneficiary(ctx, bob, n.ID, bob)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)

	got, err := f.engine.AssignBeneficiary(ctx, merchant, n.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, bob, got.Beneficiary)
	assert.Equal(t, merchant, got.Merchant)

	// The new beneficiary now holds the right to mark it paid.
	_, err = f.engine.MarkPaid(ctx, merchant, n.ID)
	assert.ErrorIs(t, err, bnpl.ErrUnauthorized)
	_, err = f.engine.MarkPaid(ctx, bob, n.ID)
	require.NoError(t, err)

	_, err = f.engine.AssignBeneficiary(ctx, bob, n.ID, merchant)
	assert.ErrorIs(t, err, bnpl.ErrInvalidTransition)

	require.Len(t, f.events.assigned, 1)
	assert.Equal(t, merchant, f.events.assigned[0].From)
}

func TestAgeNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "G", 0, 100, 10*24*time.Hour)

	got, err := f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusIssued, got.Status)
	assert.Empty(t, f.events.noteChanges)

	f.clock.Advance(8 * 24 * time.Hour)
	got, err = f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusDueUpcoming, got.Status)

	f.clock.Advance(2 * 24 * time.Hour)
	got, err = f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusDueToday, got.Status)

	f.clock.Advance(time.Hour)
	got, err = f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusPastDue, got.Status)

	f.clock.Advance(31 * 24 * time.Hour)
	got, err = f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusDefaulted, got.Status)

	var seen []note.Status
	for _, ev := range f.events.noteChanges {
		seen = append(seen, ev.To)
	}
	assert.Equal(t, []note.Status{note.StatusDueUpcoming, note.StatusDueToday, note.StatusPastDue, note.StatusDefaulted}, seen)
}

func TestAgeNoteSkipsAheadInOneStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "J", 0, 100, 24*time.Hour)

	f.clock.Advance(60 * 24 * time.Hour)
	got, err := f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusDefaulted, got.Status)
	require.Len(t, f.events.noteChanges, 2)
	assert.Equal(t, note.StatusPastDue, f.events.noteChanges[0].To)
}

func TestAgeNoteLeavesPaidAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.mint(t, "K", 0, 100, 24*time.Hour)

	_, err := f.engine.MarkPaid(ctx, merchant, n.ID)
	require.NoError(t, err)

	f.clock.Advance(60 * 24 * time.Hour)
	got, err := f.engine.AgeNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, note.StatusPaid, got.Status)
}

func TestListNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := bnpl.NewOrderID("L")
	for i, amt := range note.Split(1000, 3) {
		_, err := f.engine.MintNote(ctx, order, uint8(i), alice, merchant, amt, f.clock.Now().Add(time.Duration(i+1)*30*24*time.Hour))
		require.NoError(t, err)
	}
	f.mint(t, "other", 0, 50, time.Hour)

	notes, err := f.engine.ListNotes(ctx, note.ListOpts{OrderID: &order})
	require.NoError(t, err)
	require.Len(t, notes, 3)

	var total types.Amount
	for i, n := range notes {
		assert.Equal(t, uint8(i), n.Index)
		total += n.Amount
	}
	assert.Equal(t, types.Amount(1000), total)

	all, err := f.engine.ListNotes(ctx, note.ListOpts{Buyer: alice})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
