package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/note"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
	"github.com/xraph/bnpl/vault"
)

var _ store.Store = (*memory.Store)(nil)

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func TestAccountCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := credit.NewAccount("alice", now)
	require.NoError(t, s.CreateAccount(ctx, a))
	assert.ErrorIs(t, s.CreateAccount(ctx, a), bnpl.ErrAlreadyExists)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Owner, got.Owner)

	got.Used = 500
	fresh, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(0), fresh.Used, "returned records must not alias stored state")

	require.NoError(t, s.UpdateAccount(ctx, got))
	fresh, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(500), fresh.Used)

	_, err = s.GetAccount(ctx, id.AccountFor("nobody"))
	assert.ErrorIs(t, err, bnpl.ErrAccountNotFound)
	assert.True(t, bnpl.IsNotFound(err))
}

func TestListAccountsFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for _, owner := range []types.Principal{"carol", "alice", "bob"} {
		a := credit.NewAccount(owner, now)
		if owner != "bob" {
			a.Used = 10
		}
		require.NoError(t, s.CreateAccount(ctx, a))
	}

	all, err := s.ListAccounts(ctx, credit.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, types.Principal("alice"), all[0].Owner)

	outstanding, err := s.ListAccounts(ctx, credit.ListOpts{OnlyOutstanding: true})
	require.NoError(t, err)
	assert.Len(t, outstanding, 2)

	paged, err := s.ListAccounts(ctx, credit.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, types.Principal("bob"), paged[0].Owner)
}

func TestNoteDuplicateKey(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	order := types.NewOrderID("z")

	require.NoError(t, s.CreateNote(ctx, note.New(order, 0, "b", "m", 10, now, now)))
	assert.ErrorIs(t, s.CreateNote(ctx, note.New(order, 0, "b", "m", 99, now, now)), bnpl.ErrAlreadyExists)
	require.NoError(t, s.CreateNote(ctx, note.New(order, 1, "b", "m", 10, now.Add(time.Hour), now)))

	notes, err := s.ListNotes(ctx, note.ListOpts{OrderID: &order})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(0), notes[0].Index)
}

func TestPositionsByOwner(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.CreatePosition(ctx, vault.NewPosition("alice", "sol", 5000, 1000, now)))
	require.NoError(t, s.CreatePosition(ctx, vault.NewPosition("alice", "eth", 5000, 1000, now)))
	require.NoError(t, s.CreatePosition(ctx, vault.NewPosition("bob", "sol", 5000, 1000, now)))

	ps, err := s.ListPositions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "eth", ps[0].Asset)
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), bnpl.ErrStoreClosed)
	assert.ErrorIs(t, s.CreateAccount(ctx, credit.NewAccount("alice", now)), bnpl.ErrStoreClosed)
}
