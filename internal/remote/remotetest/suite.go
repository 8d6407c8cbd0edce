// Package remotetest holds behaviour checks shared by every remote.Store
// adapter.
package remotetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/remote"
)

// Run exercises s. The store must be empty.
func Run(t *testing.T, s remote.Store) {
	t.Run("Months", func(t *testing.T) { months(t, s) })
	t.Run("Shares", func(t *testing.T) { shares(t, s) })
}

func rentItems() []core.SpendingItem {
	return []core.SpendingItem{
		{ID: "0190a1b2-0001", Name: "Rent", Amount: core.NewMoney(100000), AmountPaid: core.NewMoney(30000), Category: "housing", Note: "landlord"},
		{ID: "0190a1b2-0002", Name: "Power", Amount: core.NewMoney(5050), AmountPaid: core.NewMoney(5050), Paid: true, Category: "utilities"},
	}
}

func months(t *testing.T, s remote.Store) {
	ctx := context.Background()
	k := core.MonthKey{UserID: "suite-ann", Year: 2024, Month: 3}

	_, err := s.GetMonth(ctx, k)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.UpdateMonth(ctx, k, core.MonthDataset{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	// derived fields are recomputed even when the caller sends stale ones
	created, err := s.SetMonth(ctx, k, core.MonthDataset{Items: rentItems(), Status: core.StatusPaid})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, core.StatusPartial, created.Status)

	got, err := s.GetMonth(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, rentItems(), got.Items)
	assert.Equal(t, core.NewMoney(105050), got.Total)
	assert.Equal(t, core.NewMoney(35050), got.Paid)
	assert.Equal(t, core.StatusPartial, got.Status)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	items := rentItems()
	items[0].AmountPaid = items[0].Amount
	items[0].Paid = true
	updated, err := s.UpdateMonth(ctx, k, core.MonthDataset{Items: items})
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	got, err = s.GetMonth(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, got.Status)
	assert.Equal(t, got.Total, got.Paid)

	replaced, err := s.SetMonth(ctx, k, core.MonthDataset{})
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(replaced.CreatedAt))
	got, err = s.GetMonth(ctx, k)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, core.StatusUnpaid, got.Status)

	other := core.MonthKey{UserID: "suite-bob", Year: 2024, Month: 3}
	_, err = s.GetMonth(ctx, other)
	assert.ErrorIs(t, err, core.ErrNotFound)
	next := core.MonthKey{UserID: "suite-ann", Year: 2024, Month: 4}
	_, err = s.GetMonth(ctx, next)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func shares(t *testing.T, s remote.Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	data := core.Recompute(core.MonthDataset{Items: rentItems()})

	newShare := func(user string, created time.Time) core.ShareSnapshot {
		t.Helper()
		out, err := s.CreateShare(ctx, core.ShareSnapshot{
			UserID:    user,
			Year:      2024,
			Month:     3,
			Name:      "March",
			Data:      data,
			CreatedAt: created,
			ExpiresAt: created.Add(30 * 24 * time.Hour),
		})
		require.NoError(t, err)
		return out
	}

	older := newShare("suite-ann", base)
	newer := newShare("suite-ann", base.Add(time.Hour))
	foreign := newShare("suite-bob", base)

	assert.True(t, strings.HasPrefix(older.ID, remote.ShareIDPrefix+"-"))
	assert.NotEqual(t, older.ID, newer.ID)

	got, err := s.GetShare(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "suite-ann", got.UserID)
	assert.Equal(t, "March", got.Name)
	assert.Equal(t, data.Items, got.Data.Items)
	assert.Equal(t, data.Status, got.Data.Status)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, base.Add(30*24*time.Hour).Equal(got.ExpiresAt))

	_, err = s.GetShare(ctx, "shr-missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := s.ListSharesByOwner(ctx, "suite-ann")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	assert.ErrorIs(t, s.DeleteShare(ctx, "suite-ann", foreign.ID), core.ErrNotFound)
	require.NoError(t, s.DeleteShare(ctx, "suite-bob", foreign.ID))
	assert.ErrorIs(t, s.DeleteShare(ctx, "suite-bob", foreign.ID), core.ErrNotFound)

	n, err := s.DeleteExpiredShares(ctx, base.Add(30*24*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = s.GetShare(ctx, older.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetShare(ctx, newer.ID)
	assert.NoError(t, err)
}
