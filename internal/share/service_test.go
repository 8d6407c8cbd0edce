package share

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/remote/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// countingStore records how often GetShare reaches the store.
type countingStore struct {
	*memory.Store
	gets int
	fail error
}

func (c *countingStore) GetShare(ctx context.Context, id string) (core.ShareSnapshot, error) {
	c.gets++
	if c.fail != nil {
		return core.ShareSnapshot{}, c.fail
	}
	return c.Store.GetShare(ctx, id)
}

func newService(t *testing.T, opts ...Option) (*Service, *countingStore, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := &countingStore{Store: memory.New(memory.WithClock(clk.now))}
	opts = append([]Option{WithClock(clk.now)}, opts...)
	return NewService(store, nil, opts...), store, clk
}

func march() core.MonthDataset {
	return core.Recompute(core.MonthDataset{Items: []core.SpendingItem{
		{ID: "1", Name: "Rent", Amount: core.NewMoney(120000), AmountPaid: core.NewMoney(50000), Category: "housing"},
	}})
}

func TestCreateSetsThirtyDayExpiry(t *testing.T) {
	s, _, clk := newService(t)

	snap, err := s.Create(context.Background(), "ann", 2024, 3, march(), "  March  ")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "March", snap.Name)
	assert.Equal(t, clk.t, snap.CreatedAt)
	assert.Equal(t, clk.t.Add(30*24*time.Hour), snap.ExpiresAt)
	assert.Equal(t, core.StatusPartial, snap.Data.Status)
}

func TestCreateCopiesTheDataset(t *testing.T) {
	s, _, _ := newService(t)
	data := march()

	snap, err := s.Create(context.Background(), "ann", 2024, 3, data, "")
	require.NoError(t, err)
	data.Items[0].Name = "changed after sharing"

	got, err := s.Fetch(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent", got.Data.Items[0].Name)
}

func TestCreateTwiceGivesIndependentShares(t *testing.T) {
	s, _, _ := newService(t)
	a, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)
	b, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateValidatesKey(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Create(context.Background(), "", 2024, 3, march(), "")
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = s.Create(context.Background(), "ann", 2024, 13, march(), "")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestFetchExpiredIsAbsent(t *testing.T) {
	s, store, clk := newService(t)
	snap, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)

	clk.t = snap.ExpiresAt.Add(time.Second)
	_, err = s.Fetch(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrExpired)

	// lazy expiry: the record is still there until deleted
	_, err = store.Store.GetShare(context.Background(), snap.ID)
	assert.NoError(t, err)
}

func TestFetchMissing(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Fetch(context.Background(), "shr-nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrExpired)
}

func TestFetchRemoteFailure(t *testing.T) {
	s, store, _ := newService(t)
	store.fail = errors.New("connection reset")
	_, err := s.Fetch(context.Background(), "shr-any")
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
}

func TestFetchUsesCache(t *testing.T) {
	s, store, clk := newService(t, WithCache(8, time.Hour))
	snap, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Fetch(context.Background(), snap.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.gets)

	// a cached share never outlives its expiry
	clk.t = snap.ExpiresAt.Add(time.Second)
	_, err = s.Fetch(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrExpired)
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	s, _, _ := newService(t, WithCache(8, time.Hour))
	snap, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), snap.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(context.Background(), "bob", snap.ID), core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "", snap.ID), core.ErrUnauthenticated)

	require.NoError(t, s.Delete(context.Background(), "ann", snap.ID))
	_, err = s.Fetch(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "delete evicts the cached copy")
}

func TestListForOwnerNewestFirst(t *testing.T) {
	s, _, clk := newService(t)
	first, err := s.Create(context.Background(), "ann", 2024, 2, march(), "Feb")
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Minute)
	second, err := s.Create(context.Background(), "ann", 2024, 3, march(), "Mar")
	require.NoError(t, err)
	_, err = s.Create(context.Background(), "bob", 2024, 3, march(), "")
	require.NoError(t, err)

	list, err := s.ListForOwner(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestSweepExpired(t *testing.T) {
	s, _, clk := newService(t, WithTTL(time.Hour))
	old, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)
	clk.t = clk.t.Add(30 * time.Minute)
	fresh, err := s.Create(context.Background(), "ann", 2024, 3, march(), "")
	require.NoError(t, err)

	clk.t = clk.t.Add(45 * time.Minute)
	n, err := s.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.ListForOwner(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)
	assert.NotEqual(t, old.ID, list[0].ID)
}
