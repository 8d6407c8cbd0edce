package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/kv"
	kvmemory "saldo/internal/kv/memory"
	"saldo/internal/monthly"
	"saldo/internal/offline"
	"saldo/internal/remote/memory"
	"saldo/internal/share"
	"saldo/internal/spending"
	"saldo/internal/tabs"
)

type env struct {
	ws     *Workspace
	remote *memory.Store
	kv     kv.Store
	cache  *offline.Cache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{remote: memory.New(), kv: kvmemory.New()}
	e.ws = e.reopen(t)
	return e
}

// reopen builds a workspace over the same device storage, as after a restart.
func (e *env) reopen(t *testing.T) *Workspace {
	t.Helper()
	e.cache = offline.New(e.kv, nil)
	ws, err := New(monthly.Deps{
		Identity: monthly.ContextIdentity,
		Remote:   e.remote,
		Cache:    e.cache,
	}, share.NewService(e.remote, nil))
	require.NoError(t, err)
	return ws
}

func as(user string) context.Context {
	return monthly.WithUser(context.Background(), user)
}

func TestRequiresUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.ws.Load(ctx, 2024, 3)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = e.ws.Shares(ctx)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = e.ws.YearOverview(ctx, 2024)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestMainTabMirrorsReconciledMonth(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")

	d, it, err := e.ws.AddItem(ctx, 2024, 3, core.MainTab, spending.Draft{Name: "Rent", Amount: core.NewMoney(120000), Category: "housing"})
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(120000), d.Total)

	_, err = e.ws.UpdateItem(ctx, 2024, 3, "", it.ID, monthly.FieldPatch{PayPartial: ptr(core.NewMoney(50000))})
	require.NoError(t, err)

	v, err := e.ws.View(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, v.Tabs, 1)
	assert.Equal(t, core.StatusPartial, v.Tabs[0].Dataset.Status)
	assert.Equal(t, v.State.Dataset.Items, v.Tabs[0].Dataset.Items)

	doc, err := e.remote.GetMonth(ctx, core.MonthKey{UserID: "ann", Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(50000), doc.Paid)
}

func TestTabsStayOnDeviceAndSurviveRestart(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")

	v, err := e.ws.AddTab(ctx, 2024, 3, "Trip")
	require.NoError(t, err)
	require.Len(t, v.Tabs, 2)
	trip := v.Tabs[1].Key
	assert.Equal(t, 1, v.Active)

	_, _, err = e.ws.AddItem(ctx, 2024, 3, trip, spending.Draft{Name: "Hotel", Amount: core.NewMoney(30000)})
	require.NoError(t, err)
	_, err = e.ws.SettleAll(ctx, 2024, 3, trip)
	require.NoError(t, err)

	_, err = e.remote.GetMonth(ctx, core.MonthKey{UserID: "ann", Year: 2024, Month: 3})
	assert.ErrorIs(t, err, core.ErrNotFound, "non-main tabs never reach the remote store")

	ws := e.reopen(t)
	v, err = ws.View(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, v.Tabs, 2)
	assert.Equal(t, "Trip", v.Tabs[1].Label)
	assert.Equal(t, core.StatusPaid, v.Tabs[1].Dataset.Status)
	assert.Equal(t, 1, v.Active)
}

func TestMainLabelOption(t *testing.T) {
	remote := memory.New()
	ws, err := New(monthly.Deps{
		Identity: monthly.ContextIdentity,
		Remote:   remote,
		Cache:    offline.New(kvmemory.New(), nil),
	}, share.NewService(remote, nil), WithMainLabel("Household"))
	require.NoError(t, err)

	v, err := ws.View(as("ann"), 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, "Household", v.Tabs[0].Label)
}

func TestTabRules(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")

	_, err := e.ws.DeleteTab(ctx, 2024, 3, core.MainTab)
	assert.ErrorIs(t, err, tabs.ErrMainTabPermanent)

	v, err := e.ws.AddTab(ctx, 2024, 3, "")
	require.NoError(t, err)
	assert.Equal(t, "Tab 2", v.Tabs[1].Label)

	v, err = e.ws.RenameTab(ctx, 2024, 3, v.Tabs[1].Key, " Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", v.Tabs[1].Label)

	v, err = e.ws.DeleteTab(ctx, 2024, 3, v.Tabs[1].Key)
	require.NoError(t, err)
	assert.Len(t, v.Tabs, 1)
	assert.Equal(t, 0, v.Active)

	_, err = e.ws.SelectTab(ctx, 2024, 3, 4)
	assert.ErrorIs(t, err, tabs.ErrTabNotFound)
}

func TestPayAllAcrossItems(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")
	for _, d := range []spending.Draft{
		{Name: "A", Amount: core.NewMoney(1000)},
		{Name: "B", Amount: core.NewMoney(2000)},
	} {
		_, _, err := e.ws.AddItem(ctx, 2024, 3, "", d)
		require.NoError(t, err)
	}

	d, err := e.ws.PayAll(ctx, 2024, 3, "", core.NewMoney(1500))
	require.NoError(t, err)
	assert.True(t, d.Items[0].Paid)
	assert.Equal(t, core.NewMoney(500), d.Items[1].AmountPaid)

	_, err = e.ws.PayAll(ctx, 2024, 3, "", core.NewMoney(1501))
	var amountErr *core.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, core.NewMoney(1500), amountErr.Max)
}

func TestUserSwitchClearsOtherUsersData(t *testing.T) {
	e := newEnv(t)
	ann := as("ann")
	require.NoError(t, e.ws.SetPreference("theme", "dark"))
	_, _, err := e.ws.AddItem(ann, 2024, 3, "", spending.Draft{Name: "Rent", Amount: core.NewMoney(100)})
	require.NoError(t, err)

	_, err = e.ws.View(as("bob"), 2024, 3)
	require.NoError(t, err)

	_, ok, err := e.cache.Get(core.MonthKey{UserID: "ann", Year: 2024, Month: 3})
	require.NoError(t, err)
	assert.False(t, ok)
	theme, ok, err := e.ws.Preference("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", theme)
}

func TestRestartWithSameUserKeepsCache(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")
	e.ws.SetOnline(false)
	_, _, err := e.ws.AddItem(ctx, 2024, 3, "", spending.Draft{Name: "Rent", Amount: core.NewMoney(100)})
	require.NoError(t, err)

	ws := e.reopen(t)
	ws.SetOnline(false)
	v, err := ws.Load(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, v.State.Dataset.Items, 1)
	assert.True(t, v.State.Pending)

	months, err := ws.OfflineMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []offline.YearMonth{{Year: 2024, Month: 3}}, months)
}

func TestLogoutWipesEverything(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")
	require.NoError(t, e.ws.SetPreference("theme", "dark"))
	_, err := e.ws.AddTab(ctx, 2024, 3, "Trip")
	require.NoError(t, err)

	n, err := e.ws.Logout(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	keys, err := e.kv.ListKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestReservedPreference(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, e.ws.SetPreference(lastUserPref, "mallory"), ErrReservedPreference)
}

func TestSharesLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := as("ann")
	_, _, err := e.ws.AddItem(ctx, 2024, 3, "", spending.Draft{Name: "Rent", Amount: core.NewMoney(120000)})
	require.NoError(t, err)

	snap, err := e.ws.Share(ctx, 2024, 3, "", " March ")
	require.NoError(t, err)
	assert.Equal(t, "March", snap.Name)

	// later edits do not reach the frozen copy
	_, _, err = e.ws.AddItem(ctx, 2024, 3, "", spending.Draft{Name: "Gym", Amount: core.NewMoney(3000)})
	require.NoError(t, err)

	got, err := e.ws.PublicShare(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Data.Items, 1)

	list, err := e.ws.Shares(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, e.ws.DeleteShare(as("bob"), snap.ID), core.ErrNotFound)
	require.NoError(t, e.ws.DeleteShare(ctx, snap.ID))
	_, err = e.ws.PublicShare(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestShareUnknownTab(t *testing.T) {
	e := newEnv(t)
	_, err := e.ws.Share(as("ann"), 2024, 3, "tab9", "")
	assert.ErrorIs(t, err, tabs.ErrTabNotFound)
}

func ptr[T any](v T) *T { return &v }
