package monthly

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	kvmemory "saldo/internal/kv/memory"
	"saldo/internal/offline"
	"saldo/internal/remote/memory"
	"saldo/internal/spending"
)

var errDown = errors.New("connection refused")

// fakeRemote wraps the memory store with call counting and failure
// injection.
type fakeRemote struct {
	*memory.Store

	mu      sync.Mutex
	calls   map[string]int
	failGet func(core.MonthKey) error
	failSet error
	// afterGet runs between reading the document and returning it.
	afterGet func()
	// beforeUpdate runs when UpdateMonth is entered.
	beforeUpdate func()
	block        bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{Store: memory.New(), calls: map[string]int{}}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRemote) GetMonth(ctx context.Context, k core.MonthKey) (core.MonthDataset, error) {
	f.record("get")
	if f.failGet != nil {
		if err := f.failGet(k); err != nil {
			return core.MonthDataset{}, err
		}
	}
	d, err := f.Store.GetMonth(ctx, k)
	if f.afterGet != nil {
		f.afterGet()
	}
	return d, err
}

func (f *fakeRemote) SetMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	f.record("set")
	if f.block {
		<-ctx.Done()
		return core.MonthDataset{}, ctx.Err()
	}
	if f.failSet != nil {
		return core.MonthDataset{}, f.failSet
	}
	return f.Store.SetMonth(ctx, k, d)
}

func (f *fakeRemote) UpdateMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	f.record("update")
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	if f.failSet != nil {
		return core.MonthDataset{}, f.failSet
	}
	return f.Store.UpdateMonth(ctx, k, d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	versions []int64
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.versions)
}

func (n *recordingNotifier) NotifyMonthSynced(_ context.Context, _ core.MonthKey, _ core.MonthDataset, version int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.versions = append(n.versions, version)
	return nil
}

type fixture struct {
	svc    *Service
	remote *fakeRemote
	cache  *offline.Cache
	deps   Deps
	user   *string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	user := "ann"
	f := &fixture{remote: newFakeRemote(), cache: offline.New(kvmemory.New(), nil), user: &user}
	n := 0
	f.deps = Deps{
		Identity: IdentityFunc(func(context.Context) (string, bool) { return *f.user, *f.user != "" }),
		Remote:   f.remote,
		Cache:    f.cache,
		Items: spending.NewStore(core.DefaultCatalog(), spending.WithIDGenerator(func() string {
			n++
			return string(rune('a' + n - 1))
		})),
		Timeout: time.Second,
	}
	svc, err := New(2024, 3, f.deps)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) key() core.MonthKey {
	return core.MonthKey{UserID: *f.user, Year: 2024, Month: 3}
}

func rent() core.MonthDataset {
	return core.MonthDataset{Items: []core.SpendingItem{
		{ID: "r", Name: "Rent", Amount: core.NewMoney(120000), Category: "housing"},
	}}
}

func (f *fixture) add(t *testing.T, name string, cents int64) core.SpendingItem {
	t.Helper()
	var added core.SpendingItem
	_, err := f.svc.Apply(context.Background(), func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		out, it, err := f.svc.Items().Add(items, spending.Draft{Name: name, Amount: core.NewMoney(cents)})
		added = it
		return out, err
	})
	require.NoError(t, err)
	return added
}

func TestNewValidatesMonth(t *testing.T) {
	f := newFixture(t)
	_, err := New(2024, 13, f.deps)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	_, err = New(2024, 1, Deps{})
	assert.Error(t, err)
}

func TestUnauthenticatedIsNoop(t *testing.T) {
	f := newFixture(t)
	*f.user = ""
	ctx := context.Background()

	assert.NoError(t, f.svc.Load(ctx))
	assert.NoError(t, f.svc.SaveFull(ctx, rent()))
	d, err := f.svc.Apply(ctx, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		return append(items, core.SpendingItem{ID: "x"}), nil
	})
	assert.NoError(t, err)
	assert.Empty(t, d.Items)
	assert.NoError(t, f.svc.SyncPending(ctx))

	st := f.svc.State(ctx)
	assert.Empty(t, st.Dataset.Items)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, f.remote.count("get")+f.remote.count("set")+f.remote.count("update"))
}

func TestLoadWritesThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.remote.Store.SetMonth(ctx, f.key(), rent())
	require.NoError(t, err)

	require.NoError(t, f.svc.Load(ctx))

	st := f.svc.State(ctx)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, core.NewMoney(120000), st.Dataset.Total)
	cached, ok, err := f.cache.Get(f.key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st.Dataset.Items, cached.Items)
}

func TestLoadMissingDocumentGivesEmptyMonth(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Load(context.Background()))
	st := f.svc.State(context.Background())
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Empty(t, st.Dataset.Items)
	assert.Equal(t, core.StatusUnpaid, st.Dataset.Status)
}

func TestLoadFailureKeepsData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.remote.Store.SetMonth(ctx, f.key(), rent())
	require.NoError(t, err)
	require.NoError(t, f.svc.Load(ctx))

	f.remote.failGet = func(core.MonthKey) error { return errDown }
	err = f.svc.Load(ctx)
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)

	st := f.svc.State(ctx)
	assert.Len(t, st.Dataset.Items, 1)
	assert.ErrorIs(t, st.Error, core.ErrRemoteUnavailable)
	assert.Equal(t, PhaseReady, st.Phase)
}

func TestOfflineLoadHydratesFromCacheWithoutRemote(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Put(f.key(), core.Recompute(rent())))
	f.svc.SetOnline(false)

	require.NoError(t, f.svc.Load(context.Background()))

	st := f.svc.State(context.Background())
	assert.True(t, st.Offline)
	assert.Len(t, st.Dataset.Items, 1)
	assert.Zero(t, f.remote.count("get"))
}

func TestOfflineSaveIsDurable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := core.MonthDataset{Items: []core.SpendingItem{{ID: "old", Name: "Old", Amount: core.NewMoney(100)}}}
	_, err := f.remote.Store.SetMonth(ctx, f.key(), stale)
	require.NoError(t, err)

	f.svc.SetOnline(false)
	require.NoError(t, f.svc.SaveFull(ctx, rent()))

	assert.Zero(t, f.remote.count("set"))
	cached, ok, err := f.cache.Get(f.key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Rent", cached.Items[0].Name)
	st := f.svc.State(ctx)
	assert.True(t, st.Pending)
	assert.Equal(t, "Rent", st.Dataset.Items[0].Name)

	// reconnecting and loading must not drop the unsent edit
	f.svc.SetOnline(true)
	require.NoError(t, f.svc.Load(ctx))
	st = f.svc.State(ctx)
	assert.Equal(t, "Rent", st.Dataset.Items[0].Name)
	assert.True(t, st.Pending)
	assert.Zero(t, f.remote.count("set"), "no automatic push on reconnect")

	require.NoError(t, f.svc.SyncPending(ctx))
	remoteDoc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, "Rent", remoteDoc.Items[0].Name)
	assert.False(t, f.svc.State(ctx).Pending)
	_, ok, err = f.cache.GetPending(f.key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingMarkerSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.remote.Store.SetMonth(ctx, f.key(), core.MonthDataset{})
	require.NoError(t, err)

	f.svc.SetOnline(false)
	require.NoError(t, f.svc.SaveFull(ctx, rent()))

	restarted, err := New(2024, 3, f.deps)
	require.NoError(t, err)
	require.NoError(t, restarted.Load(ctx))

	st := restarted.State(ctx)
	assert.True(t, st.Pending)
	require.Len(t, st.Dataset.Items, 1)
	assert.Equal(t, "Rent", st.Dataset.Items[0].Name)
}

func TestRemoteWriteFailureKeepsLocalCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.remote.failSet = errDown

	err := f.svc.SaveFull(ctx, rent())
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)

	st := f.svc.State(ctx)
	assert.Len(t, st.Dataset.Items, 1)
	assert.True(t, st.Pending)
	assert.ErrorIs(t, st.Error, core.ErrRemoteUnavailable)
	assert.Contains(t, st.LastError, "connection refused")
	cached, ok, err := f.cache.Get(f.key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Items, 1)

	f.remote.failSet = nil
	require.NoError(t, f.svc.SyncPending(ctx))
	st = f.svc.State(ctx)
	assert.False(t, st.Pending)
	assert.NoError(t, st.Error)
	assert.Empty(t, st.LastError)
}

func TestRemoteTimeoutIsAFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.block = true
	deps := f.deps
	deps.Timeout = 20 * time.Millisecond
	svc, err := New(2024, 3, deps)
	require.NoError(t, err)

	err = svc.SaveFull(context.Background(), rent())
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
	assert.Len(t, svc.State(context.Background()).Dataset.Items, 1)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.remote.Store.SetMonth(ctx, f.key(), rent())
	require.NoError(t, err)
	require.NoError(t, f.cache.Put(f.key(), core.Recompute(rent())))

	fetched := make(chan struct{})
	release := make(chan struct{})
	f.remote.afterGet = func() {
		close(fetched)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- f.svc.Load(ctx) }()
	<-fetched

	f.remote.afterGet = nil
	f.add(t, "Groceries", 4550)
	close(release)
	require.NoError(t, <-done)

	st := f.svc.State(ctx)
	require.Len(t, st.Dataset.Items, 2, "the older remote copy must not replace the newer local one")
	assert.Equal(t, "Groceries", st.Dataset.Items[1].Name)
}

func TestApplyFetchesRemoteWhenMemoryIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.remote.Store.SetMonth(ctx, f.key(), rent())
	require.NoError(t, err)

	f.add(t, "Gym", 3000)

	doc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	assert.Len(t, doc.Items, 2)
	assert.Equal(t, 1, f.remote.count("update"))
}

func TestApplyCreatesMissingDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "Gym", 3000)

	doc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	assert.Len(t, doc.Items, 1)
	assert.Equal(t, 1, f.remote.count("update"))
	assert.Equal(t, 1, f.remote.count("set"))
}

func TestApplyRefusesToStartFromNothingWhenRemoteIsDown(t *testing.T) {
	f := newFixture(t)
	f.remote.failGet = func(core.MonthKey) error { return errDown }

	_, err := f.svc.Apply(context.Background(), func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		return append(items, core.SpendingItem{ID: "x", Name: "x"}), nil
	})
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, ErrNotApplied)
	assert.Zero(t, f.remote.count("set")+f.remote.count("update"))
}

func TestRejectedMutationChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.add(t, "Rent", 120000)
	writes := f.remote.count("set") + f.remote.count("update")
	before := f.svc.State(ctx)

	_, err := f.svc.UpdateFields(ctx, it.ID, FieldPatch{PayPartial: ptr(core.NewMoney(130000))})
	var amountErr *core.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, core.NewMoney(120000), amountErr.Max)

	after := f.svc.State(ctx)
	assert.Equal(t, before.Dataset, after.Dataset)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, writes, f.remote.count("set")+f.remote.count("update"))
}

func TestRentScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	it := f.add(t, "Rent", 120000)
	assert.Equal(t, core.StatusUnpaid, f.svc.State(ctx).Dataset.Status)

	d, err := f.svc.UpdateFields(ctx, it.ID, FieldPatch{PayPartial: ptr(core.NewMoney(50000))})
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(50000), d.Items[0].AmountPaid)
	assert.False(t, d.Items[0].Paid)
	assert.Equal(t, core.StatusPartial, d.Status)

	d, err = f.svc.UpdateFields(ctx, it.ID, FieldPatch{PayPartial: ptr(core.NewMoney(70000))})
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(120000), d.Items[0].AmountPaid)
	assert.True(t, d.Items[0].Paid)
	assert.Equal(t, core.StatusPaid, d.Status)

	_, err = f.svc.UpdateFields(ctx, it.ID, FieldPatch{PayPartial: ptr(core.NewMoney(100))})
	var amountErr *core.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.True(t, amountErr.Max.IsZero())

	doc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, doc.Status)
	assert.Equal(t, doc.Total, doc.Paid)
}

func TestUpdateFieldsPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.add(t, "Power", 5000)

	d, err := f.svc.UpdateFields(ctx, it.ID, FieldPatch{
		Name:     ptr("Electricity"),
		Category: ptr("utilities"),
		Note:     ptr("bimonthly"),
		Paid:     ptr(true),
	})
	require.NoError(t, err)
	got := d.Items[0]
	assert.Equal(t, "Electricity", got.Name)
	assert.Equal(t, "utilities", got.Category)
	assert.Equal(t, "bimonthly", got.Note)
	assert.True(t, got.Paid)
	assert.Equal(t, got.Amount, got.AmountPaid)

	d, err = f.svc.UpdateFields(ctx, it.ID, FieldPatch{Paid: ptr(false)})
	require.NoError(t, err)
	assert.True(t, d.Items[0].AmountPaid.IsZero())

	_, err = f.svc.UpdateFields(ctx, it.ID, FieldPatch{Category: ptr("yachts")})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	d, err = f.svc.UpdateFields(ctx, "missing", FieldPatch{Name: ptr("x")})
	require.NoError(t, err)
	assert.Len(t, d.Items, 1)

	d, err = f.svc.UpdateFields(ctx, it.ID, FieldPatch{Delete: true, Name: ptr("ignored")})
	require.NoError(t, err)
	assert.Empty(t, d.Items)
}

func TestUserSwitchResetsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "Rent", 120000)

	*f.user = "bob"
	st := f.svc.State(ctx)
	assert.Empty(t, st.Dataset.Items)
	assert.False(t, st.Pending)

	require.NoError(t, f.svc.Load(ctx))
	assert.Empty(t, f.svc.State(ctx).Dataset.Items)
}

func TestNotifierIsCalledAfterSync(t *testing.T) {
	f := newFixture(t)
	n := &recordingNotifier{}
	deps := f.deps
	deps.Notifier = n
	svc, err := New(2024, 3, deps)
	require.NoError(t, err)

	require.NoError(t, svc.SaveFull(context.Background(), rent()))
	assert.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)

	f.remote.failSet = errDown
	_ = svc.SaveFull(context.Background(), rent())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, n.count())
}

// blockingNotifier holds every notification until release is closed.
type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) NotifyMonthSynced(ctx context.Context, _ core.MonthKey, _ core.MonthDataset, _ int64) error {
	select {
	case <-n.release:
	case <-ctx.Done():
	}
	return nil
}

func TestSlowNotifierDoesNotDelaySave(t *testing.T) {
	f := newFixture(t)
	n := &blockingNotifier{release: make(chan struct{})}
	defer close(n.release)
	deps := f.deps
	deps.Notifier = n
	svc, err := New(2024, 3, deps)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.SaveFull(context.Background(), rent()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("save waited for the notification")
	}
}

func TestSaveFullNormalizesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.SaveFull(ctx, core.MonthDataset{Items: []core.SpendingItem{
		{ID: "r", Name: "Gym", Amount: core.NewMoney(1000), AmountPaid: core.NewMoney(5000)},
		{ID: "r", Name: "Bus", Amount: core.NewMoney(200), Paid: true},
		{ID: "s", Name: "Fees", Amount: core.NewMoney(300), AmountPaid: core.NewMoney(-100)},
	}})
	require.NoError(t, err)

	doc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	require.Len(t, doc.Items, 3)
	assert.Equal(t, core.NewMoney(1500), doc.Total)
	assert.Equal(t, core.NewMoney(1200), doc.Paid)
	assert.Equal(t, core.StatusPartial, doc.Status)
	assert.NotEqual(t, doc.Items[0].ID, doc.Items[1].ID)
	for _, it := range doc.Items {
		assert.GreaterOrEqual(t, it.AmountPaid.Cents, int64(0))
		assert.LessOrEqual(t, it.AmountPaid.Cents, it.Amount.Cents)
		assert.Equal(t, it.Paid, it.AmountPaid == it.Amount && !it.Amount.IsZero(), it.Name)
	}
}

func TestSaveFullRejectsInvalidItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SaveFull(ctx, rent()))
	before := f.svc.State(ctx)
	writes := f.remote.count("set")

	for _, it := range []core.SpendingItem{
		{ID: "x", Name: "", Amount: core.NewMoney(100)},
		{ID: "x", Name: "Refund", Amount: core.NewMoney(-300)},
		{ID: "x", Name: "Boat", Category: "yachts"},
	} {
		err := f.svc.SaveFull(ctx, core.MonthDataset{Items: []core.SpendingItem{it}})
		assert.True(t, core.IsValidation(err), "%v", err)
	}

	after := f.svc.State(ctx)
	assert.Equal(t, before.Dataset, after.Dataset)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, writes, f.remote.count("set"))
	cached, _, err := f.cache.Get(f.key())
	require.NoError(t, err)
	assert.Equal(t, "Rent", cached.Items[0].Name)
}

func TestOverlappingWritesKeepNewestRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "Rent", 120000)

	var updates atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	f.remote.beforeUpdate = func() {
		if updates.Add(1) == 1 {
			close(entered)
			<-release
		}
	}

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Apply(ctx, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
			out, _, err := f.svc.Items().Add(items, spending.Draft{Name: "Gym", Amount: core.NewMoney(3000)})
			return out, err
		})
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := f.svc.Apply(ctx, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
			out, _, err := f.svc.Items().Add(items, spending.Draft{Name: "Bus", Amount: core.NewMoney(200)})
			return out, err
		})
		second <- err
	}()
	assert.Eventually(t, func() bool { return len(f.svc.State(ctx).Dataset.Items) == 3 },
		time.Second, 5*time.Millisecond)
	assert.True(t, f.svc.State(ctx).Pending)

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	doc, err := f.remote.Store.GetMonth(ctx, f.key())
	require.NoError(t, err)
	require.Len(t, doc.Items, 3, "the older write must not land last")
	assert.Equal(t, "Bus", doc.Items[2].Name)
	assert.False(t, f.svc.State(ctx).Pending)

	require.NoError(t, f.svc.Load(ctx))
	st := f.svc.State(ctx)
	require.Len(t, st.Dataset.Items, 3)
	cached, ok, err := f.cache.Get(f.key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Items, 3)
}

func TestWriteAlreadySentIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SaveFull(ctx, rent()))
	sets := f.remote.count("set")

	// nothing newer than the acknowledged version
	require.NoError(t, f.svc.push(ctx, f.key(), true))
	assert.Equal(t, sets, f.remote.count("set"))
}

func TestYearOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k := func(m int) core.MonthKey { return core.MonthKey{UserID: "ann", Year: 2024, Month: m} }
	_, err := f.remote.Store.SetMonth(ctx, k(1), rent())
	require.NoError(t, err)
	_, err = f.remote.Store.SetMonth(ctx, k(3), core.MonthDataset{})
	require.NoError(t, err)
	require.NoError(t, f.cache.Put(k(5), core.Recompute(rent())))

	got, err := YearOverview(ctx, f.deps, 2024, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Month)
	assert.Equal(t, core.NewMoney(120000), got[0].Total)
	assert.Equal(t, 3, got[1].Month)

	f.remote.failGet = func(key core.MonthKey) error {
		if key.Month == 5 {
			return errDown
		}
		return nil
	}
	got, err = YearOverview(ctx, f.deps, 2024, true)
	assert.ErrorIs(t, err, core.ErrRemoteUnavailable)
	require.Len(t, got, 3)
	assert.Equal(t, 5, got[2].Month)

	got, err = YearOverview(ctx, f.deps, 2024, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].Month)
}

func ptr[T any](v T) *T { return &v }
