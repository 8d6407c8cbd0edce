// Package app is the surface the UI layer talks to. A Workspace represents
// one device: one signed-in user at a time, the month services and tab sets
// that user has opened, the offline cache and the share builder.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/monthly"
	"saldo/internal/offline"
	"saldo/internal/share"
	"saldo/internal/spending"
	"saldo/internal/tabs"
)

// lastUserPref remembers whose data the offline cache holds across restarts.
const lastUserPref = "last_user"

// ErrReservedPreference rejects writes to preferences the workspace owns.
var ErrReservedPreference = errors.New("reserved preference")

// View is what the UI renders for one month.
type View struct {
	Year   int           `json:"year"`
	Month  int           `json:"month"`
	State  monthly.State `json:"state"`
	Tabs   []tabs.Tab    `json:"tabs"`
	Active int           `json:"active"`
}

type month struct {
	svc  *monthly.Service
	tabs *tabs.Manager
}

type Workspace struct {
	deps      monthly.Deps
	cache     *offline.Cache
	shares    *share.Service
	mainLabel string
	logger    *slog.Logger

	mu     sync.Mutex
	user   string
	online bool
	months map[[2]int]*month
}

type Option func(*Workspace)

// WithMainLabel sets the label of the main tab.
func WithMainLabel(label string) Option {
	return func(w *Workspace) { w.mainLabel = label }
}

// New returns a workspace. deps.Cache is the device's offline cache.
func New(deps monthly.Deps, shares *share.Service, opts ...Option) (*Workspace, error) {
	if deps.Cache == nil || deps.Remote == nil || deps.Identity == nil {
		return nil, errors.New("app: identity, remote store and offline cache are required")
	}
	if shares == nil {
		return nil, errors.New("app: share service is required")
	}
	if deps.Items == nil {
		deps.Items = spending.NewStore(core.DefaultCatalog())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	w := &Workspace{
		deps:      deps,
		cache:     deps.Cache,
		shares:    shares,
		mainLabel: "Main",
		logger:    deps.Logger,
		online:    true,
		months:    make(map[[2]int]*month),
	}
	for _, opt := range opts {
		opt(w)
	}
	if last, ok, err := w.cache.Preference(lastUserPref); err == nil && ok {
		w.user = last
	}
	return w, nil
}

// Catalog returns the category table.
func (w *Workspace) Catalog() core.Catalog {
	return w.deps.Items.Catalog()
}

// Online reports the network mode.
func (w *Workspace) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// SetOnline flips the network mode of every open month.
func (w *Workspace) SetOnline(online bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.online = online
	for _, m := range w.months {
		m.svc.SetOnline(online)
	}
}

// Logout wipes the offline cache and forgets every open month.
func (w *Workspace) Logout(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.cache.ClearAll()
	w.user = ""
	w.months = make(map[[2]int]*month)
	w.logger.InfoContext(ctx, "Signed out, offline cache wiped", "removed", n)
	return n, err
}

// userLocked resolves the signed-in user. A user different from the one the
// device last held clears the other users' offline data first.
func (w *Workspace) userLocked(ctx context.Context) (string, error) {
	user, ok := w.deps.Identity.UserID(ctx)
	if !ok || user == "" {
		return "", core.ErrUnauthenticated
	}
	if user == w.user {
		return user, nil
	}
	n, err := w.cache.ClearForOtherUsers(user)
	if err != nil {
		return "", fmt.Errorf("clear offline cache: %w", err)
	}
	if err := w.cache.SetPreference(lastUserPref, user); err != nil {
		w.logger.WarnContext(ctx, "Remembering signed-in user failed", log.FieldError, err)
	}
	w.logger.InfoContext(ctx, "User switched, offline data of other users removed",
		log.FieldUserID, user, "removed", n)
	w.user = user
	w.months = make(map[[2]int]*month)
	return user, nil
}

// open returns the month for the signed-in user, creating the service and
// restoring the device-local tabs on first use.
func (w *Workspace) open(ctx context.Context, year, mon int) (*month, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	user, err := w.userLocked(ctx)
	if err != nil {
		return nil, "", err
	}
	if m, ok := w.months[[2]int{year, mon}]; ok {
		return m, user, nil
	}

	svc, err := monthly.New(year, mon, w.deps)
	if err != nil {
		return nil, "", err
	}
	svc.SetOnline(w.online)

	k := core.MonthKey{UserID: user, Year: year, Month: mon}
	mgr := tabs.NewManager(w.mainLabel)
	if snap, ok, err := w.cache.GetTabs(k); err == nil && ok {
		mgr.Restore(snap)
	}
	if sess, ok, err := w.cache.GetSession(k); err == nil && ok {
		// a stale index simply leaves main selected
		_ = mgr.SetActive(sess.ActiveTab)
	}
	m := &month{svc: svc, tabs: mgr}
	w.months[[2]int{year, mon}] = m
	return m, user, nil
}

func (w *Workspace) view(ctx context.Context, m *month) View {
	st := m.svc.State(ctx)
	m.tabs.SetMain(st.Dataset)
	return View{
		Year:   m.svc.Year(),
		Month:  m.svc.Month(),
		State:  st,
		Tabs:   m.tabs.Tabs(),
		Active: m.tabs.Active(),
	}
}

// View returns the month as currently held, without contacting the remote
// store.
func (w *Workspace) View(ctx context.Context, year, mon int) (View, error) {
	m, _, err := w.open(ctx, year, mon)
	if err != nil {
		return View{}, err
	}
	return w.view(ctx, m), nil
}

// Load refreshes the main tab. A remote failure is returned next to a
// valid view holding the retained local data.
func (w *Workspace) Load(ctx context.Context, year, mon int) (View, error) {
	m, _, err := w.open(ctx, year, mon)
	if err != nil {
		return View{}, err
	}
	err = m.svc.Load(ctx)
	return w.view(ctx, m), err
}

// SaveMain replaces the main dataset.
func (w *Workspace) SaveMain(ctx context.Context, year, mon int, d core.MonthDataset) (View, error) {
	m, _, err := w.open(ctx, year, mon)
	if err != nil {
		return View{}, err
	}
	err = m.svc.SaveFull(ctx, d)
	return w.view(ctx, m), err
}

// SyncPending pushes the month's unsent write, if any.
func (w *Workspace) SyncPending(ctx context.Context, year, mon int) (View, error) {
	m, _, err := w.open(ctx, year, mon)
	if err != nil {
		return View{}, err
	}
	err = m.svc.SyncPending(ctx)
	return w.view(ctx, m), err
}

// Mutate applies fn to the items of tab. The main tab goes through the
// reconciliation service; other tabs are saved to the offline cache only.
func (w *Workspace) Mutate(ctx context.Context, year, mon int, tab string, fn monthly.Mutation) (core.MonthDataset, error) {
	m, user, err := w.open(ctx, year, mon)
	if err != nil {
		return core.MonthDataset{}, err
	}
	if tab == "" || tab == core.MainTab {
		d, err := m.svc.Apply(ctx, fn)
		if err == nil || errors.Is(err, core.ErrRemoteUnavailable) {
			m.tabs.SetMain(m.svc.State(ctx).Dataset)
		}
		return d, err
	}
	d, err := m.tabs.Apply(tab, tabs.Mutation(fn))
	if err != nil {
		return d, err
	}
	return d, w.persistTabs(ctx, user, m)
}

// AddItem appends an item to tab and returns it with the new dataset.
func (w *Workspace) AddItem(ctx context.Context, year, mon int, tab string, draft spending.Draft) (core.MonthDataset, core.SpendingItem, error) {
	var added core.SpendingItem
	d, err := w.Mutate(ctx, year, mon, tab, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		out, it, err := w.deps.Items.Add(items, draft)
		added = it
		return out, err
	})
	return d, added, err
}

// UpdateItem applies a field patch to one item of tab.
func (w *Workspace) UpdateItem(ctx context.Context, year, mon int, tab, itemID string, patch monthly.FieldPatch) (core.MonthDataset, error) {
	return w.Mutate(ctx, year, mon, tab, patch.Mutation(w.deps.Items, itemID))
}

// PayAll spreads one payment over the unpaid items of tab.
func (w *Workspace) PayAll(ctx context.Context, year, mon int, tab string, amount core.Money) (core.MonthDataset, error) {
	return w.Mutate(ctx, year, mon, tab, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		return w.deps.Items.MarkPartialAll(items, amount)
	})
}

// SettleAll marks every item of tab as fully paid.
func (w *Workspace) SettleAll(ctx context.Context, year, mon int, tab string) (core.MonthDataset, error) {
	return w.Mutate(ctx, year, mon, tab, func(items []core.SpendingItem) ([]core.SpendingItem, error) {
		return w.deps.Items.MarkAllFullyPaid(items), nil
	})
}

// AddTab creates a tab and selects it.
func (w *Workspace) AddTab(ctx context.Context, year, mon int, label string) (View, error) {
	return w.tabOp(ctx, year, mon, func(mgr *tabs.Manager) error {
		mgr.Add(label)
		return nil
	})
}

func (w *Workspace) RenameTab(ctx context.Context, year, mon int, key, label string) (View, error) {
	return w.tabOp(ctx, year, mon, func(mgr *tabs.Manager) error {
		return mgr.Rename(key, label)
	})
}

func (w *Workspace) DeleteTab(ctx context.Context, year, mon int, key string) (View, error) {
	return w.tabOp(ctx, year, mon, func(mgr *tabs.Manager) error {
		return mgr.Delete(key)
	})
}

func (w *Workspace) SelectTab(ctx context.Context, year, mon, index int) (View, error) {
	return w.tabOp(ctx, year, mon, func(mgr *tabs.Manager) error {
		return mgr.SetActive(index)
	})
}

func (w *Workspace) tabOp(ctx context.Context, year, mon int, fn func(*tabs.Manager) error) (View, error) {
	m, user, err := w.open(ctx, year, mon)
	if err != nil {
		return View{}, err
	}
	if err := fn(m.tabs); err != nil {
		return View{}, err
	}
	if err := w.persistTabs(ctx, user, m); err != nil {
		return View{}, err
	}
	return w.view(ctx, m), nil
}

// persistTabs writes the tab set and the selected tab to the offline cache.
func (w *Workspace) persistTabs(ctx context.Context, user string, m *month) error {
	k := core.MonthKey{UserID: user, Year: m.svc.Year(), Month: m.svc.Month()}
	err := errors.Join(
		w.cache.PutTabs(k, m.tabs.Snapshot()),
		w.cache.PutSession(k, offline.Session{ActiveTab: m.tabs.Active()}),
	)
	if err != nil {
		w.logger.ErrorContext(ctx, "Saving tabs failed",
			log.NewFields().WithMonth(k).WithError(err).ToSlice()...)
		return fmt.Errorf("offline cache: %w", err)
	}
	return nil
}

// YearOverview summarizes the months of year for the calendar.
func (w *Workspace) YearOverview(ctx context.Context, year int) ([]core.MonthOverview, error) {
	w.mu.Lock()
	_, err := w.userLocked(ctx)
	online := w.online
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return monthly.YearOverview(ctx, w.deps, year, online)
}

// OfflineMonths lists the months the device holds for the signed-in user.
func (w *Workspace) OfflineMonths(ctx context.Context) ([]offline.YearMonth, error) {
	w.mu.Lock()
	user, err := w.userLocked(ctx)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return w.cache.OfflineMonths(user)
}

// Preference reads a user-independent setting such as theme or language.
func (w *Workspace) Preference(name string) (string, bool, error) {
	return w.cache.Preference(name)
}

func (w *Workspace) SetPreference(name, value string) error {
	if name == lastUserPref {
		return fmt.Errorf("%w: %q", ErrReservedPreference, name)
	}
	return w.cache.SetPreference(name, value)
}

// Share freezes the dataset of tab into a public snapshot.
func (w *Workspace) Share(ctx context.Context, year, mon int, tab, name string) (core.ShareSnapshot, error) {
	m, user, err := w.open(ctx, year, mon)
	if err != nil {
		return core.ShareSnapshot{}, err
	}
	if tab == "" {
		tab = core.MainTab
	}
	m.tabs.SetMain(m.svc.State(ctx).Dataset)
	d, err := m.tabs.Dataset(tab)
	if err != nil {
		return core.ShareSnapshot{}, err
	}
	return w.shares.Create(ctx, user, year, mon, d, name)
}

// Shares lists the signed-in user's snapshots, newest first.
func (w *Workspace) Shares(ctx context.Context) ([]core.ShareSnapshot, error) {
	user, ok := w.deps.Identity.UserID(ctx)
	if !ok || user == "" {
		return nil, core.ErrUnauthenticated
	}
	return w.shares.ListForOwner(ctx, user)
}

func (w *Workspace) DeleteShare(ctx context.Context, id string) error {
	user, ok := w.deps.Identity.UserID(ctx)
	if !ok || user == "" {
		return core.ErrUnauthenticated
	}
	return w.shares.Delete(ctx, user, id)
}

// PublicShare reads a snapshot without a signed-in user.
func (w *Workspace) PublicShare(ctx context.Context, id string) (core.ShareSnapshot, error) {
	return w.shares.Fetch(ctx, id)
}
