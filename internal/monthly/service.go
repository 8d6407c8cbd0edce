// Package monthly reconciles one month of spending between memory, the
// device-local offline cache and the remote store.
//
// Every local write lands in memory and in the offline cache before the
// remote store is contacted, so a failed or skipped remote write never
// loses data. The most recent unsent write is kept in a single pending
// slot; it is pushed by the next save or by an explicit SyncPending, never
// automatically on reconnect.
package monthly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/offline"
	"saldo/internal/remote"
	"saldo/internal/spending"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 10 * time.Second

// notifyTimeout bounds a month-synced notification. Notifications run after
// the caller got its answer.
const notifyTimeout = 3 * time.Second

// ErrNotApplied marks a mutation refused because no baseline dataset was
// available: memory and the offline cache were empty and the remote store
// could not be read.
var ErrNotApplied = errors.New("change not applied")

// Notifier is told about documents that reached the remote store.
type Notifier interface {
	NotifyMonthSynced(ctx context.Context, k core.MonthKey, d core.MonthDataset, version int64) error
}

// Mutation transforms the item list of the month.
type Mutation func([]core.SpendingItem) ([]core.SpendingItem, error)

// Deps are the collaborators shared by every month service of a process.
type Deps struct {
	Identity Identity
	Remote   remote.MonthStore
	Cache    *offline.Cache
	Items    *spending.Store
	Notifier Notifier // optional
	Timeout  time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Items == nil {
		d.Items = spending.NewStore(core.DefaultCatalog())
	}
	return d
}

// State is what the UI renders for a month. Error is the last remote
// failure; LastError is its message for JSON clients.
type State struct {
	Dataset   core.MonthDataset `json:"dataset"`
	Phase     Phase             `json:"phase"`
	Error     error             `json:"-"`
	LastError string            `json:"error,omitempty"`
	Offline   bool              `json:"offline"`
	Pending bool              `json:"pending"`
	Version int64             `json:"version"`
}

type pendingWrite struct {
	version int64
	since   time.Time
}

type Service struct {
	year, month int
	deps        Deps

	mu      sync.Mutex
	user    string
	data    core.MonthDataset
	hasData bool
	phase   Phase
	online  bool
	lastErr error
	// version increases on every local mutation; a load started at an
	// older version must not overwrite memory.
	version int64
	pending *pendingWrite
	// acked is the newest version the remote store confirmed.
	acked int64

	// pushMu keeps a single remote write in flight.
	pushMu sync.Mutex
}

// New returns the service for one year and month. It starts Online.
func New(year, month int, deps Deps) (*Service, error) {
	if err := (core.MonthKey{UserID: "-", Year: year, Month: month}).Validate(); err != nil {
		return nil, err
	}
	if deps.Remote == nil || deps.Cache == nil {
		return nil, errors.New("monthly: remote store and offline cache are required")
	}
	return &Service{
		year:   year,
		month:  month,
		deps:   deps.withDefaults(),
		phase:  PhaseIdle,
		online: true,
	}, nil
}

func (s *Service) Year() int  { return s.year }
func (s *Service) Month() int { return s.month }

// SetOnline flips the network mode. Going online does not push pending
// edits; call SyncPending or save again.
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online != online {
		s.deps.Logger.Info("Network mode changed",
			log.FieldOnline, online,
			log.FieldYear, s.year,
			log.FieldMonth, s.month,
			"pending", s.pending != nil)
	}
	s.online = online
}

// State returns a copy of the month state. It is empty when nobody is
// signed in.
func (s *Service) State(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beginLocked(ctx); !ok {
		return State{Dataset: core.Recompute(core.MonthDataset{}), Phase: PhaseIdle, Offline: !s.online}
	}
	d := s.data.Clone()
	if !s.hasData {
		d = core.Recompute(core.MonthDataset{})
	}
	st := State{
		Dataset: d,
		Phase:   s.phase,
		Error:   s.lastErr,
		Offline: !s.online,
		Pending: s.pending != nil,
		Version: s.version,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Load refreshes the month. Offline it only hydrates memory from the
// offline cache. Online it fetches the remote document; a failed fetch
// keeps current data and is returned as core.ErrRemoteUnavailable.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	user, ok := s.beginLocked(ctx)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	k := s.key(user)
	s.phase = PhaseLoading
	s.hydrateLocked(k)
	if !s.online {
		s.phase = PhaseReady
		s.mu.Unlock()
		return nil
	}
	started, acked := s.version, s.acked
	s.mu.Unlock()

	d, err := s.fetch(ctx, k)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != user {
		return nil
	}
	s.phase = PhaseReady

	switch {
	case errors.Is(err, core.ErrNotFound):
		s.lastErr = nil
		if !s.hasData {
			s.data = core.Recompute(core.MonthDataset{})
			s.hasData = true
		}
		return nil
	case err != nil:
		s.lastErr = err
		s.deps.Logger.WarnContext(ctx, "Month load failed, keeping local data",
			log.NewFields().WithMonth(k).WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		return err
	}

	if s.version != started || s.acked != acked || s.pending != nil {
		s.deps.Logger.DebugContext(ctx, "Discarding remote month older than local state",
			log.NewFields().WithMonth(k).WithVersion(s.version).ToSlice()...)
		s.lastErr = nil
		return nil
	}
	s.data = d
	s.hasData = true
	s.lastErr = nil
	if err := s.deps.Cache.Put(k, d); err != nil {
		s.deps.Logger.ErrorContext(ctx, "Offline cache write failed",
			log.NewFields().WithMonth(k).WithOperation(log.OpLoad).WithError(err).ToSlice()...)
	}
	return nil
}

// SaveFull replaces the month dataset. Items are checked like single item
// edits; a rejected list leaves every copy untouched. Derived fields are
// recomputed.
func (s *Service) SaveFull(ctx context.Context, d core.MonthDataset) error {
	items, err := s.deps.Items.Normalize(d.Items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	user, ok := s.beginLocked(ctx)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	k := s.key(user)
	next := d.Clone()
	next.Items = items
	next = core.Recompute(next)
	if s.hasData {
		next.CreatedAt = s.data.CreatedAt
	}
	_, cacheErr := s.commitLocked(ctx, k, next)
	online := s.online
	s.mu.Unlock()

	if !online {
		return cacheErr
	}
	return errors.Join(cacheErr, s.push(ctx, k, true))
}

// Apply runs fn on the current items and writes the result like SaveFull,
// using a partial remote update. A rejected mutation leaves every copy
// untouched and returns the validation error.
func (s *Service) Apply(ctx context.Context, fn Mutation) (core.MonthDataset, error) {
	s.mu.Lock()
	user, ok := s.beginLocked(ctx)
	if !ok {
		s.mu.Unlock()
		return core.MonthDataset{}, nil
	}
	k := s.key(user)

	if !s.hasData {
		if err := s.ensureDataLocked(ctx, k); err != nil {
			s.mu.Unlock()
			return core.MonthDataset{}, err
		}
		if s.user != user {
			s.mu.Unlock()
			return core.MonthDataset{}, nil
		}
	}

	items, err := fn(s.data.Clone().Items)
	if err != nil {
		d := s.data.Clone()
		s.mu.Unlock()
		return d, err
	}
	next := s.data.Clone()
	next.Items = items
	next = core.Recompute(next)

	next, cacheErr := s.commitLocked(ctx, k, next)
	online := s.online
	s.mu.Unlock()

	if !online {
		return next, cacheErr
	}
	return next, errors.Join(cacheErr, s.push(ctx, k, false))
}

// SyncPending pushes the pending write, if any. It does nothing offline.
func (s *Service) SyncPending(ctx context.Context) error {
	s.mu.Lock()
	user, ok := s.beginLocked(ctx)
	if !ok || s.pending == nil || !s.online {
		s.mu.Unlock()
		return nil
	}
	k := s.key(user)
	s.hydrateLocked(k)
	if !s.hasData {
		// marker without data; nothing left to send
		s.pending = nil
		s.clearPendingLocked(ctx, k)
		s.mu.Unlock()
		return nil
	}
	ver := s.pending.version
	s.mu.Unlock()

	s.deps.Logger.InfoContext(ctx, "Pushing pending month write",
		log.NewFields().WithMonth(k).WithVersion(ver).WithOperation(log.OpSync).ToSlice()...)
	return s.push(ctx, k, true)
}

// beginLocked resolves the user. A different user than the one the state
// belongs to resets the state.
func (s *Service) beginLocked(ctx context.Context) (string, bool) {
	if s.deps.Identity == nil {
		return "", false
	}
	user, ok := s.deps.Identity.UserID(ctx)
	if !ok || user == "" {
		return "", false
	}
	if user != s.user {
		s.user = user
		s.data = core.MonthDataset{}
		s.hasData = false
		s.phase = PhaseIdle
		s.lastErr = nil
		s.version++
		s.pending = nil
		k := s.key(user)
		if p, ok, err := s.deps.Cache.GetPending(k); err == nil && ok {
			s.pending = &pendingWrite{version: s.version, since: p.Since}
		}
	}
	return user, true
}

func (s *Service) key(user string) core.MonthKey {
	return core.MonthKey{UserID: user, Year: s.year, Month: s.month}
}

// hydrateLocked fills an empty memory from the offline cache.
func (s *Service) hydrateLocked(k core.MonthKey) {
	if s.hasData {
		return
	}
	d, ok, err := s.deps.Cache.Get(k)
	if err != nil {
		s.deps.Logger.Warn("Offline cache read failed",
			log.NewFields().WithMonth(k).WithError(err).ToSlice()...)
		return
	}
	if ok {
		s.data = d
		s.hasData = true
	}
}

// ensureDataLocked finds the authoritative dataset for a mutation when
// memory is empty: the offline cache when offline, the remote store when
// online. It may release the lock while fetching.
func (s *Service) ensureDataLocked(ctx context.Context, k core.MonthKey) error {
	if !s.online {
		s.hydrateLocked(k)
		if !s.hasData {
			s.data = core.Recompute(core.MonthDataset{})
			s.hasData = true
		}
		return nil
	}

	s.mu.Unlock()
	d, err := s.fetch(ctx, k)
	s.mu.Lock()

	if s.hasData || s.user != k.UserID {
		return nil
	}
	switch {
	case err == nil:
		s.data = d
		s.hasData = true
		if err := s.deps.Cache.Put(k, d); err != nil {
			s.deps.Logger.ErrorContext(ctx, "Offline cache write failed",
				log.NewFields().WithMonth(k).WithError(err).ToSlice()...)
		}
	case errors.Is(err, core.ErrNotFound):
		s.data = core.Recompute(core.MonthDataset{})
		s.hasData = true
	default:
		// Unreachable remote: fall back to the device copy, but never
		// start from an empty list that would overwrite the remote one.
		s.hydrateLocked(k)
		if !s.hasData {
			s.lastErr = err
			return fmt.Errorf("%w: %w", ErrNotApplied, err)
		}
	}
	return nil
}

// commitLocked is the optimistic local write: memory, offline cache and
// the pending slot.
func (s *Service) commitLocked(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	now := s.deps.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.version++
	s.data = d
	s.hasData = true
	s.phase = PhaseReady
	if s.pending == nil {
		s.pending = &pendingWrite{since: now}
	}
	s.pending.version = s.version

	var errs []error
	if err := s.deps.Cache.Put(k, d); err != nil {
		errs = append(errs, err)
	}
	if err := s.deps.Cache.PutPending(k, offline.Pending{Version: s.version, Since: s.pending.since}); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "Offline cache write failed",
			log.NewFields().WithMonth(k).WithOperation(log.OpSave).WithError(err).ToSlice()...)
		err = fmt.Errorf("offline cache: %w", err)
	}
	return d.Clone(), err
}

func (s *Service) clearPendingLocked(ctx context.Context, k core.MonthKey) {
	if err := s.deps.Cache.ClearPending(k); err != nil {
		s.deps.Logger.WarnContext(ctx, "Clearing pending marker failed",
			log.NewFields().WithMonth(k).WithError(err).ToSlice()...)
	}
}

func (s *Service) fetch(ctx context.Context, k core.MonthKey) (core.MonthDataset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()
	d, err := s.deps.Remote.GetMonth(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.MonthDataset{}, core.ErrNotFound
		}
		return core.MonthDataset{}, fmt.Errorf("%w: %w", core.ErrRemoteUnavailable, err)
	}
	return core.Recompute(d), nil
}

// push writes the newest committed dataset remotely. Writes of one
// service go out one at a time, so an older dataset never lands after a
// newer one; a caller whose version was already sent by someone else
// returns at once. A partial update of a missing document falls back to a
// full write. The pending slot is cleared once the version it holds is
// confirmed.
func (s *Service) push(ctx context.Context, k core.MonthKey, full bool) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	if s.user != k.UserID || !s.hasData || s.acked >= s.version {
		s.mu.Unlock()
		return nil
	}
	d, ver := s.data.Clone(), s.version
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	var (
		stored core.MonthDataset
		err    error
	)
	if full {
		stored, err = s.deps.Remote.SetMonth(rctx, k, d)
	} else {
		stored, err = s.deps.Remote.UpdateMonth(rctx, k, d)
		if errors.Is(err, core.ErrNotFound) {
			stored, err = s.deps.Remote.SetMonth(rctx, k, d)
		}
	}
	cancel()

	s.mu.Lock()
	if s.user != k.UserID {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrRemoteUnavailable, err)
		s.lastErr = err
		s.mu.Unlock()
		s.deps.Logger.WarnContext(ctx, "Remote month write failed, local copy kept",
			log.NewFields().WithMonth(k).WithVersion(ver).WithOperation(log.OpSave).WithError(err).ToSlice()...)
		return err
	}
	s.acked = ver
	s.lastErr = nil
	if s.pending != nil && s.pending.version <= ver {
		s.pending = nil
		s.clearPendingLocked(ctx, k)
	}
	if s.version == ver {
		s.data.CreatedAt = stored.CreatedAt
		s.data.UpdatedAt = stored.UpdatedAt
		if err := s.deps.Cache.Put(k, s.data); err != nil {
			s.deps.Logger.WarnContext(ctx, "Offline cache write failed",
				log.NewFields().WithMonth(k).WithError(err).ToSlice()...)
		}
	}
	s.mu.Unlock()

	s.deps.Logger.InfoContext(ctx, "Month synced",
		log.NewFields().WithMonth(k).WithDataset(stored).WithVersion(ver).WithOperation(log.OpSync).ToSlice()...)
	if s.deps.Notifier != nil {
		go s.notify(context.WithoutCancel(ctx), k, stored, ver)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, k core.MonthKey, d core.MonthDataset, ver int64) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.deps.Notifier.NotifyMonthSynced(ctx, k, d, ver); err != nil {
		s.deps.Logger.WarnContext(ctx, "Month synced notification failed",
			log.NewFields().WithMonth(k).WithVersion(ver).WithError(err).ToSlice()...)
	}
}
