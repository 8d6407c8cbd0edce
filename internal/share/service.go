// Package share builds read-only, expiring snapshots of a month that can
// be opened through a public link.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/remote"
)

// DefaultTTL is how long a share stays readable.
const DefaultTTL = 30 * 24 * time.Hour

type Service struct {
	store  remote.ShareStore
	cache  *cache.LRUCache[core.ShareSnapshot]
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache puts an LRU cache of the given size in front of reads.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache.NewLRUCache[core.ShareSnapshot](size, ttl, cache.WithClock(func() time.Time { return s.now() }))
	}
}

func NewService(store remote.ShareStore, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewLRUCache[core.ShareSnapshot](0, 0)
	}
	return s
}

// Create freezes a copy of data and stores it as a new share. Sharing the
// same month again yields a new, independent snapshot.
func (s *Service) Create(ctx context.Context, owner string, year, month int, data core.MonthDataset, name string) (core.ShareSnapshot, error) {
	k := core.MonthKey{UserID: owner, Year: year, Month: month}
	if err := k.Validate(); err != nil {
		return core.ShareSnapshot{}, err
	}
	now := s.now().UTC()
	snap, err := s.store.CreateShare(ctx, core.ShareSnapshot{
		UserID:    owner,
		Year:      year,
		Month:     month,
		Name:      strings.TrimSpace(name),
		Data:      core.Recompute(data.Clone()),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return core.ShareSnapshot{}, remoteErr("create share", err)
	}
	s.logger.InfoContext(ctx, "Share created",
		"share_id", snap.ID,
		"document", k.DocumentID(),
		"items", len(snap.Data.Items),
		"expires_at", snap.ExpiresAt)
	return snap, nil
}

// Fetch returns an unexpired share. A missing or expired share reports
// core.ErrNotFound; the expired case also matches core.ErrExpired.
func (s *Service) Fetch(ctx context.Context, id string) (core.ShareSnapshot, error) {
	now := s.now()
	if snap, ok := s.cache.Get(id); ok {
		return snap.Clone(), nil
	}

	snap, err := s.store.GetShare(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ShareSnapshot{}, core.ErrNotFound
		}
		return core.ShareSnapshot{}, remoteErr("get share", err)
	}
	if snap.Expired(now) {
		return core.ShareSnapshot{}, fmt.Errorf("%w: %w", core.ErrNotFound, core.ErrExpired)
	}
	s.cache.SetUntil(id, snap.Clone(), snap.ExpiresAt)
	return snap, nil
}

// ListForOwner returns every share of owner, expired ones included,
// newest first.
func (s *Service) ListForOwner(ctx context.Context, owner string) ([]core.ShareSnapshot, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, core.ErrUnauthenticated
	}
	list, err := s.store.ListSharesByOwner(ctx, owner)
	if err != nil {
		return nil, remoteErr("list shares", err)
	}
	return list, nil
}

// Delete hard-deletes one of owner's shares.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if strings.TrimSpace(owner) == "" {
		return core.ErrUnauthenticated
	}
	if err := s.store.DeleteShare(ctx, owner, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.ErrNotFound
		}
		return remoteErr("delete share", err)
	}
	s.cache.Delete(id)
	s.logger.InfoContext(ctx, "Share deleted", "share_id", id)
	return nil
}

// SweepExpired removes expired shares from the store and the read cache.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredShares(ctx, s.now())
	if err != nil {
		return 0, remoteErr("sweep shares", err)
	}
	s.cache.CleanExpired()
	return n, nil
}

func remoteErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrRemoteUnavailable, err)
}
