// Package memory is a process-local remote store, used for development
// and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/remote"
)

type Store struct {
	mu     sync.Mutex
	months map[string]core.MonthDataset
	shares map[string]core.ShareSnapshot
	now    func() time.Time
}

var _ remote.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		months: map[string]core.MonthDataset{},
		shares: map[string]core.ShareSnapshot{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetMonth(_ context.Context, k core.MonthKey) (core.MonthDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.months[k.DocumentID()]
	if !ok {
		return core.MonthDataset{}, core.ErrNotFound
	}
	return d.Clone(), nil
}

func (s *Store) SetMonth(_ context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev *core.MonthDataset
	if p, ok := s.months[k.DocumentID()]; ok {
		prev = &p
	}
	out := remote.Stamp(d, prev, s.now())
	s.months[k.DocumentID()] = out
	return out.Clone(), nil
}

func (s *Store) UpdateMonth(_ context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.months[k.DocumentID()]
	if !ok {
		return core.MonthDataset{}, core.ErrNotFound
	}
	out := remote.Stamp(d, &p, s.now())
	s.months[k.DocumentID()] = out
	return out.Clone(), nil
}

func (s *Store) CreateShare(_ context.Context, snap core.ShareSnapshot) (core.ShareSnapshot, error) {
	out, err := remote.PrepareShare(snap, s.now())
	if err != nil {
		return core.ShareSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[out.ID] = out
	return out.Clone(), nil
}

func (s *Store) GetShare(_ context.Context, id string) (core.ShareSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.shares[id]
	if !ok {
		return core.ShareSnapshot{}, core.ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *Store) ListSharesByOwner(_ context.Context, userID string) ([]core.ShareSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ShareSnapshot
	for _, snap := range s.shares {
		if snap.UserID == userID {
			out = append(out, snap.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteShare(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.shares[id]
	if !ok || snap.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.shares, id)
	return nil
}

func (s *Store) DeleteExpiredShares(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, snap := range s.shares {
		if snap.Expired(now) {
			delete(s.shares, id)
			n++
		}
	}
	return n, nil
}
