// Package remote declares the ports of the remote source of truth: one
// document per user and month, plus the public share snapshots.
package remote

import (
	"context"
	"time"

	"saldo/internal/core"
)

// Ports for outbound adapters.
type (
	MonthStore interface {
		// GetMonth returns core.ErrNotFound when the document does not exist.
		GetMonth(ctx context.Context, k core.MonthKey) (core.MonthDataset, error)
		// SetMonth creates or replaces the document. CreatedAt is kept from
		// an existing document and UpdatedAt is stamped by the store.
		SetMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error)
		// UpdateMonth overwrites items and derived fields of an existing
		// document and returns core.ErrNotFound when there is none.
		UpdateMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error)
	}

	ShareStore interface {
		// CreateShare stores s, assigning an id when s.ID is empty.
		CreateShare(ctx context.Context, s core.ShareSnapshot) (core.ShareSnapshot, error)
		GetShare(ctx context.Context, id string) (core.ShareSnapshot, error)
		// ListSharesByOwner returns the owner's shares, newest first.
		ListSharesByOwner(ctx context.Context, userID string) ([]core.ShareSnapshot, error)
		// DeleteShare returns core.ErrNotFound when id is missing or belongs
		// to another user.
		DeleteShare(ctx context.Context, userID, id string) error
		DeleteExpiredShares(ctx context.Context, now time.Time) (int, error)
	}

	Store interface {
		MonthStore
		ShareStore
	}
)
