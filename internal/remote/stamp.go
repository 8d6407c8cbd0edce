package remote

import (
	"time"

	"saldo/internal/core"
	"saldo/internal/id"
)

// ShareIDPrefix prefixes every share id.
const ShareIDPrefix = "shr"

// Stamp prepares d for storage. Derived fields are recomputed, CreatedAt
// comes from prev (or now for a new document) and UpdatedAt is now.
func Stamp(d core.MonthDataset, prev *core.MonthDataset, now time.Time) core.MonthDataset {
	now = now.UTC().Truncate(time.Microsecond)
	out := core.Recompute(d.Clone())
	if prev != nil && !prev.CreatedAt.IsZero() {
		out.CreatedAt = prev.CreatedAt
	} else {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	return out
}

// PrepareShare fills in the id and creation time of a new share.
func PrepareShare(s core.ShareSnapshot, now time.Time) (core.ShareSnapshot, error) {
	out := s.Clone()
	if out.ID == "" {
		sid, err := id.Generate(ShareIDPrefix)
		if err != nil {
			return core.ShareSnapshot{}, err
		}
		out.ID = sid
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Microsecond)
	out.ExpiresAt = out.ExpiresAt.UTC().Truncate(time.Microsecond)
	return out, nil
}
