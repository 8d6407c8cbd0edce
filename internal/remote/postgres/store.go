// Package postgres stores month documents and share snapshots in
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saldo/internal/core"
	"saldo/internal/remote"
)

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ remote.Store = (*Store)(nil)

// Open connects to url and applies migrations.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(url); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("PostgreSQL store opened", "max_conns", pool.Config().MaxConns)
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) GetMonth(ctx context.Context, k core.MonthKey) (core.MonthDataset, error) {
	var (
		items []byte
		d     core.MonthDataset
	)
	err := s.pool.QueryRow(ctx, `
		SELECT items, created_at, updated_at
		FROM months WHERE user_id = $1 AND year = $2 AND month = $3`,
		k.UserID, k.Year, k.Month).Scan(&items, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.MonthDataset{}, core.ErrNotFound
		}
		return core.MonthDataset{}, fmt.Errorf("get month %s: %w", k, err)
	}
	if err := json.Unmarshal(items, &d.Items); err != nil {
		return core.MonthDataset{}, fmt.Errorf("decode items of %s: %w", k, err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return core.Recompute(d), nil
}

func (s *Store) SetMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	return s.writeMonth(ctx, k, d, true)
}

func (s *Store) UpdateMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	return s.writeMonth(ctx, k, d, false)
}

func (s *Store) writeMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset, create bool) (core.MonthDataset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var prev *core.MonthDataset
	var created time.Time
	err = tx.QueryRow(ctx,
		`SELECT created_at FROM months WHERE user_id = $1 AND year = $2 AND month = $3 FOR UPDATE`,
		k.UserID, k.Year, k.Month).Scan(&created)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if !create {
			return core.MonthDataset{}, core.ErrNotFound
		}
	case err != nil:
		return core.MonthDataset{}, fmt.Errorf("read month %s: %w", k, err)
	default:
		prev = &core.MonthDataset{CreatedAt: created.UTC()}
	}

	out := remote.Stamp(d, prev, s.now())
	items, err := json.Marshal(out.Items)
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("encode items: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO months (user_id, year, month, items, total_cents, paid_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			items = EXCLUDED.items,
			total_cents = EXCLUDED.total_cents,
			paid_cents = EXCLUDED.paid_cents,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		k.UserID, k.Year, k.Month, items, out.Total.Cents, out.Paid.Cents, string(out.Status),
		out.CreatedAt, out.UpdatedAt)
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("write month %s: %w", k, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.MonthDataset{}, fmt.Errorf("commit month %s: %w", k, err)
	}

	s.logger.DebugContext(ctx, "Month saved to PostgreSQL",
		"document", k.DocumentID(),
		"items", len(out.Items),
		"total_cents", out.Total.Cents,
		"status", out.Status)
	return out, nil
}

func (s *Store) CreateShare(ctx context.Context, snap core.ShareSnapshot) (core.ShareSnapshot, error) {
	out, err := remote.PrepareShare(snap, s.now())
	if err != nil {
		return core.ShareSnapshot{}, err
	}
	data, err := json.Marshal(out.Data)
	if err != nil {
		return core.ShareSnapshot{}, fmt.Errorf("encode share data: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO shares (id, user_id, year, month, name, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		out.ID, out.UserID, out.Year, out.Month, out.Name, data, out.CreatedAt, out.ExpiresAt)
	if err != nil {
		return core.ShareSnapshot{}, fmt.Errorf("insert share: %w", err)
	}
	return out, nil
}

const shareColumns = `id, user_id, year, month, name, data, created_at, expires_at`

func (s *Store) GetShare(ctx context.Context, id string) (core.ShareSnapshot, error) {
	snap, err := scanShare(s.pool.QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ShareSnapshot{}, core.ErrNotFound
	}
	return snap, err
}

func (s *Store) ListSharesByOwner(ctx context.Context, userID string) ([]core.ShareSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	var out []core.ShareSnapshot
	for rows.Next() {
		snap, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) DeleteShare(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM shares WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredShares(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM shares WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired shares: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanShare(row pgx.Row) (core.ShareSnapshot, error) {
	var (
		snap core.ShareSnapshot
		data []byte
	)
	err := row.Scan(&snap.ID, &snap.UserID, &snap.Year, &snap.Month, &snap.Name, &data, &snap.CreatedAt, &snap.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ShareSnapshot{}, err
		}
		return core.ShareSnapshot{}, fmt.Errorf("scan share: %w", err)
	}
	if err := json.Unmarshal(data, &snap.Data); err != nil {
		return core.ShareSnapshot{}, fmt.Errorf("decode share %s: %w", snap.ID, err)
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.ExpiresAt = snap.ExpiresAt.UTC()
	return snap, nil
}
