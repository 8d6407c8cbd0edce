// Package sqlite stores month documents and share snapshots in a SQLite
// database. Items are kept as a JSON column next to the derived totals.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"saldo/internal/core"
	"saldo/internal/remote"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ remote.Store = (*Store)(nil)

// Open creates the database file if needed and applies migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store opened", "db_path", dbPath)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) GetMonth(ctx context.Context, k core.MonthKey) (core.MonthDataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT items, created_at, updated_at
		FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		k.UserID, k.Year, k.Month)

	var (
		items            string
		created, updated int64
	)
	if err := row.Scan(&items, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.MonthDataset{}, core.ErrNotFound
		}
		return core.MonthDataset{}, fmt.Errorf("get month %s: %w", k, err)
	}
	d := core.MonthDataset{
		CreatedAt: time.UnixMicro(created).UTC(),
		UpdatedAt: time.UnixMicro(updated).UTC(),
	}
	if err := json.Unmarshal([]byte(items), &d.Items); err != nil {
		return core.MonthDataset{}, fmt.Errorf("decode items of %s: %w", k, err)
	}
	return core.Recompute(d), nil
}

func (s *Store) SetMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	return s.writeMonth(ctx, k, d, true)
}

func (s *Store) UpdateMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset) (core.MonthDataset, error) {
	return s.writeMonth(ctx, k, d, false)
}

func (s *Store) writeMonth(ctx context.Context, k core.MonthKey, d core.MonthDataset, create bool) (core.MonthDataset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var prev *core.MonthDataset
	var created int64
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM months WHERE user_id = ? AND year = ? AND month = ?`,
		k.UserID, k.Year, k.Month).Scan(&created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !create {
			return core.MonthDataset{}, core.ErrNotFound
		}
	case err != nil:
		return core.MonthDataset{}, fmt.Errorf("read month %s: %w", k, err)
	default:
		prev = &core.MonthDataset{CreatedAt: time.UnixMicro(created).UTC()}
	}

	out := remote.Stamp(d, prev, s.now())
	items, err := json.Marshal(out.Items)
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("encode items: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO months (user_id, year, month, items, total_cents, paid_cents, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			items = excluded.items,
			total_cents = excluded.total_cents,
			paid_cents = excluded.paid_cents,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		k.UserID, k.Year, k.Month, string(items), out.Total.Cents, out.Paid.Cents, string(out.Status),
		out.CreatedAt.UnixMicro(), out.UpdatedAt.UnixMicro())
	if err != nil {
		return core.MonthDataset{}, fmt.Errorf("write month %s: %w", k, err)
	}
	if err := tx.Commit(); err != nil {
		return core.MonthDataset{}, fmt.Errorf("commit month %s: %w", k, err)
	}

	s.logger.DebugContext(ctx, "Month saved to SQLite",
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shares (id, user_id, year, month, name, data, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.UserID, out.Year, out.Month, out.Name, string(data),
		out.CreatedAt.UnixMicro(), out.ExpiresAt.UnixMicro())
	if err != nil {
		return core.ShareSnapshot{}, fmt.Errorf("insert share: %w", err)
	}
	return out, nil
}

const shareColumns = `id, user_id, year, month, name, data, created_at, expires_at`

func (s *Store) GetShare(ctx context.Context, id string) (core.ShareSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = ?`, id)
	snap, err := scanShare(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShareSnapshot{}, core.ErrNotFound
	}
	return snap, err
}

func (s *Store) ListSharesByOwner(ctx context.Context, userID string) ([]core.ShareSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredShares(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shares WHERE expires_at < ?`, now.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("delete expired shares: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired shares: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanShare(row scanner) (core.ShareSnapshot, error) {
	var (
		snap             core.ShareSnapshot
		data             string
		created, expires int64
	)
	if err := row.Scan(&snap.ID, &snap.UserID, &snap.Year, &snap.Month, &snap.Name, &data, &created, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ShareSnapshot{}, err
		}
		return core.ShareSnapshot{}, fmt.Errorf("scan share: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &snap.Data); err != nil {
		return core.ShareSnapshot{}, fmt.Errorf("decode share %s: %w", snap.ID, err)
	}
	snap.CreatedAt = time.UnixMicro(created).UTC()
	snap.ExpiresAt = time.UnixMicro(expires).UTC()
	return snap, nil
}
