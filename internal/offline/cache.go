// Package offline is the device-local mirror of month data. Entries are
// keyed by purpose, user, year and month so that a user switch can evict
// everything that belongs to someone else.
package offline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"saldo/internal/core"
	"saldo/internal/kv"
	"saldo/internal/tabs"
)

// Session is the per-month view state restored when a month is reopened.
type Session struct {
	ActiveTab int `json:"activeTab"`
}

// Pending marks a month whose latest local write has not reached the remote
// store yet. It survives restarts so that a later load does not overwrite
// the unsent data.
type Pending struct {
	Version int64     `json:"version"`
	Since   time.Time `json:"since"`
}

// YearMonth identifies a cached month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type Cache struct {
	store  kv.Store
	logger *slog.Logger
}

func New(store kv.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

func (c *Cache) Put(k core.MonthKey, d core.MonthDataset) error {
	return c.put(keyFor(PurposeMonth, k), d)
}

// Get returns the cached dataset. An unreadable entry counts as a miss.
func (c *Cache) Get(k core.MonthKey) (core.MonthDataset, bool, error) {
	var d core.MonthDataset
	ok, err := c.get(keyFor(PurposeMonth, k), &d)
	if !ok || err != nil {
		return core.MonthDataset{}, false, err
	}
	return core.Recompute(d), true, nil
}

func (c *Cache) PutTabs(k core.MonthKey, s tabs.Snapshot) error {
	return c.put(keyFor(PurposeTabs, k), s)
}

func (c *Cache) GetTabs(k core.MonthKey) (tabs.Snapshot, bool, error) {
	var s tabs.Snapshot
	ok, err := c.get(keyFor(PurposeTabs, k), &s)
	return s, ok, err
}

func (c *Cache) PutSession(k core.MonthKey, s Session) error {
	return c.put(keyFor(PurposeSession, k), s)
}

func (c *Cache) GetSession(k core.MonthKey) (Session, bool, error) {
	var s Session
	ok, err := c.get(keyFor(PurposeSession, k), &s)
	return s, ok, err
}

func (c *Cache) PutPending(k core.MonthKey, p Pending) error {
	return c.put(keyFor(PurposePending, k), p)
}

func (c *Cache) GetPending(k core.MonthKey) (Pending, bool, error) {
	var p Pending
	ok, err := c.get(keyFor(PurposePending, k), &p)
	return p, ok, err
}

func (c *Cache) ClearPending(k core.MonthKey) error {
	return c.store.Remove(keyFor(PurposePending, k).String())
}

func (c *Cache) SetPreference(name, value string) error {
	return c.store.Set(prefKey(name), value)
}

func (c *Cache) Preference(name string) (string, bool, error) {
	return c.store.Get(prefKey(name))
}

// ClearForOtherUsers removes every user-scoped entry whose user differs from
// current. Preferences and foreign keys are left alone.
func (c *Cache) ClearForOtherUsers(current string) (int, error) {
	keys, err := c.store.ListKeys()
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}
	removed := 0
	for _, raw := range keys {
		k, ok := ParseKey(raw)
		if !ok || k.UserID == current {
			continue
		}
		if err := c.store.Remove(raw); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("Evicted offline entries of other users", "removed", removed)
	}
	return removed, nil
}

// ClearAll removes every key from the underlying store.
func (c *Cache) ClearAll() (int, error) {
	keys, err := c.store.ListKeys()
	if err != nil {
		return 0, fmt.Errorf("list cache keys: %w", err)
	}
	for i, raw := range keys {
		if err := c.store.Remove(raw); err != nil {
			return i, err
		}
	}
	c.logger.Info("Offline cache cleared", "removed", len(keys))
	return len(keys), nil
}

// OfflineMonths lists the months with a cached dataset for user, newest
// first.
func (c *Cache) OfflineMonths(userID string) ([]YearMonth, error) {
	keys, err := c.store.ListKeys()
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	var out []YearMonth
	for _, raw := range keys {
		k, ok := ParseKey(raw)
		if !ok || k.Purpose != PurposeMonth || k.UserID != userID {
			continue
		}
		out = append(out, YearMonth{Year: k.Year, Month: k.Month})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func keyFor(p Purpose, k core.MonthKey) Key {
	return Key{Purpose: p, UserID: k.UserID, Year: k.Year, Month: k.Month}
}

func (c *Cache) put(k Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", k.Purpose, err)
	}
	if err := c.store.Set(k.String(), string(b)); err != nil {
		return fmt.Errorf("write %s entry: %w", k.Purpose, err)
	}
	return nil
}

func (c *Cache) get(k Key, v any) (bool, error) {
	raw, ok, err := c.store.Get(k.String())
	if err != nil {
		return false, fmt.Errorf("read %s entry: %w", k.Purpose, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.logger.Warn("Discarding unreadable offline entry", "key", k.String(), "error", err)
		return false, nil
	}
	return true, nil
}
