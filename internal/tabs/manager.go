// Package tabs splits a month into named partitions, each with its own
// item list. The "main" tab always exists, sits first and mirrors the
// remotely synchronized dataset; the other tabs live on the device only.
package tabs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"saldo/internal/core"
)

var (
	ErrMainTabPermanent = errors.New("main tab cannot be deleted")
	ErrTabNotFound      = errors.New("tab not found")
	ErrEmptyLabel       = errors.New("empty tab label")
)

const keyPrefix = "tab"

type Tab struct {
	Key     string            `json:"key"`
	Label   string            `json:"label"`
	Dataset core.MonthDataset `json:"dataset"`
}

// Snapshot is the persisted form of a manager. It never includes the main
// tab dataset, which belongs to the remote document, nor the active
// pointer, which is session state.
type Snapshot struct {
	Tabs []Tab `json:"tabs"`
	Next int   `json:"next"`
}

// Mutation transforms a tab's item list.
type Mutation func([]core.SpendingItem) ([]core.SpendingItem, error)

type Manager struct {
	mu        sync.Mutex
	tabs      []Tab
	active    int
	next      int
	mainLabel string
}

// NewManager returns a manager holding only the main tab.
func NewManager(mainLabel string) *Manager {
	if strings.TrimSpace(mainLabel) == "" {
		mainLabel = "Main"
	}
	return &Manager{
		tabs:      []Tab{{Key: core.MainTab, Label: mainLabel, Dataset: core.Recompute(core.MonthDataset{})}},
		next:      1,
		mainLabel: mainLabel,
	}
}

func (m *Manager) Tabs() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tab, len(m.tabs))
	for i, t := range m.tabs {
		t.Dataset = t.Dataset.Clone()
		out[i] = t
	}
	return out
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetActive moves the active pointer; out of range indexes are rejected.
func (m *Manager) SetActive(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.tabs) {
		return ErrTabNotFound
	}
	m.active = i
	return nil
}

// Add appends an empty tab and makes it active. Keys are never reused,
// even after deletions.
func (m *Manager) Add(label string) Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if n < len(m.tabs) {
		n = len(m.tabs)
	}
	m.next = n + 1

	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("Tab %d", len(m.tabs)+1)
	}
	t := Tab{
		Key:     keyPrefix + strconv.Itoa(n),
		Label:   label,
		Dataset: core.Recompute(core.MonthDataset{}),
	}
	m.tabs = append(m.tabs, t)
	m.active = len(m.tabs) - 1
	return t
}

// Rename changes the label of a non-main tab. Renaming main does nothing.
func (m *Manager) Rename(key, label string) error {
	if key == core.MainTab {
		return nil
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(key)
	if i < 0 {
		return ErrTabNotFound
	}
	m.tabs[i].Label = label
	return nil
}

// Delete removes a non-main tab and its items, then fixes the active
// pointer: a deleted active tab selects its predecessor, a deletion before
// the active tab shifts it down by one.
func (m *Manager) Delete(key string) error {
	if key == core.MainTab {
		return ErrMainTabPermanent
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(key)
	if i < 0 {
		return ErrTabNotFound
	}
	m.tabs = append(m.tabs[:i:i], m.tabs[i+1:]...)
	switch {
	case m.active == i:
		m.active = max(i-1, 0)
	case m.active > i:
		m.active--
	}
	return nil
}

// Dataset returns a copy of the tab's dataset.
func (m *Manager) Dataset(key string) (core.MonthDataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(key)
	if i < 0 {
		return core.MonthDataset{}, ErrTabNotFound
	}
	return m.tabs[i].Dataset.Clone(), nil
}

// Apply runs fn on a tab's items and stores the recomputed dataset.
// On error the tab is left untouched.
func (m *Manager) Apply(key string, fn Mutation) (core.MonthDataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(key)
	if i < 0 {
		return core.MonthDataset{}, ErrTabNotFound
	}
	items, err := fn(m.tabs[i].Dataset.Clone().Items)
	if err != nil {
		return m.tabs[i].Dataset.Clone(), err
	}
	d := m.tabs[i].Dataset
	d.Items = items
	m.tabs[i].Dataset = core.Recompute(d)
	return m.tabs[i].Dataset.Clone(), nil
}

// SetMain mirrors the reconciled main dataset into the main tab.
func (m *Manager) SetMain(d core.MonthDataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[0].Dataset = d.Clone()
}

// Snapshot returns the device-local part of the manager.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Next: m.next}
	for _, t := range m.tabs[1:] {
		t.Dataset = t.Dataset.Clone()
		s.Tabs = append(s.Tabs, t)
	}
	return s
}

// Restore replaces the non-main tabs with a snapshot and selects main.
// Entries keyed "main" or duplicated are ignored.
func (m *Manager) Restore(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tabs := []Tab{m.tabs[0]}
	seen := map[string]struct{}{core.MainTab: {}}
	next := max(s.Next, 1)
	for _, t := range s.Tabs {
		if _, dup := seen[t.Key]; dup || t.Key == "" {
			continue
		}
		seen[t.Key] = struct{}{}
		t.Dataset = core.Recompute(t.Dataset.Clone())
		tabs = append(tabs, t)
		if n, ok := keyNumber(t.Key); ok && n >= next {
			next = n + 1
		}
	}
	m.tabs = tabs
	m.next = next
	m.active = 0
}

func (m *Manager) indexOf(key string) int {
	for i, t := range m.tabs {
		if t.Key == key {
			return i
		}
	}
	return -1
}

func keyNumber(key string) (int, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, keyPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
