// Package lock provides keyed in-process mutexes used to serialize read-check-write
// sequences on individual products and customers.
package lock

import (
	"fmt"
	"sort"
	"sync"
)

// Manager hands out one mutex per key and forgets keys nobody holds or waits on.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]*entry)}
}

// SettingsKey guards writes to the loyalty settings table.
const SettingsKey = "loyalty-settings"

// ProductKey and CustomerKey build the keys used by the ledgers.
func ProductKey(id uint) string  { return fmt.Sprintf("product:%d", id) }
func CustomerKey(id uint) string { return fmt.Sprintf("customer:%d", id) }

// Acquire locks every key in sorted order and returns the release func.
// Duplicate keys are locked once. Callers must not open a database
// transaction before Acquire returns.
func (m *Manager) Acquire(keys ...string) (release func()) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	held := make([]*entry, 0, len(uniq))
	for _, k := range uniq {
		e := m.ref(k)
		e.mu.Lock()
		held = append(held, e)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				m.unref(uniq[i])
			}
		})
	}
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
