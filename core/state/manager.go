package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

// Manager layers a write overlay and an undo journal over a key-value
// database. Writes stay in the overlay until Commit flushes them in a single
// batch; Snapshot and RevertToSnapshot roll the overlay back to an earlier
// point so that a failed operation leaves no trace.
type Manager struct {
	mu      sync.Mutex
	db      storage.Database
	dirty   map[string]overlayEntry
	journal []journalEntry
}

type overlayEntry struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    overlayEntry
	hadPrev bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]overlayEntry)}
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// RevertToSnapshot undoes every overlay write made after the snapshot was
// taken. Identifiers at or beyond the journal length are a no-op, which lets
// several collaborators sharing one manager revert the same snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Commit writes the overlay to the database in one batch and clears the
// journal.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		m.journal = nil
		return nil
	}
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := m.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]overlayEntry)
	m.journal = nil
	return nil
}

// Pending reports the number of uncommitted keys.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

func (m *Manager) write(key []byte, entry overlayEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	prev, hadPrev := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, hadPrev: hadPrev})
	m.dirty[k] = entry
}

func (m *Manager) read(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	entry, ok := m.dirty[string(key)]
	m.mu.Unlock()
	if ok {
		if entry.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), entry.value...), true, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// KVPut RLP-encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(key, overlayEntry{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.read(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(key, overlayEntry{deleted: true})
	return nil
}

// KVIterate visits every live key under prefix in ascending order, merging
// committed data with the overlay. fn receives the raw RLP payload.
func (m *Manager) KVIterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	if err := m.db.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	}); err != nil {
		return err
	}
	m.mu.Lock()
	for k, entry := range m.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = append([]byte(nil), entry.value...)
	}
	m.mu.Unlock()

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}
