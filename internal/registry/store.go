package registry

import (
	stderrors "errors"
	"sync"
)

// ErrVersionMismatch is returned by a Store when the persisted version
// is not the one the writer read.
var ErrVersionMismatch = stderrors.New("registry version mismatch")

// ErrLocked is returned by a Store when another writer holds the lock.
// Stores never wait for a lock.
var ErrLocked = stderrors.New("registry is locked by another writer")

// Store persists registry documents with compare-and-swap semantics.
type Store interface {
	// Load returns the current document, or an empty one at version 0.
	Load() (*Document, error)

	// CompareAndSwap persists next if the stored version still equals
	// expected. next.Version must be expected+1.
	CompareAndSwap(expected uint64, next *Document) error

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore keeps the document in memory. Used by tests and by the
// HTTP server in ephemeral mode.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load() (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return NewDocument(), nil
	}
	return DecodeDocument(m.data)
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(expected uint64, next *Document) error {
	data, err := next.Encode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var current uint64
	if m.data != nil {
		doc, err := DecodeDocument(m.data)
		if err != nil {
			return err
		}
		current = doc.Version
	}
	if current != expected {
		return ErrVersionMismatch
	}
	m.data = data
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
