package billing

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no invoice exists for the identifier.
	ErrNotFound = errors.New("billing: invoice not found")
	// ErrVersionConflict signals that the invoice changed between read and
	// write. Callers re-read and retry.
	ErrVersionConflict = errors.New("billing: invoice version conflict")
)

// Store is an in-memory invoice registry. It is the serialization point for
// invoice mutations: every write goes through Save's version check, so two
// racing writers cannot both commit against the same snapshot. The backend
// of record lives elsewhere; this registry holds the working set the engine
// operates on.
type Store struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*Invoice
	seq      uint64
}

// NewStore constructs an empty registry.
func NewStore() *Store {
	return &Store{invoices: make(map[uuid.UUID]*Invoice)}
}

// NextNumber allocates the next invoice number from a monotonic sequence.
func (s *Store) NextNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("INV-%06d", s.seq)
}

// Get returns a deep copy of the invoice.
func (s *Store) Get(id uuid.UUID) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inv.Clone(), nil
}

// List returns copies of all invoices ordered by number.
func (s *Store) List() []*Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Save persists the invoice snapshot. The snapshot's Version must match the
// stored one; on success the stored version is bumped. New invoices are
// saved with Version zero.
func (s *Store) Save(inv *Invoice) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.invoices[inv.ID]
	if exists && current.Version != inv.Version {
		return nil, fmt.Errorf("%w: have %d, stored %d", ErrVersionConflict, inv.Version, current.Version)
	}
	stored := inv.Clone()
	stored.Version++
	s.invoices[inv.ID] = stored
	return stored.Clone(), nil
}

// Count returns the number of invoices in the registry.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}
