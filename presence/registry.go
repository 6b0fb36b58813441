// Package presence is the single source of truth for which connections are
// online. The registry exclusively owns its records; callers only ever
// receive value copies.
package presence

import (
	"errors"
	"strings"
	"sync"

	"github.com/HMasataka/presencehub/domain"
	"github.com/HMasataka/presencehub/internal/metrics"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrDuplicateID is returned when inserting an id that is already
	// registered. The transport layer guarantees unique ids, so hitting this
	// is an invariant violation, not a recoverable condition.
	ErrDuplicateID = errors.New("connection id already registered")

	// ErrNotFound is returned when the id is not registered. Expected during
	// races between a disconnect and a concurrent operation.
	ErrNotFound = errors.New("connection not found")

	// ErrInvalidName is returned for an empty or whitespace-only rename.
	ErrInvalidName = errors.New("display name is empty")
)

// Registry maps connection ids to client records. All operations are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string
	clock   clockwork.Clock
}

type record struct {
	user domain.User
}

// NewRegistry creates an empty registry. The clock stamps ConnectedAt at
// insertion time.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		records: make(map[string]*record),
		clock:   clock,
	}
}

// Insert registers a new connection under the given id with the given
// display name and returns the created record.
func (r *Registry) Insert(id, displayName string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; exists {
		return domain.User{}, ErrDuplicateID
	}

	user := domain.User{
		ID:          id,
		DisplayName: displayName,
		ConnectedAt: r.clock.Now(),
	}

	r.records[id] = &record{user: user}
	r.order = append(r.order, id)
	metrics.ConnectedClients.Set(float64(len(r.records)))

	return user, nil
}

// Get returns a copy of the record for the given id.
func (r *Registry) Get(id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}

	return rec.user, nil
}

// Rename updates the display name for the given id and returns the old and
// new names. The record is left unchanged when the new name is empty or
// whitespace-only.
func (r *Registry) Rename(id, newName string) (oldName, appliedName string, err error) {
	if strings.TrimSpace(newName) == "" {
		return "", "", ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return "", "", ErrNotFound
	}

	oldName = rec.user.DisplayName
	rec.user.DisplayName = newName

	return oldName, newName, nil
}

// Remove unregisters the given id and returns the removed record.
func (r *Registry) Remove(id string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}

	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	metrics.ConnectedClients.Set(float64(len(r.records)))

	return rec.user, nil
}

// Snapshot returns a consistent point-in-time copy of all records in
// insertion order.
func (r *Registry) Snapshot() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.records))
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok {
			users = append(users, rec.user)
		}
	}

	return users
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
