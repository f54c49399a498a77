package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

var _ StateRepository = (*MemoryStateRepository)(nil)

// MemoryStateRepository is an in-process StateRepository used by tests and
// local single-node runs.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[string][]byte
	users  map[string]string
}

// NewMemoryStateRepository creates an empty in-memory repository.
func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		states: make(map[string][]byte),
		users:  make(map[string]string),
	}
}

func (r *MemoryStateRepository) StoreState(_ context.Context, stateJSON []byte, sessionKey string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := sessionKey
	if id == "" {
		id = uuid.NewString()
	}
	blob := make([]byte, len(stateJSON))
	copy(blob, stateJSON)
	r.states[id] = blob
	return id, nil
}

func (r *MemoryStateRepository) GetState(_ context.Context, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.states[id]
	if !ok {
		return nil, ErrStateNotFound
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (r *MemoryStateRepository) SetActiveState(_ context.Context, userID, stateID string) error {
	if userID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = stateID
	return nil
}

func (r *MemoryStateRepository) ActiveStateID(_ context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.users[userID]
	if !ok {
		return "", ErrStateNotFound
	}
	return id, nil
}
