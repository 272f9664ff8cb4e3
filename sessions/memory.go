package sessions

import (
	"medintake.com/intake/flow"
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps encoded session state in process. Records are copied on
// every load and save.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (store *MemoryStore) Load(_ context.Context, sessionID string) (*flow.State, error) {
	store.mu.RLock()
	raw, ok := store.records[Key(sessionID)]
	store.mu.RUnlock()
	if !ok {
		return nil, flow.ErrStateNotFound
	}

	var state flow.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (store *MemoryStore) Save(_ context.Context, sessionID string, state *flow.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.records[Key(sessionID)] = raw
	return nil
}

func (store *MemoryStore) Delete(_ context.Context, sessionID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.records, Key(sessionID))
	return nil
}

func (store *MemoryStore) Close() error {
	return nil
}
