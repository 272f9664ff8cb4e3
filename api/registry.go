package api

import (
	"medintake.com/intake/flow"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"sync"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session id")
)

// Store is the persister backing the registry. Delete removes a session record.
type Store interface {
	flow.Persister
	Delete(ctx context.Context, sessionID string) error
}

// EngineFactory opens the engine of a session, resuming it from the store.
type EngineFactory func(ctx context.Context, sessionID string) (*flow.Engine, error)

// Registry keeps one live engine per session. Engines for sessions that only
// exist in the store are opened on first access.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*flow.Engine
	store   Store
	open    EngineFactory
}

func NewRegistry(store Store, open EngineFactory) *Registry {
	return &Registry{
		engines: make(map[string]*flow.Engine),
		store:   store,
		open:    open,
	}
}

func (r *Registry) Create(ctx context.Context) (*flow.Engine, error) {
	id := uuid.NewString()
	engine, err := r.open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening session %s: %w", id, err)
	}
	if err := r.store.Save(ctx, id, engine.Snapshot()); err != nil {
		engine.Close()
		return nil, fmt.Errorf("saving session %s: %w", id, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[id] = engine
	return engine, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*flow.Engine, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[id]; ok {
		return engine, nil
	}
	if _, err := r.store.Load(ctx, id); err != nil {
		if errors.Is(err, flow.ErrStateNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	engine, err := r.open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("opening session %s: %w", id, err)
	}
	r.engines[id] = engine
	return engine, nil
}

// Remove closes the session engine and deletes its stored record.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidSession
	}
	r.mu.Lock()
	engine, ok := r.engines[id]
	delete(r.engines, id)
	r.mu.Unlock()
	if ok {
		engine.Close()
	}
	return r.store.Delete(ctx, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, engine := range r.engines {
		engine.Close()
		delete(r.engines, id)
	}
}
