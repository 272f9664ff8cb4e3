package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

type failingMethod struct {
	fail bool
}

type memoryPersister struct {
	mu      sync.Mutex
	records map[string][]byte
	load    failingMethod
	save    failingMethod
	saves   int
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{records: make(map[string][]byte)}
}

func (p *memoryPersister) Load(_ context.Context, sessionID string) (*State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.load.fail {
		return nil, errors.New("load failed")
	}
	raw, ok := p.records[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (p *memoryPersister) Save(_ context.Context, sessionID string, state *State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.saves++
	if p.save.fail {
		return errors.New("save failed")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	p.records[sessionID] = raw
	return nil
}

func (p *memoryPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

type publishCall struct {
	sessionID string
	event     string
	data      map[string]interface{}
}

type recordingSink struct {
	mu    sync.Mutex
	calls []publishCall
}

func (s *recordingSink) Publish(sessionID string, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, publishCall{sessionID: sessionID, event: event.Name, data: event.Data})
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, c := range s.calls {
		names = append(names, c.event)
	}
	return names
}
