package sessions

import (
	"medintake.com/intake/redis"
	"context"
	"encoding/json"
	"errors"
	"time"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type docStoreMock struct {
	config docStoreMockConfig
	calls  docStoreMockCalls
	saved  map[string][]byte
}

type docStoreMockConfig struct {
	getDoc  withValue
	saveDoc failingMethod
	lock    failingMethod
	release failingMethod
}

type docStoreMockCalls struct {
	getDoc  []string
	saveDoc []string
	delete  []string
	lock    []string
	release int
	ttl     time.Duration
	closed  bool
}

func newDocStoreMock(config docStoreMockConfig) *docStoreMock {
	return &docStoreMock{config: config, saved: make(map[string][]byte)}
}

func (mock *docStoreMock) GetDoc(_ context.Context, redisKey string, doc interface{}) error {
	mock.calls.getDoc = append(mock.calls.getDoc, redisKey)
	if mock.config.getDoc.fail {
		if err, ok := mock.config.getDoc.returnedValue.(error); ok {
			return err
		}
		return errors.New("get failed")
	}
	raw, ok := mock.saved[redisKey]
	if !ok {
		return redis.ErrNotFound
	}
	return json.Unmarshal(raw, doc)
}

func (mock *docStoreMock) SaveDoc(_ context.Context, redisKey string, doc interface{}, ttl time.Duration) error {
	mock.calls.saveDoc = append(mock.calls.saveDoc, redisKey)
	mock.calls.ttl = ttl
	if mock.config.saveDoc.fail {
		return errors.New("save failed")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	mock.saved[redisKey] = raw
	return nil
}

func (mock *docStoreMock) Delete(_ context.Context, redisKey string) error {
	mock.calls.delete = append(mock.calls.delete, redisKey)
	delete(mock.saved, redisKey)
	return nil
}

func (mock *docStoreMock) Lock(_ context.Context, redisKey string) (redis.ReleaseLock, error) {
	mock.calls.lock = append(mock.calls.lock, redisKey)
	if mock.config.lock.fail {
		return nil, errors.New("lock not obtained")
	}
	return func() error {
		mock.calls.release++
		if mock.config.release.fail {
			return errors.New("release failed")
		}
		return nil
	}, nil
}

func (mock *docStoreMock) Close() error {
	mock.calls.closed = true
	return nil
}
