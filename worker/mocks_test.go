package worker

import (
	"errors"
	"github.com/streadway/amqp"
	"sync"
)

type failingMethod struct {
	fail bool
}

type rmqMockConfig struct {
	publish failingMethod
	panics  bool
}

type rmqMockCalls struct {
	published []Message
	closed    bool
}

type rmqMock struct {
	mu     sync.Mutex
	config rmqMockConfig
	calls  rmqMockCalls
	errors chan *amqp.Error
}

func newRMQMock(config rmqMockConfig) *rmqMock {
	return &rmqMock{config: config, errors: make(chan *amqp.Error, 1)}
}

func (mock *rmqMock) publish(msg Message) error {
	if mock.config.panics {
		panic("channel exploded")
	}
	mock.mu.Lock()
	defer mock.mu.Unlock()
	if mock.config.publish.fail {
		return errors.New("publish failed")
	}
	mock.calls.published = append(mock.calls.published, msg)
	return nil
}

func (mock *rmqMock) getErrorsCh() <-chan *amqp.Error {
	return mock.errors
}

func (mock *rmqMock) close() {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	mock.calls.closed = true
}

func (mock *rmqMock) snapshot() rmqMockCalls {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	return rmqMockCalls{
		published: append([]Message(nil), mock.calls.published...),
		closed:    mock.calls.closed,
	}
}

// connector hands out the configured mocks in order, repeating the last one.
type connector struct {
	mu    sync.Mutex
	mocks []*rmqMock
	fail  bool
	calls int
}

func (c *connector) connect() (rmqTransactions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return nil, errors.New("rmq unavailable")
	}
	i := c.calls - 1
	if i >= len(c.mocks) {
		i = len(c.mocks) - 1
	}
	return c.mocks[i], nil
}

func (c *connector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
