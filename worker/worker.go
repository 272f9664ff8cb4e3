package worker

import (
	"medintake.com/intake/flow"
	"medintake.com/intake/logger"
	"medintake.com/intake/utils"
	"context"
	"errors"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"sync"
	"time"
)

var ErrClosed = errors.New("dispatcher closed")

type Config struct {
	Buffer         int `envconfig:"INTAKE_EVENTS_BUFFER" default:"256"`
	PublishRetries int `envconfig:"INTAKE_EVENTS_PUBLISH_RETRIES" default:"3"`
}

// Message is the analytics envelope published for every flow event.
type Message struct {
	SessionID string                 `json:"session_id"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Dispatcher forwards flow events to RabbitMQ from a single background loop.
// Publish never blocks; events are dropped when the buffer is full.
type Dispatcher struct {
	config    Config
	connect   func() (rmqTransactions, error)
	queue     chan Message
	done      chan struct{}
	closeOnce sync.Once
	evLogger  *zerolog.Logger

	// mu guards rmq, which is swapped by refreshes and closed by Close
	mu  sync.Mutex
	rmq rmqTransactions
}

func New() (*Dispatcher, error) {
	evLogger := logger.NewLogger("Event dispatcher")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		evLogger.Error().Err(err).Msg("Could not read config")
		return nil, err
	}
	dispatcher := newDispatcher(config, connectRMQ, &evLogger)
	if err := dispatcher.refreshRMQClient(); err != nil {
		evLogger.Error().Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	return dispatcher, nil
}

func newDispatcher(config Config, connect func() (rmqTransactions, error), evLogger *zerolog.Logger) *Dispatcher {
	if config.Buffer < 1 {
		config.Buffer = 1
	}
	return &Dispatcher{
		config:   config,
		connect:  connect,
		queue:    make(chan Message, config.Buffer),
		done:     make(chan struct{}),
		evLogger: evLogger,
	}
}

// Publish implements flow.EventSink.
func (d *Dispatcher) Publish(sessionID string, event flow.Event) {
	msg := Message{
		SessionID: sessionID,
		Event:     event.Name,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	if d.isClosed() {
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.evLogger.Warn().
			Str("session_id", sessionID).
			Str("event", event.Name).
			Msg("Event buffer full, dropping event")
	}
}

// Start runs the publish loop until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	for {
		rmqErrors := d.client().getErrorsCh()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return ErrClosed
		case msg := <-d.queue:
			if err := d.deliver(msg); err != nil {
				d.evLogger.Err(err).
					Str("session_id", msg.SessionID).
					Str("event", msg.Event).
					Msg("Failed to publish event")
			}
		case rmqErr := <-rmqErrors:
			if d.isClosed() {
				return ErrClosed
			}
			d.evLogger.Warn().Interface("amqp_error", rmqErr).Msg("RMQ channel closed, trying to refresh RMQ client")
			if err := d.refreshRMQClient(); err != nil {
				return fmt.Errorf("rmq channel has been closed and refresh returned error: %w", err)
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) (err error) {
	defer utils.RecoverWithError(&err)
	for attempt := 0; ; attempt++ {
		if err = d.client().publish(msg); err == nil {
			return nil
		}
		if attempt >= d.config.PublishRetries {
			return fmt.Errorf("exceeded %d retries: %w", d.config.PublishRetries, err)
		}
		d.evLogger.Warn().Err(err).Int("attempt", attempt+1).Msg("Publish failed, refreshing RMQ client")
		if refreshErr := d.refreshRMQClient(); refreshErr != nil {
			return refreshErr
		}
	}
}

func (d *Dispatcher) isClosed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.rmq != nil {
			d.rmq.close()
		}
	})
}

func (d *Dispatcher) client() rmqTransactions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rmq
}

// refreshRMQClient replaces the client. It refuses once the dispatcher is closed
// so a refresh racing Close cannot leave an open connection behind.
func (d *Dispatcher) refreshRMQClient() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isClosed() {
		return ErrClosed
	}
	d.evLogger.Info().Msg("Refreshing RMQ client")
	if oldClient := d.rmq; oldClient != nil {
		defer oldClient.close()
	}
	client, err := d.connect()
	if err != nil {
		d.evLogger.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	d.rmq = client
	d.evLogger.Info().Msg("Refreshed RMQ client")
	return nil
}
