package rmq

import (
	"medintake.com/intake/logger"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"time"
)

type Config struct {
	Host             string `envconfig:"INTAKE_RMQ_HOST" required:"true"`
	Port             string `envconfig:"INTAKE_RMQ_PORT" default:"5672"`
	Username         string `envconfig:"INTAKE_RMQ_USERNAME" required:"true"`
	Password         string `envconfig:"INTAKE_RMQ_PASSWORD" required:"true"`
	Exchange         string `envconfig:"INTAKE_RMQ_EXCHANGE" default:"medical-intake-exchange"`
	EventsRoutingKey string `envconfig:"INTAKE_RMQ_EVENTS_ROUTING_KEY" default:"intake.analytics"`
	EventsQueue      string `envconfig:"INTAKE_RMQ_EVENTS_QUEUE" default:"intake-analytics-events"`
}

// Client publishes analytics messages to a topic exchange. Delivery is best
// effort: messages are transient and unconfirmed.
type Client struct {
	Errors    <-chan *amqp.Error
	config    Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	rmqLogger *zerolog.Logger
}

func ReadEnvironment() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}

func NewClient() (*Client, error) {
	rmqLogger := logger.NewLogger("RMQ client")
	config, err := ReadEnvironment()
	if err != nil {
		rmqLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	conn, channel, err := setup(getURL(config))
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	if err := channel.ExchangeDeclare(
		config.Exchange, // name
		"topic",         // kind
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	q, err := channel.QueueDeclare(
		config.EventsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	if err := channel.QueueBind(
		q.Name,
		config.EventsRoutingKey,
		config.Exchange,
		false,
		nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	rmqLogger.Info().Str("exchange", config.Exchange).Str("queue", q.Name).Msg("RMQ client ready")
	return &Client{
		Errors:    channel.NotifyClose(make(chan *amqp.Error, 1)),
		config:    config,
		conn:      conn,
		channel:   channel,
		rmqLogger: &rmqLogger,
	}, nil
}

// NewPublishing wraps a JSON body into a transient message.
func NewPublishing(body []byte, messageID string, ts time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    messageID,
		Timestamp:    ts,
		Body:         body,
	}
}

func (c *Client) Publish(msg amqp.Publishing) error {
	return c.channel.Publish(
		c.config.Exchange,
		c.config.EventsRoutingKey,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.conn.Close()
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
