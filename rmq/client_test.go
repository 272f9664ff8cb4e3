package rmq

import (
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestReadEnvironment(t *testing.T) {
	t.Setenv("INTAKE_RMQ_HOST", "mq.local")
	t.Setenv("INTAKE_RMQ_USERNAME", "intake")
	t.Setenv("INTAKE_RMQ_PASSWORD", "pw")

	config, err := ReadEnvironment()
	require.NoError(t, err)
	require.Equal(t, "5672", config.Port)
	require.Equal(t, "medical-intake-exchange", config.Exchange)
	require.Equal(t, "intake.analytics", config.EventsRoutingKey)
	require.Equal(t, "amqp://intake:pw@mq.local:5672", getURL(config))
}

func TestNewPublishing(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := NewPublishing([]byte(`{"event":"q_answered"}`), "m-1", ts)

	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, amqp.Transient, msg.DeliveryMode)
	require.Equal(t, "m-1", msg.MessageId)
	require.Equal(t, ts, msg.Timestamp)
	require.JSONEq(t, `{"event":"q_answered"}`, string(msg.Body))
}
