package worker

import (
	"medintake.com/intake/rmq"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type rmqTransactions interface {
	publish(msg Message) error
	getErrorsCh() <-chan *amqp.Error
	close()
}

type rmqClientWrapper struct {
	rmqClient *rmq.Client
}

func connectRMQ() (rmqTransactions, error) {
	client, err := rmq.NewClient()
	if err != nil {
		return nil, err
	}
	return &rmqClientWrapper{client}, nil
}

func (wrapper *rmqClientWrapper) close() {
	wrapper.rmqClient.Close()
}

func (wrapper *rmqClientWrapper) getErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.Errors
}

func (wrapper *rmqClientWrapper) publish(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return wrapper.rmqClient.Publish(rmq.NewPublishing(b, uuid.NewString(), msg.Timestamp))
}
