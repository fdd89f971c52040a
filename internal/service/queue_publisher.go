// Package queue_publisher provides a best-effort publisher for auth domain
// events over RabbitMQ. Errors are logged and returned so callers can ignore
// failures without interrupting the main request flow: a broker outage must
// never block a sign-in.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	q "github.com/iliyamo/accounts/internal/queue"
)

// Publisher publishes AuthEvents to the auth.events queue. A nil Publisher
// is valid and drops every event, which keeps handler code free of broker
// branching when eventing is disabled.
type Publisher struct {
	url string
	log zerolog.Logger
}

// NewPublisher builds a publisher for the given AMQP URL. An empty URL
// returns nil, disabling eventing.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url, log: log}
}

// Publish sends one event to the auth.events queue. The queue is declared
// durable and messages are marked persistent so audit entries survive a
// broker restart. The connection is established per call; auth transitions
// are rare enough that holding a channel open buys nothing.
func (p *Publisher) Publish(ctx context.Context, event q.AuthEvent) error {
	if p == nil {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.AuthQueueName, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Msg("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		q.AuthQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		p.log.Warn().Err(err).Str("type", event.Type).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
