// Package queue_publisher publishes domain events to RabbitMQ.  Failures
// are logged and returned so callers can ignore them without interrupting
// the request that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/pix-raffle-checkout/internal/queue"
)

// Publisher sends events to the broker at URL.  It dials per publish: events
// are rare (one per confirmed purchase) and a fresh connection never has to
// be health-checked.
type Publisher struct {
	URL string
}

// NewPublisher returns a Publisher for url, or for the environment's broker
// when url is empty.
func NewPublisher(url string) *Publisher {
	if url == "" {
		url = q.BrokerURL()
	}
	return &Publisher{URL: url}
}

// PublishPurchaseConfirmed publishes ev to the purchase.confirmed queue as a
// persistent message.
func (p *Publisher) PublishPurchaseConfirmed(ctx context.Context, ev q.PurchaseConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	return p.publish(ctx, q.PurchaseConfirmedQueue, body)
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", queue, err)
		return err
	}
	return nil
}
