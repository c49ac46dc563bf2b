// Package notify delivers fire-and-forget guest and staff
// notifications. Delivery failures are the caller's to log, never to
// propagate into the order flow.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName   = "notifications_fanout"
	publishTimeout = 5 * time.Second
)

// message is the wire shape consumed by the notification workers.
type message struct {
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// LogNotifier writes notifications to the process log. Used when no
// broker is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, recipient, message string) error {
	log.Printf("notify %s: %s", recipient, message)
	return nil
}

// AMQPNotifier publishes notifications to a fanout exchange consumed
// by the guest-facing notification workers.
type AMQPNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPNotifier connects to the broker and declares the fanout
// exchange.
func NewAMQPNotifier(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchangeName, // name
		"fanout",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{conn: conn, ch: ch}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, recipient, text string) error {
	body, err := json.Marshal(message{
		Recipient: recipient,
		Message:   text,
		SentAt:    time.Now(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return n.ch.PublishWithContext(ctx,
		exchangeName, // exchange
		"",           // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
}

func (n *AMQPNotifier) Close() {
	if n.ch != nil {
		n.ch.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
