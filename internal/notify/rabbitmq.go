package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes notification messages to a durable queue.
type AMQPNotifier struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queue, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{conn: conn, channel: ch, queue: q}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, m Message) error {
	pub, err := publishing(m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel.PublishWithContext(ctx,
		"",           // exchange
		n.queue.Name, // routing key
		false,
		false,
		pub,
	)
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = n.channel.Close()
	return n.conn.Close()
}

func publishing(m Message) (amqp.Publishing, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(m.Kind),
		MessageId:    m.AssignmentID + ":" + string(m.Kind) + ":" + fmt.Sprint(m.SentAt.Unix()),
		Timestamp:    m.SentAt,
		Body:         body,
	}, nil
}
