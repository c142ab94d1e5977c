package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier fans change events out through a topic exchange so that
// concurrent sessions of the same owner, possibly in other processes, see
// each other's writes. Routing key is the owner ID.
type AMQPNotifier struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(url, exchangeName string) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPNotifier{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}, nil
}

// Publish sends the event with the owner ID as routing key.
func (n *AMQPNotifier) Publish(ctx context.Context, ev Event) error {
	body, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(
		ctx,
		n.exchangeName, // exchange
		ev.Owner,       // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.DebugContext(ctx, "Published change event",
		"owner", ev.Owner,
		"list", ev.List,
		"op", ev.Op,
		"seq", ev.Seq)
	return nil
}

// Subscribe binds a private queue to the owner's routing key and invokes
// fn for every delivery. Empty owner subscribes to all owners.
func (n *AMQPNotifier) Subscribe(ctx context.Context, owner string, fn func(Event)) (Subscription, error) {
	channel, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open subscriber channel: %w", err)
	}

	queue, err := channel.QueueDeclare(
		"",    // name (server generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	routingKey := owner
	if routingKey == "" {
		routingKey = "#"
	}
	if err := channel.QueueBind(queue.Name, routingKey, n.exchangeName, false, nil); err != nil {
		channel.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack (notifications are fire-and-forget)
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				ev, err := UnmarshalEvent(delivery.Body)
				if err != nil {
					slog.ErrorContext(ctx, "Failed to unmarshal change event", "error", err)
					continue
				}
				fn(ev)
			}
		}
	}()

	return &amqpSub{channel: channel}, nil
}

// Close shuts the publishing channel and the connection.
func (n *AMQPNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

type amqpSub struct {
	channel *amqp091.Channel
}

func (s *amqpSub) Cancel() error {
	return s.channel.Close()
}
