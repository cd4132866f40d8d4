package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"research-chatbot/internal/model"
)

// TurnPublisher pushes resolved turns onto the persist queue so the HTTP path
// never blocks on a MySQL write. Publishes happen under the session lock, so
// turns of one session always arrive in order.
type TurnPublisher struct {
	channel *amqp.Channel
	queue   string
}

func NewTurnPublisher(conn *Conn, queue string) *TurnPublisher {
	return &TurnPublisher{channel: conn.Channel(), queue: queue}
}

func (p *TurnPublisher) Publish(ctx context.Context, turn *model.Turn) error {
	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn failed: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish turn failed: %w", err)
	}
	return nil
}
