package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"research-chatbot/internal/config"
)

// Conn bundles the AMQP connection with the channel used for the turn
// persist queue.
type Conn struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Connect(cfg *config.Config) (*Conn, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.RabbitMQ.TurnPersistQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s failed: %w", cfg.RabbitMQ.TurnPersistQueue, err)
	}

	return &Conn{conn: conn, channel: ch}, nil
}

func (c *Conn) Channel() *amqp.Channel {
	return c.channel
}

func (c *Conn) IsClosed() bool {
	return c.conn.IsClosed()
}

// NewChannel opens an extra channel on the same connection, so consumers do
// not share a channel with publishers.
func (c *Conn) NewChannel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	return ch, nil
}

func (c *Conn) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("close rabbitmq channel failed: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection failed: %w", err)
	}
	return nil
}
