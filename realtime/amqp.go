package realtime

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bookbarn/storefront-go/model"
)

// Topic builds the actor-scoped routing key each portal subscribes to.
func Topic(actor model.Actor) string {
	switch actor.Role {
	case model.RoleVendor:
		return fmt.Sprintf("vendor.%d", actor.ID)
	case model.RoleDeliveryAgent:
		return fmt.Sprintf("delivery.%d", actor.ID)
	case model.RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("customer.%d", actor.ID)
	}
}

// AMQPDialer connects to the storefront's event broker.
type AMQPDialer struct {
	URL      string
	Exchange string
}

func (d AMQPDialer) Dial() (Conn, error) {
	conn, err := amqp.Dial(d.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(d.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &amqpConn{conn: conn, ch: ch, exchange: d.Exchange}, nil
}

type amqpConn struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (c *amqpConn) Consume(topic string) (<-chan []byte, error) {
	// exclusive auto-delete queue per session, bound to the actor topic
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}
	if err := c.ch.QueueBind(q.Name, topic, c.exchange, false, nil); err != nil {
		return nil, err
	}
	msgs, err := c.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		for d := range msgs {
			out <- d.Body
		}
	}()
	return out, nil
}

func (c *amqpConn) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	return c.conn.Close()
}
