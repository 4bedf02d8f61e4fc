package rabbitmq

import amqp "github.com/rabbitmq/amqp091-go"

// message adapts an amqp.Delivery to core.Message.
type message struct {
	delivery amqp.Delivery
}

func (m *message) Topic() string   { return m.delivery.RoutingKey }
func (m *message) Payload() []byte { return m.delivery.Body }
