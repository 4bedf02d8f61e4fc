package kafka

import "github.com/segmentio/kafka-go"

// message adapts a kafka.Message to core.Message.
type message struct {
	raw kafka.Message
}

func (m *message) Topic() string   { return m.raw.Topic }
func (m *message) Payload() []byte { return m.raw.Value }
