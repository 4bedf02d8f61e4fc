package nats

import "github.com/nats-io/nats.go"

// message adapts a NATS message to core.Message.
type message struct {
	msg *nats.Msg
}

func (m *message) Topic() string   { return m.msg.Subject }
func (m *message) Payload() []byte { return m.msg.Data }
