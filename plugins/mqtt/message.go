package mqtt

import paho "github.com/eclipse/paho.mqtt.golang"

// message adapts a paho message to core.Message.
type message struct {
	msg paho.Message
}

func (m *message) Topic() string   { return m.msg.Topic() }
func (m *message) Payload() []byte { return m.msg.Payload() }
