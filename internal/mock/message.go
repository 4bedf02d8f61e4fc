package mock

// Message is a simple core.Message implementation for testing.
type Message struct {
	T string
	P []byte
}

func (m *Message) Topic() string   { return m.T }
func (m *Message) Payload() []byte { return m.P }
