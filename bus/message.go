package bus

import (
	"encoding/json"

	"github.com/go-errors/errors"
)

// Message is the envelope exchanged on the assistant's message bus.
type Message struct {
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Context map[string]interface{} `json:"context"`
}

func NewMessage(msgType string, data map[string]interface{}) *Message {
	if data == nil {
		data = map[string]interface{}{}
	}

	return &Message{
		Type:    msgType,
		Data:    data,
		Context: map[string]interface{}{},
	}
}

// Reply builds a message of the given type that carries this message's
// context, so the bus can route it back to the requester.
func (m *Message) Reply(msgType string, data map[string]interface{}) *Message {
	reply := NewMessage(msgType, data)

	for k, v := range m.Context {
		reply.Context[k] = v
	}

	return reply
}

// String returns the value under key, or "" when it is absent or not a string.
func (m *Message) String(key string) string {
	if m.Data == nil {
		return ""
	}

	s, _ := m.Data[key].(string)

	return s
}

// Bool returns the value under key, or false when it is absent or not a bool.
func (m *Message) Bool(key string) bool {
	if m.Data == nil {
		return false
	}

	b, _ := m.Data[key].(bool)

	return b
}

func (m *Message) Serialize() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Errorf("could not serialize %v: %v", m.Type, err)
	}

	return payload, nil
}

func Deserialize(payload []byte) (*Message, error) {
	msg := &Message{}

	err := json.Unmarshal(payload, msg)
	if err != nil {
		return nil, errors.Errorf("could not deserialize message: %v", err)
	}

	if msg.Type == "" {
		return nil, errors.New("message has no type")
	}

	if msg.Data == nil {
		msg.Data = map[string]interface{}{}
	}

	if msg.Context == nil {
		msg.Context = map[string]interface{}{}
	}

	return msg, nil
}
