package bus

import (
	"context"
	"sync"
)

// Message is a published payload recorded by Memory.
type Message struct {
	Topic   string
	Payload string
}

// Memory is an in-process Conn for tests and runs without a broker.
// Publishing to a topic delivers synchronously to its subscribers.
type Memory struct {
	mu        sync.Mutex
	subs      map[string][]Handler
	published []Message
	state     *ConnState
}

var _ Conn = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{subs: make(map[string][]Handler), state: NewConnState("memory")}
	m.state.SetConnected()
	return m
}

func (m *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	if !m.state.Connected() {
		return ErrNotConnected
	}
	m.mu.Lock()
	m.published = append(m.published, Message{Topic: topic, Payload: string(payload)})
	handlers := append([]Handler(nil), m.subs[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

func (m *Memory) Subscribe(topic string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[topic] = append(m.subs[topic], h)
	return nil
}

// Inject delivers an inbound message as if it came from the broker,
// regardless of connection state.
func (m *Memory) Inject(topic string, payload string) {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.subs[topic]...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(topic, []byte(payload))
	}
}

// Published returns the messages published on topic, or all when topic
// is empty.
func (m *Memory) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.published {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Memory) State() *ConnState { return m.state }

func (m *Memory) Close() { m.state.SetDisconnected(nil) }
