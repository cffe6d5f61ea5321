// Package bus connects the kiosk to the gate controllers and scales over
// a publish/subscribe broker.
package bus

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotConnected = errors.New("bus: not connected")

// Handler receives raw inbound messages. It runs on the transport's
// delivery goroutine and must not block for long.
type Handler func(topic string, payload []byte)

// Conn is a broker connection.
type Conn interface {
	// Publish is fire-and-forget: only immediate failures such as a
	// dropped connection are reported.
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, h Handler) error
	State() *ConnState
	Close()
}

type Topics struct {
	TagPresented string
	DoorResponse string
	Weight       string
}

func DefaultTopics() Topics {
	return Topics{
		TagPresented: "door/tag-presented",
		DoorResponse: "door/response",
		Weight:       "scale/weight",
	}
}

// ConnState tracks broker connectivity for health reporting.
type ConnState struct {
	mu        sync.RWMutex
	connected bool
	since     time.Time
	lastErr   error
	broker    string
}

func NewConnState(broker string) *ConnState {
	return &ConnState{broker: broker, since: time.Now().UTC()}
}

func (s *ConnState) SetConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.lastErr = nil
	s.since = time.Now().UTC()
}

func (s *ConnState) SetDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.lastErr = err
	s.since = time.Now().UTC()
}

func (s *ConnState) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

type StateSnapshot struct {
	Connected bool
	Broker    string
	Since     time.Time
	LastError string
}

func (s *ConnState) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StateSnapshot{Connected: s.connected, Broker: s.broker, Since: s.since}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}
