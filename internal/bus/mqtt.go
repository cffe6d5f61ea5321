package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/smartport-kiosk/smartport/internal/obs"
)

type MQTTConfig struct {
	Broker         string // e.g. "tcp://localhost:1883"
	ClientIDPrefix string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTT is a paho-backed Conn. It reconnects on its own and re-subscribes
// every registered topic after each reconnect.
type MQTT struct {
	client mqtt.Client
	cfg    MQTTConfig
	state  *ConnState
	logger *log.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

var _ Conn = (*MQTT)(nil)

func NewMQTT(cfg MQTTConfig, logger *log.Logger) *MQTT {
	if cfg.ClientIDPrefix == "" {
		cfg.ClientIDPrefix = "smartport"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	m := &MQTT{
		cfg:    cfg,
		state:  NewConnState(cfg.Broker),
		logger: logger,
		subs:   make(map[string]Handler),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientIDPrefix + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	m.client = mqtt.NewClient(opts)
	return m
}

// Connect starts connecting in the background. It waits up to the
// connect timeout so a reachable broker is up before serving; an
// unreachable broker is not an error, the client keeps retrying.
func (m *MQTT) Connect(ctx context.Context) {
	tok := m.client.Connect()
	wait := m.cfg.ConnectTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < wait {
		wait = time.Until(dl)
	}
	if !tok.WaitTimeout(wait) {
		m.logger.Printf("bus broker=%s not reachable yet, retrying in background", m.cfg.Broker)
		return
	}
	if err := tok.Error(); err != nil {
		m.state.SetDisconnected(err)
		m.logger.Printf("bus connect broker=%s: %v", m.cfg.Broker, err)
	}
}

func (m *MQTT) onConnect(c mqtt.Client) {
	m.state.SetConnected()
	obs.BusConnected.Set(1)
	m.logger.Printf("bus connected broker=%s", m.cfg.Broker)

	m.mu.Lock()
	subs := make(map[string]Handler, len(m.subs))
	for t, h := range m.subs {
		subs[t] = h
	}
	m.mu.Unlock()

	for topic, h := range subs {
		m.subscribe(c, topic, h)
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.state.SetDisconnected(err)
	obs.BusConnected.Set(0)
	m.logger.Printf("bus connection lost: %v", err)
}

func (m *MQTT) subscribe(c mqtt.Client, topic string, h Handler) {
	tok := c.Subscribe(topic, m.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	})
	go func() {
		if tok.WaitTimeout(m.cfg.ConnectTimeout) && tok.Error() != nil {
			m.logger.Printf("bus subscribe topic=%s: %v", topic, tok.Error())
		}
	}()
}

// Subscribe registers h for topic. It takes effect immediately when
// connected and on every later reconnect.
func (m *MQTT) Subscribe(topic string, h Handler) error {
	m.mu.Lock()
	m.subs[topic] = h
	m.mu.Unlock()

	if m.client.IsConnectionOpen() {
		m.subscribe(m.client, topic, h)
	}
	return nil
}

func (m *MQTT) Publish(_ context.Context, topic string, payload []byte) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	tok := m.client.Publish(topic, m.cfg.QoS, false, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("bus publish %s: %w", topic, err)
		}
	default:
	}
	return nil
}

func (m *MQTT) State() *ConnState { return m.state }

func (m *MQTT) Close() {
	m.client.Disconnect(250)
	m.state.SetDisconnected(nil)
	obs.BusConnected.Set(0)
}
