package bus

import (
	"context"
	"log"
	"time"

	"github.com/smartport-kiosk/smartport/internal/ids"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

type Kind string

const (
	KindTagPresented Kind = "tag_presented"
	KindWeightSample Kind = "weight_sample"
)

// Event is an inbound message classified by topic.
type Event struct {
	ID         string
	Kind       Kind
	Topic      string
	Payload    string
	ReceivedAt time.Time
}

type DoorHandler interface {
	HandleTagPresented(ctx context.Context, raw string) types.DoorDecision
}

type WeightHandler interface {
	Ingest(ctx context.Context, payload string) (types.WeightReading, error)
}

// Dispatcher subscribes to the inbound topics and feeds events, one at a
// time and in arrival order, to the door and weight handlers.
type Dispatcher struct {
	conn    Conn
	topics  Topics
	door    DoorHandler
	weights WeightHandler
	logger  *log.Logger

	// HandleTimeout bounds each handler call.
	HandleTimeout time.Duration

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(conn Conn, topics Topics, door DoorHandler, weights WeightHandler, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		conn:          conn,
		topics:        topics,
		door:          door,
		weights:       weights,
		logger:        logger,
		HandleTimeout: 10 * time.Second,
		events:        make(chan Event, 256),
		done:          make(chan struct{}),
	}
}

// Start subscribes and launches the consume loop. Stop ends it.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	if err := d.conn.Subscribe(d.topics.TagPresented, d.enqueue(ctx, KindTagPresented)); err != nil {
		d.cancel()
		return err
	}
	if err := d.conn.Subscribe(d.topics.Weight, d.enqueue(ctx, KindWeightSample)); err != nil {
		d.cancel()
		return err
	}

	go d.loop(ctx)
	d.logger.Printf("bus dispatcher started tags=%s weights=%s", d.topics.TagPresented, d.topics.Weight)
	return nil
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

// enqueue blocks the delivering goroutine when the queue is full rather
// than dropping a message.
func (d *Dispatcher) enqueue(ctx context.Context, kind Kind) Handler {
	return func(topic string, payload []byte) {
		now := time.Now().UTC()
		ev := Event{ID: ids.NewAt(now), Kind: kind, Topic: topic, Payload: string(payload), ReceivedAt: now}
		select {
		case d.events <- ev:
		case <-ctx.Done():
			d.logger.Printf("bus event=%s kind=%s dropped at shutdown", ev.ID, kind)
		}
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	hctx, cancel := context.WithTimeout(ctx, d.HandleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("bus event=%s kind=%s handler panic: %v", ev.ID, ev.Kind, r)
		}
	}()

	switch ev.Kind {
	case KindTagPresented:
		dec := d.door.HandleTagPresented(hctx, ev.Payload)
		d.logger.Printf("bus event=%s door granted=%t reason=%s", ev.ID, dec.Granted, dec.Reason)
	case KindWeightSample:
		if _, err := d.weights.Ingest(hctx, ev.Payload); err != nil {
			d.logger.Printf("bus event=%s weight ingest: %v", ev.ID, err)
		}
	}
}
