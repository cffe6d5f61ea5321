package device

import (
	"context"
	"sync"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// SimulatedReader delivers tags pushed with Present. Used in dev mode and
// tests when no reader hardware is attached.
type SimulatedReader struct {
	tags chan string
}

func NewSimulatedReader() *SimulatedReader {
	return &SimulatedReader{tags: make(chan string, 16)}
}

// Present queues a tag as if a card had been tapped. It never blocks; when
// the queue is full the tag is dropped and false is returned.
func (r *SimulatedReader) Present(tag string) bool {
	select {
	case r.tags <- tag:
		return true
	default:
		return false
	}
}

func (r *SimulatedReader) ReadTag(ctx context.Context) (string, error) {
	select {
	case tag := <-r.tags:
		return types.NormalizeTagCode(tag), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// StaticCapturer returns queued capture results in order, then repeats
// the fallback. An empty result means "no face".
type StaticCapturer struct {
	mu       sync.Mutex
	queue    []types.Embedding
	fallback types.Embedding
	calls    int
}

func NewStaticCapturer(fallback types.Embedding) *StaticCapturer {
	return &StaticCapturer{fallback: fallback}
}

// Enqueue adds one capture result ahead of the fallback.
func (c *StaticCapturer) Enqueue(e types.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, e)
}

func (c *StaticCapturer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *StaticCapturer) Capture(ctx context.Context) (types.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	e := c.fallback
	if len(c.queue) > 0 {
		e = c.queue[0]
		c.queue = c.queue[1:]
	}
	if len(e) == 0 {
		return nil, ErrNoFace
	}
	return append(types.Embedding(nil), e...), nil
}
