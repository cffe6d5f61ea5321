package bus_test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smartport-kiosk/smartport/internal/bus"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type recordingHandlers struct {
	mu      sync.Mutex
	tags    []string
	weights []string
	panicOn string
}

func (h *recordingHandlers) HandleTagPresented(_ context.Context, raw string) types.DoorDecision {
	if raw == h.panicOn {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tags = append(h.tags, raw)
	return types.DoorDecision{Granted: true, Reason: types.DoorReasonAuthorized}
}

func (h *recordingHandlers) Ingest(_ context.Context, payload string) (types.WeightReading, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.weights = append(h.weights, payload)
	return types.WeightReading{}, nil
}

func (h *recordingHandlers) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tags), len(h.weights)
}

func TestDispatcher_RoutesByTopicInOrder(t *testing.T) {
	m := bus.NewMemory()
	h := &recordingHandlers{panicOn: "BAD"}
	topics := bus.DefaultTopics()
	d := bus.NewDispatcher(m, topics, h, h, silentLogger())
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	m.Inject(topics.Weight, "1,25")
	m.Inject(topics.TagPresented, "BAD")
	m.Inject(topics.TagPresented, "A1B2C3D4")
	m.Inject(topics.Weight, "abc")
	m.Inject("other/topic", "ignored")

	require.Eventually(t, func() bool {
		tags, weights := h.counts()
		return tags == 1 && weights == 2
	}, time.Second, 5*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Equal(t, []string{"A1B2C3D4"}, h.tags)
	require.Equal(t, []string{"1,25", "abc"}, h.weights)
}

func TestMemory_PublishRespectsConnection(t *testing.T) {
	m := bus.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, "door/response", []byte("ABRIR")))
	m.State().SetDisconnected(io.ErrClosedPipe)
	require.ErrorIs(t, m.Publish(ctx, "door/response", []byte("ABRIR")), bus.ErrNotConnected)

	snap := m.State().Snapshot()
	require.False(t, snap.Connected)
	require.Equal(t, io.ErrClosedPipe.Error(), snap.LastError)
	require.Len(t, m.Published("door/response"), 1)
}
