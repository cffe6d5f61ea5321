package service_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/store/memory"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var (
	testCodec    = types.EmbeddingCodec{Dim: 4, Width: types.Float64}
	anaFace      = types.Embedding{0.10, 0.20, 0.30, 0.40}
	anaLiveFace  = types.Embedding{0.11, 0.21, 0.29, 0.41}
	strangerFace = types.Embedding{0.90, 0.80, 0.70, 0.60}
)

// recordingPublisher captures published payloads. When failOn matches a
// payload the publish fails.
type recordingPublisher struct {
	mu     sync.Mutex
	msgs   []string
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != "" && string(payload) == p.failOn {
		return errors.New("not connected")
	}
	p.msgs = append(p.msgs, topic+":"+string(payload))
	return nil
}

func (p *recordingPublisher) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.msgs...)
}

type kiosk struct {
	store   *memory.Store
	reader  *device.SimulatedReader
	camera  *device.StaticCapturer
	pub     *recordingPublisher
	policy  *service.PolicyHolder
	enroll  *service.EnrollmentService
	verify  *service.VerificationService
	door    *service.DoorService
	admin   *service.AdminService
	weights *service.WeightService
}

func newKiosk() *kiosk {
	k := &kiosk{
		store:  memory.New(),
		reader: device.NewSimulatedReader(),
		camera: device.NewStaticCapturer(nil),
		pub:    &recordingPublisher{},
		policy: service.NewPolicyHolder(service.DefaultPolicy()),
	}
	logger := silentLogger()
	k.enroll = service.NewEnrollmentService(k.store, k.reader, k.camera, testCodec, logger)
	k.verify = service.NewVerificationService(k.store, k.reader, k.camera, service.NewMatcher(k.policy), logger)
	k.door = service.NewDoorService(k.store, k.pub, service.DefaultDoorConfig(), logger)
	k.admin = service.NewAdminService(k.store, k.reader, nil, logger)
	k.weights = service.NewWeightService(k.store, k.policy, logger)
	return k
}
