package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// gRPC health service names.
const (
	HealthOverall = ""
	HealthStore   = "smartport.store"
	HealthBus     = "smartport.bus"
	HealthReader  = "smartport.reader"
)

// GRPCHealth publishes Probes through the standard grpc.health.v1 service.
type GRPCHealth struct {
	probes Probes
	srv    *health.Server
}

func NewGRPCHealth(p Probes) *GRPCHealth {
	h := &GRPCHealth{probes: p, srv: health.NewServer()}
	h.Refresh(context.Background())
	return h
}

func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh re-evaluates every probe. The overall status follows the store.
func (h *GRPCHealth) Refresh(ctx context.Context) {
	storeOK := h.probes.storeOK(ctx)
	h.srv.SetServingStatus(HealthStore, servingStatus(storeOK))
	h.srv.SetServingStatus(HealthBus, servingStatus(h.probes.busOK()))
	h.srv.SetServingStatus(HealthReader, servingStatus(h.probes.ReaderSimulated || h.probes.readerOK()))
	h.srv.SetServingStatus(HealthOverall, servingStatus(storeOK))
}

// Run refreshes on every interval until ctx is done, then marks everything
// NOT_SERVING.
func (h *GRPCHealth) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Refresh(ctx)
		}
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
