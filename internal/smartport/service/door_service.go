package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// Publisher sends a payload on the message bus. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type DoorConfig struct {
	ResponseTopic string
	OpenPayload   string
	DenyPayload   string
}

func DefaultDoorConfig() DoorConfig {
	return DoorConfig{
		ResponseTopic: "door/response",
		OpenPayload:   "ABRIR",
		DenyPayload:   "DENEGAR",
	}
}

// DoorService answers tags presented at the boarding gate. The gate opens
// at most once per passenger: the open signal is published inside the
// store transaction that marks the door actuated, so a failed publish
// leaves the passenger able to try again.
type DoorService struct {
	store  store.DoorStore
	pub    Publisher
	cfg    DoorConfig
	logger *log.Logger
	now    func() time.Time
}

func NewDoorService(s store.DoorStore, pub Publisher, cfg DoorConfig, logger *log.Logger) *DoorService {
	def := DefaultDoorConfig()
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = def.ResponseTopic
	}
	if cfg.OpenPayload == "" {
		cfg.OpenPayload = def.OpenPayload
	}
	if cfg.DenyPayload == "" {
		cfg.DenyPayload = def.DenyPayload
	}
	return &DoorService{
		store:  s,
		pub:    pub,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleTagPresented decides on a raw tag from the gate reader and
// publishes the answer. It never returns an error or panics; every
// failure ends in a deny.
func (s *DoorService) HandleTagPresented(ctx context.Context, raw string) (d types.DoorDecision) {
	tag := types.NormalizeTagCode(raw)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("door tag=%s panic: %v", tag, r)
			d = s.internalDeny(tag)
			s.publish(ctx, s.cfg.DenyPayload)
		}
		result := "denied"
		if d.Granted {
			result = "granted"
		}
		obs.DoorDecisions.WithLabelValues(result, d.Reason).Inc()
	}()

	if tag == "" {
		d = types.DoorDecision{Reason: types.DoorReasonUnknownTag, DecidedAt: s.now()}
		s.publish(ctx, s.cfg.DenyPayload)
		s.logger.Printf("door empty tag payload=%q denied", raw)
		return d
	}

	d, err := s.store.AuthorizeDoor(ctx, tag, func(ctx context.Context) error {
		return s.pub.Publish(ctx, s.cfg.ResponseTopic, []byte(s.cfg.OpenPayload))
	})
	if err != nil {
		s.logger.Printf("door tag=%s authorize failed: %v", tag, err)
		d = s.internalDeny(tag)
	}

	if !d.Granted {
		s.publish(ctx, s.cfg.DenyPayload)
		s.logger.Printf("door tag=%s denied reason=%s", tag, d.Reason)
		return d
	}

	s.logger.Printf("door tag=%s passenger=%d granted state=%s", tag, d.PassengerID, d.State)
	return d
}

func (s *DoorService) internalDeny(tag string) types.DoorDecision {
	return types.DoorDecision{
		Reason:    types.DoorReasonInternalError,
		TagCode:   tag,
		DecidedAt: s.now(),
	}
}

func (s *DoorService) publish(ctx context.Context, payload string) {
	if err := s.pub.Publish(ctx, s.cfg.ResponseTopic, []byte(payload)); err != nil {
		s.logger.Printf("door publish %s failed: %v", payload, err)
	}
}

// String is used in log lines.
func (c DoorConfig) String() string {
	return fmt.Sprintf("topic=%s open=%s deny=%s", c.ResponseTopic, c.OpenPayload, c.DenyPayload)
}
