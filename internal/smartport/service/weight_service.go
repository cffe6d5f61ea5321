package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

const (
	DefaultDashboardLimit = 50
	MaxDashboardLimit     = 500
)

var errNotFinite = errors.New("weight is not a finite number")

// ParseWeight accepts a decimal with either '.' or ',' as separator.
func ParseWeight(payload string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(payload), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// WeightService records scale readings and serves the weight dashboard.
type WeightService struct {
	store  store.WeightStore
	policy *PolicyHolder
	logger *log.Logger
	now    func() time.Time
}

func NewWeightService(s store.WeightStore, policy *PolicyHolder, logger *log.Logger) *WeightService {
	return &WeightService{
		store:  s,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores one scale payload. Unparseable payloads are kept as a
// zero reading flagged ParseError. The returned error is only ever a
// storage failure.
func (s *WeightService) Ingest(ctx context.Context, payload string) (types.WeightReading, error) {
	r := types.WeightReading{RawPayload: payload, RecordedAt: s.now()}

	kg, err := ParseWeight(payload)
	switch {
	case err != nil:
		r.ParseError = true
		obs.WeightReadings.WithLabelValues("parse_error").Inc()
		s.logger.Printf("weight parse error payload=%q: %v", payload, err)
	default:
		r.WeightKg = kg
		p := s.policy.Load()
		switch {
		case kg < p.WeightMinKg:
			obs.WeightReadings.WithLabelValues("below_min").Inc()
			s.logger.Printf("weight warning kg=%.3f below min=%.3f", kg, p.WeightMinKg)
		case kg > p.WeightMaxKg:
			obs.WeightReadings.WithLabelValues("above_max").Inc()
			s.logger.Printf("weight warning kg=%.3f above max=%.3f", kg, p.WeightMaxKg)
		default:
			obs.WeightReadings.WithLabelValues("ok").Inc()
		}
	}

	saved, err := s.store.RecordWeight(ctx, r)
	if err != nil {
		s.logger.Printf("weight store error kg=%.3f parse_error=%t: %v", r.WeightKg, r.ParseError, err)
		return r, fmt.Errorf("record weight: %w", err)
	}
	return saved, nil
}

// ClassifiedReading is a reading tagged with its dashboard class.
type ClassifiedReading struct {
	types.WeightReading
	Class types.WeightClass `json:"clase"`
}

type Dashboard struct {
	Readings []ClassifiedReading `json:"pesos"`
	Today    types.WeightStats   `json:"estadisticas"`
}

// Dashboard returns the latest readings, newest first, and today's (UTC)
// statistics.
func (s *WeightService) Dashboard(ctx context.Context, limit int) (Dashboard, error) {
	if limit <= 0 {
		limit = DefaultDashboardLimit
	}
	if limit > MaxDashboardLimit {
		limit = MaxDashboardLimit
	}
	p := s.policy.Load()

	readings, err := s.store.ListWeights(ctx, limit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard readings: %w", err)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.store.WeightStatsSince(ctx, midnight, p.OverweightKg)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard stats: %w", err)
	}
	stats.Average = RoundScore(stats.Average)

	out := Dashboard{Readings: make([]ClassifiedReading, 0, len(readings)), Today: stats}
	for _, r := range readings {
		out.Readings = append(out.Readings, ClassifiedReading{WeightReading: r, Class: p.Classify(r.WeightKg)})
	}
	return out, nil
}
