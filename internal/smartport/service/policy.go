package service

import (
	"sync/atomic"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// Policy holds the tunables that may change while the server runs.
type Policy struct {
	// MatchThreshold is the minimum similarity (0-100) for a face match.
	MatchThreshold float64

	// Advisory band for scale readings; values outside are logged, not
	// rejected.
	WeightMinKg float64
	WeightMaxKg float64

	// Dashboard classification.
	WarningKg    float64
	OverweightKg float64
}

func DefaultPolicy() Policy {
	return Policy{
		MatchThreshold: 60,
		WeightMinKg:    0.100,
		WeightMaxKg:    50.0,
		WarningKg:      20,
		OverweightKg:   23,
	}
}

// Classify buckets a weight for the dashboard.
func (p Policy) Classify(kg float64) types.WeightClass {
	switch {
	case kg > p.OverweightKg:
		return types.WeightOverweight
	case kg > p.WarningKg:
		return types.WeightWarning
	}
	return types.WeightNormal
}

// PolicyHolder shares the current Policy between request handlers and the
// config watcher.
type PolicyHolder struct {
	p atomic.Pointer[Policy]
}

func NewPolicyHolder(p Policy) *PolicyHolder {
	h := &PolicyHolder{}
	h.Store(p)
	return h
}

func (h *PolicyHolder) Load() Policy {
	return *h.p.Load()
}

func (h *PolicyHolder) Store(p Policy) {
	h.p.Store(&p)
}
