package service

import (
	"math"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// Similarity maps the euclidean distance between two embeddings onto
// 0-100: identical vectors score 100, distance >= 1 scores 0. Mismatched,
// empty or non-finite input scores 0.
func Similarity(a, b types.Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	dist := math.Sqrt(sum)
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return 0
	}
	score := (1 - dist) * 100
	return math.Max(0, math.Min(100, score))
}

// RoundScore rounds a similarity to two decimals for reporting.
func RoundScore(s float64) float64 {
	return math.Round(s*100) / 100
}

// Matcher applies the live match threshold.
type Matcher struct {
	policy *PolicyHolder
}

func NewMatcher(policy *PolicyHolder) *Matcher {
	return &Matcher{policy: policy}
}

// Match returns the rounded similarity of a live capture against an
// enrolled embedding and whether that reported score clears the threshold.
func (m *Matcher) Match(enrolled, live types.Embedding) (float64, bool) {
	s := RoundScore(Similarity(enrolled, live))
	return s, s >= m.policy.Load().MatchThreshold
}
