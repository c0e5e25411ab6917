// Package scoring holds the pure rating functions shared by the balancer
// and the evaluation workflow.
package scoring

import (
	"math"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// OVR bounds applied after peer-evaluation recalculations.
const (
	MinEvaluatedOVR = 40
	MaxEvaluatedOVR = 99
)

// Attribute bounds applied when evaluations nudge attributes.
const (
	MinEvaluatedAttribute = 20
	MaxEvaluatedAttribute = 99
)

// neutralRating is the rating that leaves OVR unchanged.
const neutralRating = 5.0

// RoundHalfUp rounds to the nearest integer, halves towards +Inf.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// CalculateOVR returns the rounded mean of the six attributes.
func CalculateOVR(a model.Attributes) int {
	sum := 0
	vals := a.Values()
	for _, v := range vals {
		sum += v
	}
	return RoundHalfUp(float64(sum) / float64(len(vals)))
}

// CalculateTeamOVR returns the rounded mean of the given OVRs, 0 for none.
func CalculateTeamOVR(ovrs []int) int {
	if len(ovrs) == 0 {
		return 0
	}
	return RoundHalfUp(Mean(ovrs))
}

// TeamOVR is CalculateTeamOVR over players.
func TeamOVR(players []model.Player) int {
	ovrs := make([]int, len(players))
	for i, p := range players {
		ovrs[i] = p.OVR
	}
	return CalculateTeamOVR(ovrs)
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
