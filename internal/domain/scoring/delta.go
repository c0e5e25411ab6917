package scoring

import "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

// RatingDelta maps an average peer rating (1..10) to an OVR change:
// one point per half rating away from the neutral 5.
func RatingDelta(avgRating float64) int {
	return RoundHalfUp((avgRating - neutralRating) * 2)
}

// ApplyRatingDelta adds delta to current and clamps the result.
func ApplyRatingDelta(current, delta int) int {
	return Clamp(current+delta, MinEvaluatedOVR, MaxEvaluatedOVR)
}

// AttributeIntensity buckets an average rating into an attribute nudge.
func AttributeIntensity(avgRating float64) int {
	switch {
	case avgRating >= 9:
		return 2
	case avgRating >= 7:
		return 1
	case avgRating <= 3:
		return -2
	case avgRating <= 5:
		return -1
	}
	return 0
}

// AttributeChanges returns the per-attribute nudge for a position. A zero
// intensity yields no changes.
func AttributeChanges(pos model.Position, intensity int) map[string]int {
	if intensity == 0 {
		return nil
	}
	i := intensity
	switch pos {
	case model.PositionGK, model.PositionDEF:
		return map[string]int{model.AttrDefending: 2 * i, model.AttrPhysical: i, model.AttrPassing: i}
	case model.PositionMID:
		return map[string]int{model.AttrPassing: 2 * i, model.AttrDribbling: i, model.AttrPace: i}
	case model.PositionFWD:
		return map[string]int{model.AttrShooting: 2 * i, model.AttrPace: i, model.AttrDribbling: i}
	}
	half := RoundHalfUp(float64(i) / 2)
	out := make(map[string]int, len(model.AttributeNames))
	for _, name := range model.AttributeNames {
		out[name] = half
	}
	return out
}

// ApplyAttributeChanges returns a copy of a with changes applied and each
// touched attribute clamped.
func ApplyAttributeChanges(a model.Attributes, changes map[string]int) model.Attributes {
	for name, d := range changes {
		a.Set(name, Clamp(a.Get(name)+d, MinEvaluatedAttribute, MaxEvaluatedAttribute))
	}
	return a
}
