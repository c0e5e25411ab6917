package scoring

import "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

// weight pairs an attribute with its share of a position score.
type weight struct {
	attr  string
	share float64
}

var positionWeights = map[model.Position][]weight{
	model.PositionGK: {
		{model.AttrDefending, 0.4}, {model.AttrPhysical, 0.3}, {model.AttrPassing, 0.2}, {model.AttrPace, 0.1},
	},
	model.PositionDEF: {
		{model.AttrDefending, 0.35}, {model.AttrPhysical, 0.25}, {model.AttrPace, 0.2}, {model.AttrPassing, 0.2},
	},
	model.PositionMID: {
		{model.AttrPassing, 0.3}, {model.AttrDribbling, 0.25}, {model.AttrDefending, 0.2}, {model.AttrPhysical, 0.25},
	},
	model.PositionFWD: {
		{model.AttrShooting, 0.35}, {model.AttrPace, 0.25}, {model.AttrDribbling, 0.25}, {model.AttrPhysical, 0.15},
	},
}

// PositionScore is the position-weighted attribute score. Unknown positions
// fall back to the plain attribute mean.
func PositionScore(pos model.Position, a model.Attributes) int {
	ws, ok := positionWeights[pos]
	if !ok {
		return CalculateOVR(a)
	}
	var sum, total float64
	for _, w := range ws {
		sum += float64(a.Get(w.attr)) * w.share
		total += w.share
	}
	return RoundHalfUp(sum / total)
}

// OverallScore orders balancing candidates: half stored OVR, 30% position
// fit, 20% raw attribute mean.
func OverallScore(p model.Player) int {
	avg := Mean(p.Attributes.Values())
	return RoundHalfUp(float64(p.OVR)*0.5 + float64(PositionScore(p.Position, p.Attributes))*0.3 + avg*0.2)
}
