package balancer

import "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

// maxSwapOVRGap bounds cross-position swaps between outfield players.
const maxSwapOVRGap = 10

// epsilon keeps float noise from counting as an improvement.
const epsilon = 1e-9

// optimize repeatedly commits the first swap that strictly narrows the OVR
// gap, restarting the scan after each commit. It stops after a full pass
// without improvement or after maxIterations passes.
func optimize(teamA, teamB []candidate, maxIterations int) (iterations, swaps int) {
	for iterations < maxIterations {
		iterations++
		if !improve(teamA, teamB, gap(teamA, teamB)) {
			break
		}
		swaps++
	}
	return iterations, swaps
}

func improve(teamA, teamB []candidate, current float64) bool {
	for i := range teamA {
		for j := range teamB {
			if !canSwap(teamA[i], teamB[j]) {
				continue
			}
			teamA[i], teamB[j] = teamB[j], teamA[i]
			if gap(teamA, teamB) < current-epsilon {
				return true
			}
			teamA[i], teamB[j] = teamB[j], teamA[i]
		}
	}
	return false
}

// canSwap allows same-position swaps, and swaps between outfield players
// whose OVRs are within maxSwapOVRGap. Keepers only trade with keepers.
func canSwap(x, y candidate) bool {
	if x.Position == y.Position {
		return true
	}
	if x.Position == model.PositionGK || y.Position == model.PositionGK {
		return false
	}
	d := x.OVR - y.OVR
	if d < 0 {
		d = -d
	}
	return d <= maxSwapOVRGap
}
