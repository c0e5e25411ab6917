package balancer

import "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

// distribute runs the position-priority phase followed by the greedy
// remainder phase. pool must be sorted best first.
func distribute(pool []candidate, perTeam int) (teamA, teamB []candidate) {
	groups := make(map[model.Position][]candidate)
	for _, c := range pool {
		pos := c.Position
		if pos == "" {
			pos = model.PositionMID
		}
		groups[pos] = append(groups[pos], c)
	}
	placed := make([]bool, len(pool))
	put := func(team *[]candidate, c candidate) {
		*team = append(*team, c)
		placed[c.idx] = true
	}

	keepers := groups[model.PositionGK]
	switch {
	case len(keepers) >= 2:
		put(&teamA, keepers[0])
		put(&teamB, keepers[1])
	case len(keepers) == 1:
		if len(teamA) <= len(teamB) {
			put(&teamA, keepers[0])
		} else {
			put(&teamB, keepers[0])
		}
	}

	for _, pos := range []model.Position{model.PositionDEF, model.PositionMID, model.PositionFWD} {
		for i, c := range groups[pos] {
			roomA, roomB := len(teamA) < perTeam, len(teamB) < perTeam
			if !roomA && !roomB {
				break
			}
			first, second := &teamA, &teamB
			if i%2 == 1 {
				first, second = &teamB, &teamA
			}
			if len(*first) < perTeam {
				put(first, c)
			} else {
				put(second, c)
			}
		}
	}

	for _, c := range pool {
		if placed[c.idx] {
			continue
		}
		roomA, roomB := len(teamA) < perTeam, len(teamB) < perTeam
		switch {
		case roomA && roomB:
			if preferA(teamA, teamB) {
				put(&teamA, c)
			} else {
				put(&teamB, c)
			}
		case roomA:
			put(&teamA, c)
		case roomB:
			put(&teamB, c)
		default:
			return teamA, teamB
		}
	}
	return teamA, teamB
}

// preferA picks the weaker side, then the smaller one, then A.
func preferA(teamA, teamB []candidate) bool {
	avgA, avgB := avgOVR(teamA), avgOVR(teamB)
	if avgA != avgB {
		return avgA < avgB
	}
	return len(teamA) <= len(teamB)
}
