package routing

import (
	"sort"

	"thor-mesh/internal/neighbor"
)

// Internet Gravity score tiers. Direct gateways outrank two-hop
// reachability, which outranks blind exploration; already-locked paths
// score lowest so a transaction in flight is not reused.
const (
	scoreInternetDirect   = 300
	scoreInternetIndirect = 200
	scoreExplore          = 100
	scoreExploreVisited   = 10
)

// RSSI adjustment (Most-Forward-within-Radius): the goldilocks band
// [-80,-50] dBm maximises geographic progress per hop, too-close wastes
// hops and battery, too-far is unreliable.
const (
	rssiNearCutoff = -50
	rssiFarCutoff  = -80

	adjTooNear    = -50
	adjGoldilocks = 50
	adjTooFar     = -20
)

// Score computes the gravity + MFR score for a single neighbour.
func Score(info neighbor.Info) int {
	var s int
	switch {
	case info.HasInternetDirect:
		s = scoreInternetDirect
	case info.HasInternetIndirect:
		s = scoreInternetIndirect
	case info.Visited:
		s = scoreExploreVisited
	default:
		s = scoreExplore
	}

	switch {
	case info.RSSI > rssiNearCutoff:
		s += adjTooNear
	case info.RSSI >= rssiFarCutoff:
		s += adjGoldilocks
	default:
		s += adjTooFar
	}
	return s
}

// BestNextHop picks the highest-scoring neighbour. Ties go to the lowest
// numeric id: candidates are visited in ascending id order and only a
// strictly greater score displaces the current best, so repeated calls on
// an unchanged table always agree. Returns false when the table is empty,
// and also when every entry scores below zero: a visited neighbour
// outside the goldilocks band lands at -40 or -10, under the -1 floor,
// so a table holding only locked marginal paths yields no hop rather
// than reusing one.
func BestNextHop(table *neighbor.Table) (uint32, bool) {
	ids := table.IDs()
	if len(ids) == 0 {
		return 0, false
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var bestID uint32
	bestScore := -1
	for _, id := range ids {
		info, ok := table.Get(id)
		if !ok {
			continue
		}
		if s := Score(info); s > bestScore {
			bestScore = s
			bestID = id
		}
	}
	if bestScore == -1 {
		return 0, false
	}
	return bestID, true
}
