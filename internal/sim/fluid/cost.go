package fluid

import "voxelflow.ai/internal/sim/cube"

const (
	// unreachableCost is returned when no drop-off is reachable within maxSearchCost hops.
	unreachableCost = 1000
	// maxSearchCost caps the recursion depth. Each level fans out into at most three directions, so
	// one top-level direction explores on the order of 3^4 positions. Results are not memoized:
	// revisiting a position through another path is expected and keeps tie discovery stable.
	maxSearchCost = 4
)

var flowFaces = cube.HorizontalFaces()

// canSpreadThrough reports whether liquid of kind k may move into c during the cost search: c must
// be flowable-into or a flowing (non-source) liquid of the same kind.
func (e *Engine) canSpreadThrough(k Kind, c Cell) bool {
	if k.source(c) {
		return false
	}
	return e.w.FlowableInto(c) || k.RawDecay(c) > 0
}

func (e *Engine) openBelow(pos cube.Pos) bool {
	return e.w.FlowableInto(e.w.Block(pos.Side(cube.FaceDown)))
}

// FlowCost returns the number of hops from pos to the nearest drop-off for liquid of kind k, given
// that pos was entered moving towards from. It returns 1000 when nothing is found within range.
func (e *Engine) FlowCost(pos cube.Pos, k Kind, accumulated int, from cube.Face) int {
	k.mustLiquid()
	return e.flowCost(pos, k, accumulated, from)
}

func (e *Engine) flowCost(pos cube.Pos, k Kind, accumulated int, from cube.Face) int {
	cost := unreachableCost
	back := from.Opposite()
	for _, f := range flowFaces {
		if f == back {
			continue
		}
		side := pos.Side(f)
		if !e.canSpreadThrough(k, e.w.Block(side)) {
			continue
		}
		if e.openBelow(side) {
			return accumulated
		}
		if accumulated >= maxSearchCost {
			continue
		}
		if c := e.flowCost(side, k, accumulated+1, f); c < cost {
			cost = c
		}
	}
	return cost
}

// OptimalDirections scores the four horizontal directions around pos (-X, +X, -Z, +Z) and marks
// every valid direction sharing the lowest cost. Directions liquid cannot move into keep cost 1000
// and are never optimal.
func (e *Engine) OptimalDirections(pos cube.Pos, k Kind) (optimal [4]bool, cost [4]int) {
	k.mustLiquid()

	var valid [4]bool
	for i, f := range flowFaces {
		cost[i] = unreachableCost
		side := pos.Side(f)
		if !e.canSpreadThrough(k, e.w.Block(side)) {
			continue
		}
		valid[i] = true
		if e.openBelow(side) {
			cost[i] = 0
		} else {
			cost[i] = e.flowCost(side, k, 1, f)
		}
	}

	best := unreachableCost
	for i := range cost {
		if valid[i] && cost[i] < best {
			best = cost[i]
		}
	}
	for i := range cost {
		optimal[i] = valid[i] && cost[i] == best
	}
	return optimal, cost
}
