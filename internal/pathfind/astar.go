// Package pathfind implements bounded A* over 4-connected tile grids.
// The search is deliberately cheap: NPC chase decisions run every AI tick
// for every live NPC, so the expansion budget caps worst-case cost and a
// failed search just means the NPC falls back to wandering.
package pathfind

import "container/heap"

// DefaultMaxExpand is the node expansion budget when the caller passes 0.
const DefaultMaxExpand = 20

// Point is a tile coordinate.
type Point struct {
	X, Y int
}

// Walkable reports whether a tile can be stepped onto right now.
type Walkable func(x, y int) bool

// neighbor order mirrors heading order: north, east, south, west.
var steps = [4]Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// FirstStep runs A* from start toward goal and returns the first tile of
// the best path found. A goal that is itself unwalkable is retargeted to
// its nearest walkable neighbor. Returns ok=false when no path exists
// within the expansion budget.
func FirstStep(start, goal Point, walkable Walkable, maxExpand int) (Point, bool) {
	path, ok := Search(start, goal, walkable, maxExpand)
	if !ok || len(path) == 0 {
		return Point{}, false
	}
	return path[0], true
}

// Search returns the path from start to goal, start excluded, goal
// included. The heuristic is Manhattan distance, admissible on a
// 4-connected grid with unit step cost.
func Search(start, goal Point, walkable Walkable, maxExpand int) ([]Point, bool) {
	if maxExpand <= 0 {
		maxExpand = DefaultMaxExpand
	}
	if start == goal {
		return nil, true
	}
	if !walkable(goal.X, goal.Y) {
		g, ok := nearestWalkableNeighbor(goal, walkable)
		if !ok {
			return nil, false
		}
		if g == start {
			return nil, true
		}
		goal = g
	}

	open := &nodeHeap{}
	heap.Init(open)
	cameFrom := map[Point]Point{}
	gScore := map[Point]int{start: 0}
	heap.Push(open, &node{p: start, g: 0, h: manhattan(start, goal)})

	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.p == goal {
			return rebuild(cameFrom, start, goal), true
		}
		if expanded++; expanded > maxExpand {
			return nil, false
		}
		for _, d := range steps {
			next := Point{cur.p.X + d.X, cur.p.Y + d.Y}
			if !walkable(next.X, next.Y) {
				continue
			}
			tentative := cur.g + 1
			if best, seen := gScore[next]; seen && tentative >= best {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = cur.p
			heap.Push(open, &node{p: next, g: tentative, h: manhattan(next, goal)})
		}
	}
	return nil, false
}

func nearestWalkableNeighbor(goal Point, walkable Walkable) (Point, bool) {
	for _, d := range steps {
		n := Point{goal.X + d.X, goal.Y + d.Y}
		if walkable(n.X, n.Y) {
			return n, true
		}
	}
	return Point{}, false
}

func manhattan(a, b Point) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

func rebuild(cameFrom map[Point]Point, start, goal Point) []Point {
	var rev []Point
	for p := goal; p != start; p = cameFrom[p] {
		rev = append(rev, p)
	}
	out := make([]Point, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}

type node struct {
	p    Point
	g, h int
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

// Lower f first; ties broken toward the lower heuristic so nodes closer
// to the goal pop first.
func (h nodeHeap) Less(i, j int) bool {
	fi, fj := h[i].g+h[i].h, h[j].g+h[j].h
	if fi != fj {
		return fi < fj
	}
	return h[i].h < h[j].h
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*node)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
