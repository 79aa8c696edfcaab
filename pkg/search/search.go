// Package search computes exact Pareto fronts of paths over a cost map
// graph using multi-objective label-setting search.
//
// Each node may hold several non-dominated labels at once, one per distinct
// non-dominated cost vector reaching it. A priority frontier orders open
// labels by a weighted-sum key with an admissible distance heuristic; the
// key decides traversal order only and is never used to discard a
// candidate. The search runs until the frontier is exhausted, so the
// returned front is complete: every non-dominated start-to-goal cost vector
// is represented by exactly one path.
//
// A single graph may serve any number of concurrent queries: each call to
// [FindParetoPaths] owns its frontier and label arena and only reads the
// graph.
package search

import (
	"container/heap"
	"context"
	"slices"

	"github.com/roverlab/traverse/pkg/costmap"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/terrain"
)

// defaultCancelEvery is how many label expansions pass between cooperative
// cancellation checks.
const defaultCancelEvery = 64

// Status classifies how a query ended.
type Status string

const (
	// StatusComplete means the frontier was exhausted and at least one
	// path reached the goal.
	StatusComplete Status = "complete"

	// StatusNoPath means the frontier was exhausted without any label
	// reaching the goal. Disconnected terrain is a legitimate planning
	// answer, not a failure.
	StatusNoPath Status = "no-path"

	// StatusCancelled means the context was cancelled between label
	// expansions. No partial front is returned.
	StatusCancelled Status = "cancelled"
)

// Options tunes a single query. The zero value searches exhaustively.
type Options struct {
	// LabelCap bounds the number of live labels stored per node. Zero
	// means unlimited. When the cap drops a non-dominated candidate the
	// result is flagged Truncated and the front is approximate.
	LabelCap int

	// CancelEvery is the number of expansions between context checks.
	// Zero selects the default.
	CancelEvery int
}

// Path is one Pareto-optimal route: its cell sequence from start to goal
// and its total cost vector.
type Path struct {
	Coords []terrain.Coord `json:"coords"`
	Cost   []float64       `json:"cost"`
}

// Result is the outcome of one query.
type Result struct {
	// Front holds the mutually non-dominated goal paths, sorted by
	// lexicographic cost order.
	Front []Path

	Status Status

	// Truncated reports that the per-node label cap dropped at least one
	// candidate, so the front may be missing solutions.
	Truncated bool

	// Expanded and Generated count popped and created labels.
	Expanded  int
	Generated int
}

// FindParetoPaths returns the exact Pareto front of paths from start to
// goal, or an empty front with StatusNoPath when the goal is unreachable.
// It fails with an INVALID_ENDPOINT error when either endpoint is out of
// bounds or impassable, and with a CANCELLED error when ctx is cancelled
// mid-search.
//
// Determinism: identical graph, endpoints, and options produce the same
// front in the same order. Among equal-cost alternatives the path generated
// earliest in the fixed neighbor expansion order wins.
func FindParetoPaths(ctx context.Context, g *costmap.Graph, start, goal terrain.Coord, opts Options) (*Result, error) {
	if err := checkEndpoint(g, start, "start"); err != nil {
		return nil, err
	}
	if err := checkEndpoint(g, goal, "goal"); err != nil {
		return nil, err
	}

	if start == goal {
		return &Result{
			Front:  []Path{{Coords: []terrain.Coord{start}, Cost: make([]float64, g.K())}},
			Status: StatusComplete,
		}, nil
	}

	q := newQuery(g, goal, opts)
	q.seed(start)

	cancelEvery := opts.CancelEvery
	if cancelEvery <= 0 {
		cancelEvery = defaultCancelEvery
	}

	for q.frontier.Len() > 0 {
		idx := heap.Pop(q.frontier).(int32)
		l := q.arena.at(idx)
		if l.dead {
			continue
		}

		q.expanded++
		if q.expanded%cancelEvery == 0 {
			select {
			case <-ctx.Done():
				return &Result{Status: StatusCancelled, Truncated: q.truncated,
						Expanded: q.expanded, Generated: len(q.arena.labels)},
					errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "search cancelled after %d expansions", q.expanded)
			default:
			}
		}

		// Goal labels are path candidates, never expansion sources:
		// with non-negative edges, leaving the goal cannot improve on
		// having arrived.
		if l.node == q.goalNode {
			continue
		}
		q.expand(idx)
	}

	return q.result(), nil
}

// checkEndpoint validates one endpoint of a query.
func checkEndpoint(g *costmap.Graph, c terrain.Coord, role string) error {
	if !g.InBounds(c) {
		return errors.New(errors.ErrCodeInvalidEndpoint,
			"%s %v is outside the %dx%d grid", role, c, g.Rows(), g.Cols())
	}
	if !g.Passable(c) {
		return errors.New(errors.ErrCodeInvalidEndpoint, "%s %v is impassable", role, c)
	}
	return nil
}

// query is the per-call search state.
type query struct {
	g        *costmap.Graph
	goal     terrain.Coord
	goalNode int32
	opts     Options

	arena    *arena
	frontier *frontier

	// nodeLabels holds, per cell, the indices of its live labels. Pruned
	// labels are removed here and flagged dead in the arena.
	nodeLabels [][]int32

	weights []float64
	hmin    float64

	nbuf      []terrain.Coord
	expanded  int
	truncated bool
}

func newQuery(g *costmap.Graph, goal terrain.Coord, opts Options) *query {
	a := &arena{}
	return &query{
		g:          g,
		goal:       goal,
		goalNode:   int32(goal.Row*g.Cols() + goal.Col),
		opts:       opts,
		arena:      a,
		frontier:   &frontier{arena: a},
		nodeLabels: make([][]int32, g.Rows()*g.Cols()),
		weights:    g.Weights(),
		hmin:       g.MinCostPerMeter(),
	}
}

// seed queues the zero-cost start label.
func (q *query) seed(start terrain.Coord) {
	cost := make([]float64, q.g.K())
	node := int32(start.Row*q.g.Cols() + start.Col)
	idx := q.arena.add(node, -1, cost, q.orderKey(cost, start))
	q.nodeLabels[node] = append(q.nodeLabels[node], idx)
	heap.Push(q.frontier, idx)
}

// expand extends one label along every feasible outgoing edge.
func (q *query) expand(idx int32) {
	l := q.arena.at(idx)
	from := q.coord(l.node)

	q.nbuf = q.g.Neighbors(from, q.nbuf[:0])
	for _, to := range q.nbuf {
		edge, ok := q.g.EdgeCost(from, to)
		if !ok {
			continue
		}
		cand := make([]float64, len(edge))
		// Re-fetch: the arena may have been reallocated by an earlier
		// neighbor's insert.
		cost := q.arena.at(idx).cost
		for i := range cand {
			cand[i] = cost[i] + edge[i]
		}
		q.insert(idx, to, cand)
	}
}

// insert adds a candidate label at a node unless dominance rules it out.
// Existing labels dominated by the candidate are pruned. Edge costs are
// non-negative, so a candidate matched or beaten by a goal label anywhere
// can never complete into a new front member and is dropped early.
func (q *query) insert(pred int32, at terrain.Coord, cand []float64) {
	node := int32(at.Row*q.g.Cols() + at.Col)

	if node != q.goalNode {
		for _, gi := range q.nodeLabels[q.goalNode] {
			if dominatesOrEqual(q.arena.at(gi).cost, cand) {
				return
			}
		}
	}

	live := q.nodeLabels[node]
	kept := live[:0]
	for _, li := range live {
		existing := q.arena.at(li)
		if dominatesOrEqual(existing.cost, cand) {
			return
		}
		if Dominates(cand, existing.cost) {
			existing.dead = true
			continue
		}
		kept = append(kept, li)
	}

	if q.opts.LabelCap > 0 && len(kept) >= q.opts.LabelCap {
		q.nodeLabels[node] = kept
		q.truncated = true
		return
	}

	idx := q.arena.add(node, pred, cand, q.orderKey(cand, at))
	q.nodeLabels[node] = append(kept, idx)
	heap.Push(q.frontier, idx)
}

// orderKey is the frontier priority of a label at c: the weighted sum of
// its cost vector plus an admissible estimate of the remaining weighted
// cost. It biases traversal toward the goal and affects only the order in
// which labels are popped.
func (q *query) orderKey(cost []float64, c terrain.Coord) float64 {
	key := 0.0
	for i, w := range q.weights {
		key += w * cost[i]
	}
	return key + q.hmin*q.g.EuclideanDistance(c, q.goal)
}

// result assembles the sorted front after frontier exhaustion.
func (q *query) result() *Result {
	goals := slices.Clone(q.nodeLabels[q.goalNode])
	slices.SortFunc(goals, func(a, b int32) int {
		ca, cb := q.arena.at(a).cost, q.arena.at(b).cost
		switch {
		case lexLess(ca, cb):
			return -1
		case lexLess(cb, ca):
			return 1
		default:
			return int(a - b)
		}
	})

	res := &Result{
		Status:    StatusComplete,
		Truncated: q.truncated,
		Expanded:  q.expanded,
		Generated: len(q.arena.labels),
	}
	if len(goals) == 0 {
		res.Status = StatusNoPath
		return res
	}
	res.Front = make([]Path, len(goals))
	for i, gi := range goals {
		res.Front[i] = Path{Coords: q.walk(gi), Cost: q.arena.at(gi).cost}
	}
	return res
}

// walk reconstructs the start-to-goal coordinate sequence of a goal label
// by following predecessor indices.
func (q *query) walk(idx int32) []terrain.Coord {
	var coords []terrain.Coord
	for i := idx; i >= 0; i = q.arena.at(i).pred {
		coords = append(coords, q.coord(q.arena.at(i).node))
	}
	slices.Reverse(coords)
	return coords
}

func (q *query) coord(node int32) terrain.Coord {
	cols := q.g.Cols()
	return terrain.Coord{Row: int(node) / cols, Col: int(node) % cols}
}
