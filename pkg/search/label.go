package search

// A label is one non-dominated way of reaching a node: its accumulated cost
// vector plus a predecessor reference. Labels live in a flat arena and refer
// to each other by index, so path reconstruction is a simple index walk and
// the whole search state frees in one step.
type label struct {
	node int32 // row-major cell index
	pred int32 // arena index of the predecessor label, -1 at the start
	cost []float64
	key  float64 // frontier ordering key (weighted cost + heuristic)
	dead bool    // dominated after being queued; skipped when popped
}

// arena is the append-only label store for one query.
type arena struct {
	labels []label
}

// add appends a label and returns its index.
func (a *arena) add(node, pred int32, cost []float64, key float64) int32 {
	a.labels = append(a.labels, label{node: node, pred: pred, cost: cost, key: key})
	return int32(len(a.labels) - 1)
}

func (a *arena) at(i int32) *label { return &a.labels[i] }

// frontier is a priority queue of open label indices implementing
// heap.Interface. Order: ordering key, then lexicographic cost, then arena
// index (insertion order). The key orders traversal only; dominance checks
// alone decide what is kept.
type frontier struct {
	arena *arena
	items []int32
}

func (f *frontier) Len() int { return len(f.items) }

func (f *frontier) Less(i, j int) bool {
	a, b := f.arena.at(f.items[i]), f.arena.at(f.items[j])
	if a.key != b.key {
		return a.key < b.key
	}
	if lexLess(a.cost, b.cost) {
		return true
	}
	if lexLess(b.cost, a.cost) {
		return false
	}
	return f.items[i] < f.items[j]
}

func (f *frontier) Swap(i, j int) { f.items[i], f.items[j] = f.items[j], f.items[i] }

func (f *frontier) Push(x any) { f.items = append(f.items, x.(int32)) }

func (f *frontier) Pop() any {
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	return last
}
