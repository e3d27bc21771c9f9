package services

import "container/heap"

// graph is a directed graph whose nodes remember the order they were added in.
// An edge from -> to means "from must be processed before to".
type graph[N comparable] struct {
	index map[N]int
	nodes []N
	out   [][]int
	seen  []map[int]bool
}

func newGraph[N comparable]() *graph[N] {
	return &graph[N]{index: make(map[N]int)}
}

// addNode adds n unless already present and returns its position.
func (g *graph[N]) addNode(n N) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[n] = i
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.seen = append(g.seen, make(map[int]bool))
	return i
}

func (g *graph[N]) has(n N) bool {
	_, ok := g.index[n]
	return ok
}

// addEdge adds from -> to. Both nodes are added when missing.
// Parallel edges are collapsed.
func (g *graph[N]) addEdge(from, to N) {
	f, t := g.addNode(from), g.addNode(to)
	if g.seen[f][t] {
		return
	}
	g.seen[f][t] = true
	g.out[f] = append(g.out[f], t)
}

// predecessors returns the nodes with an edge into n, in insertion order.
func (g *graph[N]) predecessors(n N) []N {
	t, ok := g.index[n]
	if !ok {
		return nil
	}
	var preds []N
	for f := range g.nodes {
		if g.seen[f][t] {
			preds = append(preds, g.nodes[f])
		}
	}
	return preds
}

// sort returns a topological order. Among ready nodes the one added first
// wins. When the graph has a cycle, sort returns the nodes of one cycle
// instead, first node repeated at the end.
func (g *graph[N]) sort() ([]N, []N) {
	indeg := make([]int, len(g.nodes))
	for _, targets := range g.out {
		for _, t := range targets {
			indeg[t]++
		}
	}

	ready := &intHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]N, 0, len(g.nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, g.nodes[i])
		for _, t := range g.out[i] {
			indeg[t]--
			if indeg[t] == 0 {
				heap.Push(ready, t)
			}
		}
	}

	if len(order) == len(g.nodes) {
		return order, nil
	}
	return nil, g.findCycle(indeg)
}

// findCycle walks edges between unsorted nodes until one repeats.
// Every unsorted node has an unsorted predecessor, so walking backwards
// from any of them must loop.
func (g *graph[N]) findCycle(indeg []int) []N {
	start := -1
	for i, d := range indeg {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	pred := func(t int) int {
		for f := range g.nodes {
			if indeg[f] > 0 && g.seen[f][t] {
				return f
			}
		}
		return -1
	}

	pos := make(map[int]int)
	var walk []int
	for cur := start; cur >= 0; cur = pred(cur) {
		if p, ok := pos[cur]; ok {
			loop := walk[p:]
			// walk runs against the edges; reverse it to follow them
			cycle := make([]N, 0, len(loop)+1)
			for i := len(loop) - 1; i >= 0; i-- {
				cycle = append(cycle, g.nodes[loop[i]])
			}
			return append(cycle, cycle[0])
		}
		pos[cur] = len(walk)
		walk = append(walk, cur)
	}
	return nil
}

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }

func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
