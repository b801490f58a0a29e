package strategy

import "sort"

// Tree is an arena of strategy nodes addressed by index. It is rebuilt from
// scratch on every change: old indices are discarded, which sidesteps
// accidental cycles from in-place mutation.
type Tree struct {
	nodes    []*Strategy
	children [][]int
	roots    []int
}

// Build assembles a flat list of strategies into a tree grouped by level.
// Any prior Children links are cleared first. Level-1 strategies become
// roots; every strategy at level L attaches to the FIRST strategy found at
// level L-1. Fan-in-one is the documented assignment policy, not a bug: all
// same-level strategies share one parent. Levels with no previous-level
// strategy become silently unreachable.
func Build(strategies []*Strategy) *Tree {
	t := &Tree{
		nodes:    make([]*Strategy, len(strategies)),
		children: make([][]int, len(strategies)),
	}
	byLevel := make(map[int][]int)
	for i, s := range strategies {
		s.Children = nil
		t.nodes[i] = s
		byLevel[s.Level] = append(byLevel[s.Level], i)
	}

	t.roots = append(t.roots, byLevel[1]...)

	maxLevel := 0
	for lvl := range byLevel {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	for lvl := 2; lvl <= maxLevel; lvl++ {
		parents := byLevel[lvl-1]
		if len(parents) == 0 {
			continue
		}
		parent := parents[0]
		for _, idx := range byLevel[lvl] {
			t.children[parent] = append(t.children[parent], idx)
			t.nodes[parent].Children = append(t.nodes[parent].Children, t.nodes[idx])
		}
	}
	return t
}

// Match walks the tree depth-first with an explicit stack and returns every
// applicable strategy in pre-order. A subtree is pruned as soon as its root
// is inapplicable: descendants of a rejected node are never reported, no
// matter their own applicability.
func (t *Tree) Match(emotion, goal, thought string, energy int) []*Strategy {
	var matched []*Strategy

	stack := make([]int, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := t.nodes[idx]
		if !node.IsApplicable(emotion, goal, thought, energy) {
			continue
		}
		matched = append(matched, node)
		kids := t.children[idx]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return matched
}

// All returns every reachable strategy in pre-order.
func (t *Tree) All() []*Strategy {
	var out []*Strategy
	stack := make([]int, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, t.nodes[idx])
		kids := t.children[idx]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// Find returns the first reachable strategy with the given name, or nil.
// Names are treated as unique within one hierarchy; that uniqueness is a
// correctness precondition for the statistics keyed on them.
func (t *Tree) Find(name string) *Strategy {
	for _, s := range t.All() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Roots returns the top-level strategies in build order.
func (t *Tree) Roots() []*Strategy {
	out := make([]*Strategy, len(t.roots))
	for i, idx := range t.roots {
		out[i] = t.nodes[idx]
	}
	return out
}

// Levels returns the distinct levels present among reachable nodes, sorted.
func (t *Tree) Levels() []int {
	seen := make(map[int]bool)
	for _, s := range t.All() {
		seen[s.Level] = true
	}
	out := make([]int, 0, len(seen))
	for lvl := range seen {
		out = append(out, lvl)
	}
	sort.Ints(out)
	return out
}
