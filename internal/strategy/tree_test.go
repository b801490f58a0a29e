package strategy

import (
	"strings"
	"testing"
)

func TestBuildSingleParentPolicy(t *testing.T) {
	a := &Strategy{Name: "A", Level: 1}
	b := &Strategy{Name: "B", Level: 2}
	c := &Strategy{Name: "C", Level: 2}

	tree := Build([]*Strategy{a, b, c})

	roots := tree.Roots()
	if len(roots) != 1 || roots[0].Name != "A" {
		t.Fatalf("expected single root A, got %v", roots)
	}
	if len(a.Children) != 2 {
		t.Fatalf("expected B and C under A, got %d children", len(a.Children))
	}
	if a.Children[0].Name != "B" || a.Children[1].Name != "C" {
		t.Errorf("children order: got %s, %s", a.Children[0].Name, a.Children[1].Name)
	}
}

func TestBuildAttachesToFirstPreviousLevelOnly(t *testing.T) {
	a1 := &Strategy{Name: "A1", Level: 1}
	a2 := &Strategy{Name: "A2", Level: 1}
	b := &Strategy{Name: "B", Level: 2}

	Build([]*Strategy{a1, a2, b})

	if len(a1.Children) != 1 {
		t.Errorf("first level-1 strategy must take all level-2 children, got %d", len(a1.Children))
	}
	if len(a2.Children) != 0 {
		t.Errorf("second level-1 strategy must get no children, got %d", len(a2.Children))
	}
}

func TestBuildClearsPriorChildren(t *testing.T) {
	a := &Strategy{Name: "A", Level: 1}
	stale := &Strategy{Name: "stale", Level: 4}
	a.Children = []*Strategy{stale}

	tree := Build([]*Strategy{a})
	if len(a.Children) != 0 {
		t.Error("prior children must be cleared on rebuild")
	}
	if tree.Find("stale") != nil {
		t.Error("stale node leaked into rebuilt tree")
	}
}

func TestOrphanLevelIsUnreachable(t *testing.T) {
	a := &Strategy{Name: "A", Level: 1}
	d := &Strategy{Name: "D", Level: 3} // no level-2 parent

	tree := Build([]*Strategy{a, d})

	// No error, the strategy simply never appears in traversal.
	if tree.Find("D") != nil {
		t.Error("orphan strategy must be unreachable")
	}
	if len(tree.All()) != 1 {
		t.Errorf("expected 1 reachable node, got %d", len(tree.All()))
	}
}

func TestMatchPrunesInapplicableSubtrees(t *testing.T) {
	root := &Strategy{
		Name:       "root",
		Level:      1,
		Conditions: Conditions{Emotions: []string{"спокойствие"}},
	}
	child := &Strategy{Name: "child", Level: 2} // unconditional

	tree := Build([]*Strategy{root, child})

	matched := tree.Match("тревога", "цель", "мысль", 90)
	for _, s := range matched {
		if s.Name == "child" {
			t.Error("descendant of an inapplicable root must never trigger")
		}
	}
	if len(matched) != 0 {
		t.Errorf("expected no matches, got %d", len(matched))
	}
}

func TestMatchPreOrder(t *testing.T) {
	a := &Strategy{Name: "A", Level: 1}
	b := &Strategy{Name: "B", Level: 2}
	c := &Strategy{Name: "C", Level: 3}

	tree := Build([]*Strategy{a, b, c})
	matched := tree.Match("x", "y", "мысль", 90)

	var names []string
	for _, s := range matched {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "A,B,C" {
		t.Errorf("expected pre-order A,B,C, got %v", names)
	}
}

func TestMatchMultipleRoots(t *testing.T) {
	a := &Strategy{Name: "A", Level: 1}
	b := &Strategy{Name: "B", Level: 1, Conditions: Conditions{Emotions: []string{"радость"}}}

	tree := Build([]*Strategy{a, b})
	matched := tree.Match("тревога", "цель", "мысль", 90)
	if len(matched) != 1 || matched[0].Name != "A" {
		t.Errorf("expected only A, got %v", matched)
	}
}

func TestLevels(t *testing.T) {
	tree := Build([]*Strategy{
		{Name: "A", Level: 1},
		{Name: "B", Level: 2},
		{Name: "C", Level: 2},
	})
	got := tree.Levels()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected levels [1 2], got %v", got)
	}
}
