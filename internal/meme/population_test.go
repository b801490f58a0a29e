package meme

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func textPopulation(t *testing.T, n int, fn FitnessFunc) *Population {
	t.Helper()
	p := NewPopulation(fn, zap.NewNop())
	for i := 0; i < n; i++ {
		m, err := New(KindText, fmt.Sprintf("meme %d", i), nil)
		if err != nil {
			t.Fatalf("new meme: %v", err)
		}
		p.Add(m)
	}
	return p
}

func TestEvolveEmptyPopulationIsNoop(t *testing.T) {
	p := NewPopulation(nil, zap.NewNop())
	p.Evolve()
	if p.Len() != 0 {
		t.Errorf("expected empty population, got %d", p.Len())
	}
	if p.Generation() != 0 {
		t.Errorf("generation counter advanced on empty evolve")
	}
}

func TestEvolveSizeBounds(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 10, 25} {
		p := textPopulation(t, n, nil)
		p.Evolve()

		keep := n / 2
		if keep < 1 {
			keep = 1
		}
		got := p.Len()
		if got < keep || got > 2*keep {
			t.Errorf("n=%d: population %d outside [%d, %d]", n, got, keep, 2*keep)
		}
	}
}

func TestEvolveSingleMemeSurvives(t *testing.T) {
	p := textPopulation(t, 1, nil)
	p.Evolve()
	if p.Len() != 2 {
		t.Errorf("population of one must keep the survivor and add one offspring, got %d", p.Len())
	}
}

func TestEvolveDeterministicSelection(t *testing.T) {
	// Fitness derived from content makes the selection deterministic:
	// "meme 3" scores highest, "meme 0" lowest.
	fn := func(m *Meme) float64 {
		s := m.Content.(string)
		return float64(s[len(s)-1])
	}
	p := textPopulation(t, 4, fn)
	p.Evolve()

	survivorTexts := make(map[string]bool)
	for _, m := range p.List() {
		if m.Fitness > 0 { // offspring restart at 0
			survivorTexts[m.Content.(string)] = true
		}
	}
	if !survivorTexts["meme 3"] || !survivorTexts["meme 2"] {
		t.Errorf("expected meme 3 and meme 2 to survive, got %v", survivorTexts)
	}
	if survivorTexts["meme 0"] || survivorTexts["meme 1"] {
		t.Errorf("low-fitness memes survived: %v", survivorTexts)
	}
}

func TestEvolveTieBreakKeepsInsertionOrder(t *testing.T) {
	constant := func(*Meme) float64 { return 0.5 }
	p := textPopulation(t, 4, constant)
	first := p.List()[0].ID
	p.Evolve()

	if _, ok := p.Get(first); !ok {
		t.Error("with equal fitness the earliest-inserted meme must survive")
	}
}

func TestGetUnknownMeme(t *testing.T) {
	p := textPopulation(t, 2, nil)
	if _, ok := p.Get(uuid.New()); ok {
		t.Error("expected not-found for unknown id")
	}
}

func TestRemoveMeme(t *testing.T) {
	p := textPopulation(t, 3, nil)
	id := p.List()[1].ID
	p.Remove(id)
	if p.Len() != 2 {
		t.Errorf("expected 2 memes after removal, got %d", p.Len())
	}
	if _, ok := p.Get(id); ok {
		t.Error("removed meme still present")
	}
	// Removing again is a no-op.
	p.Remove(id)
	if p.Len() != 2 {
		t.Error("double removal changed the population")
	}
}

func TestMaxSizeCapsGrowth(t *testing.T) {
	p := textPopulation(t, 6, nil)
	p.SetMaxSize(4)
	p.Evolve()
	if p.Len() > 4 {
		t.Errorf("cap ignored: population %d", p.Len())
	}
}

func TestRepeatedGenerations(t *testing.T) {
	p := textPopulation(t, 8, nil)
	for i := 0; i < 5; i++ {
		p.Evolve()
		if p.Len() < 1 {
			t.Fatalf("generation %d emptied the population", i+1)
		}
	}
	if p.Generation() != 5 {
		t.Errorf("expected 5 generations, got %d", p.Generation())
	}
}
