package meme

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FitnessFunc scores a meme for selection. The default draws an independent
// uniform random value per meme per generation: fitness values carry no
// semantic meaning, only the surrounding selection mechanics do.
type FitnessFunc func(*Meme) float64

// RandomFitness is the default scoring function.
func RandomFitness(*Meme) float64 { return rand.Float64() }

// Population is an identity-keyed collection of memes with simple
// evolutionary mechanics. Memes are owned exclusively by the population map.
type Population struct {
	memes   map[uuid.UUID]*Meme
	order   []uuid.UUID // insertion order, the fitness tie-break
	fitness FitnessFunc
	maxSize int // 0 = unbounded
	gen     int
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewPopulation creates an empty population with the given scoring function.
// A nil fn falls back to RandomFitness.
func NewPopulation(fn FitnessFunc, logger *zap.Logger) *Population {
	if fn == nil {
		fn = RandomFitness
	}
	return &Population{
		memes:   make(map[uuid.UUID]*Meme),
		fitness: fn,
		logger:  logger,
	}
}

// SetMaxSize bounds the population after a generation step. Zero disables the
// cap.
func (p *Population) SetMaxSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxSize = n
}

// Add inserts a meme, keyed by its identity.
func (p *Population) Add(m *Meme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.memes[m.ID]; !exists {
		p.order = append(p.order, m.ID)
	}
	p.memes[m.ID] = m
}

// Remove deletes a meme by identity. Removing an unknown ID is a no-op.
func (p *Population) Remove(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.memes[id]; !ok {
		return
	}
	delete(p.memes, id)
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Get looks up a meme by identity. Lookups are total over an open key space:
// an unknown ID reports false rather than failing.
func (p *Population) Get(id uuid.UUID) (*Meme, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.memes[id]
	return m, ok
}

// Len returns the current population size.
func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.memes)
}

// Generation returns the number of completed evolution steps.
func (p *Population) Generation() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen
}

// List returns all memes in insertion order.
func (p *Population) List() []*Meme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Meme, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.memes[id])
	}
	return out
}

// Evolve performs one generation step: score every meme, keep the fitter
// half (always at least one survivor), and produce one mutated offspring per
// survivor. The population is replaced wholesale. No-op when empty.
func (p *Population) Evolve() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.memes) == 0 {
		return
	}

	sorted := make([]*Meme, 0, len(p.order))
	for _, id := range p.order {
		m := p.memes[id]
		m.Fitness = p.fitness(m)
		sorted = append(sorted, m)
	}
	// Stable: ties keep insertion order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Fitness > sorted[j].Fitness
	})

	keep := len(sorted) / 2
	if keep < 1 {
		keep = 1
	}
	survivors := sorted[:keep]

	next := make([]*Meme, 0, keep*2)
	next = append(next, survivors...)
	for _, m := range survivors {
		child := m.Replicate()
		child.Mutate()
		next = append(next, child)
	}

	if p.maxSize > 0 && len(next) > p.maxSize {
		next = next[:p.maxSize]
	}

	p.memes = make(map[uuid.UUID]*Meme, len(next))
	p.order = p.order[:0]
	for _, m := range next {
		p.memes[m.ID] = m
		p.order = append(p.order, m.ID)
	}
	p.gen++

	if p.logger != nil {
		p.logger.Info("generation complete",
			zap.Int("generation", p.gen),
			zap.Int("survivors", keep),
			zap.Int("population", len(p.memes)))
	}
}
