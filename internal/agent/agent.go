package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/memetic-os/memos/internal/persist"
	"github.com/memetic-os/memos/internal/strategy"
	"go.uber.org/zap"
)

// Status values for a processed thought.
const (
	StatusProcessed       = "PROCESSED"
	StatusNoStrategyFound = "NO_STRATEGY_FOUND"
)

// State is the agent's mutable disposition.
type State struct {
	Emotion     string  `json:"emotion"`
	CurrentGoal string  `json:"current_goal"`
	Energy      int     `json:"energy"`
	Reputation  float64 `json:"reputation"`
}

// defaultState is the agent's starting disposition.
func defaultState() State {
	return State{
		Emotion:     "тревога",
		CurrentGoal: "устранение противоречий",
		Energy:      90,
		Reputation:  0.87,
	}
}

// Action describes one strategy fired for a thought.
type Action struct {
	Strategy        string   `json:"strategy"`
	ActionPlan      string   `json:"action"`
	EnergyCost      int      `json:"energy_cost"`
	TriggeredTopics []string `json:"triggered_topics"`
}

// ThinkResult is the outcome of one decision cycle.
type ThinkResult struct {
	Thought         string   `json:"thought"`
	Status          string   `json:"status"`
	Actions         []Action `json:"actions"`
	RemainingEnergy int      `json:"remaining_energy"`
}

// Agent owns the decision state: disposition, memory, meme notes, strategy
// tree and usage statistics. One mutex guards all of it, for both direct
// Think calls and the background reflection loop; the two call sites would
// otherwise race on state, memory and counters.
type Agent struct {
	mu     sync.Mutex
	state  State
	memes  map[string]string
	memory persist.MemoryDoc
	stats  strategy.Stats
	tree   *strategy.Tree
	store  persist.Store
	logger *zap.Logger
}

// New builds an agent, loading the persisted snapshot and statistics when
// present.
func New(ctx context.Context, store persist.Store, logger *zap.Logger) (*Agent, error) {
	a := &Agent{
		state:  defaultState(),
		memes:  make(map[string]string),
		stats:  make(strategy.Stats),
		tree:   strategy.Build(nil),
		store:  store,
		logger: logger,
	}

	if store != nil {
		snap, found, err := store.LoadSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if found {
			if snap.Memes != nil {
				a.memes = snap.Memes
			}
			a.memory = snap.Memory
			logger.Info("agent state restored",
				zap.Int("memes", len(a.memes)),
				zap.Int("thoughts", len(a.memory.Thoughts)))
		}

		stats, found, err := store.LoadStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stats: %w", err)
		}
		if found {
			a.stats = stats
			logger.Info("strategy stats restored", zap.Int("strategies", len(stats)))
		}
	}
	return a, nil
}

// SetStrategies installs a flat strategy list, rebuilding the tree.
func (a *Agent) SetStrategies(strategies []*strategy.Strategy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tree = strategy.Build(strategies)
	a.logger.Info("strategy hierarchy built",
		zap.Int("strategies", len(strategies)),
		zap.Int("reachable", len(a.tree.All())))
}

// Strategies returns the reachable strategies in pre-order.
func (a *Agent) Strategies() []*strategy.Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.All()
}

// Think runs one decision cycle over a thought: record it, spend energy,
// match strategies against current state with subtree pruning, update the
// usage counters and persist. Persistence failure is fatal to the call.
func (a *Agent) Think(ctx context.Context, thought string) (*ThinkResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.memory.Thoughts = append(a.memory.Thoughts, thought)
	a.logEvent("Мысль: " + thought)

	a.state.Energy -= 1 + rand.Intn(3)
	if a.state.Energy < 0 {
		a.state.Energy = 0
	}

	matched := a.tree.Match(a.state.Emotion, a.state.CurrentGoal, thought, a.state.Energy)

	var actions []Action
	for _, s := range matched {
		c := a.stats.Touch(s.Name)
		c.Uses++

		// A thought "succeeds" when it contains any remembered goal. This is
		// a weak heuristic, not a ground-truth signal. Goals are matched as
		// written; only the thought side is normalized.
		success := false
		for _, g := range a.memory.Goals {
			if strategy.KeywordInText(thought, []string{g}) {
				success = true
				break
			}
		}
		if success {
			c.Success++
		} else {
			c.Fail++
		}

		var topics []string
		for _, topic := range s.TriggerTopics {
			if strategy.KeywordInText(thought, []string{topic}) {
				topics = append(topics, topic)
			}
		}
		a.logEvent("Стратегия применена: " + s.Name)
		actions = append(actions, Action{
			Strategy:        s.Name,
			ActionPlan:      s.ActionPlan,
			EnergyCost:      s.Level * 2,
			TriggeredTopics: topics,
		})
	}

	if err := a.persistLocked(ctx); err != nil {
		return nil, err
	}

	status := StatusNoStrategyFound
	if len(actions) > 0 {
		status = StatusProcessed
	}
	a.logger.Debug("thought processed",
		zap.String("status", status),
		zap.Int("strategies", len(actions)),
		zap.Int("energy", a.state.Energy))

	return &ThinkResult{
		Thought:         thought,
		Status:          status,
		Actions:         actions,
		RemainingEnergy: a.state.Energy,
	}, nil
}

// EvolveStrategies synthesizes new variants from historically successful
// strategies, then rebuilds the whole hierarchy from scratch. Returns the
// newly created strategies.
func (a *Agent) EvolveStrategies(ctx context.Context) ([]*strategy.Strategy, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mutated := strategy.Evolve(a.tree, a.stats)
	if len(mutated) == 0 {
		return nil, nil
	}
	for _, m := range mutated {
		a.logEvent("Создана мутировавшая стратегия: " + m.Name)
	}

	a.tree = strategy.Build(append(a.tree.All(), mutated...))
	if err := a.persistLocked(ctx); err != nil {
		return nil, err
	}

	a.logger.Info("strategies evolved", zap.Int("new", len(mutated)))
	return mutated, nil
}

// RememberGoal appends a goal to memory and persists.
func (a *Agent) RememberGoal(ctx context.Context, goal string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory.Goals = append(a.memory.Goals, goal)
	a.logEvent("Цель добавлена: " + goal)
	return a.persistLocked(ctx)
}

// AddMeme records a named meme note and persists.
func (a *Agent) AddMeme(ctx context.Context, name, content string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memes[name] = content
	a.logEvent("Мем добавлен: " + name)
	return a.persistLocked(ctx)
}

// MutateMeme appends a modification marker to a meme note. Unknown names are
// ignored.
func (a *Agent) MutateMeme(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.memes[name]; !ok {
		return nil
	}
	a.memes[name] += " (модифицирован)"
	a.logEvent("Мем мутировал: " + name)
	return a.persistLocked(ctx)
}

// GetMeme returns a meme note, or the not-found marker. Lookups are total.
func (a *Agent) GetMeme(name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if content, ok := a.memes[name]; ok {
		return content
	}
	return "Мем не найден"
}

// SetEmotion updates the agent's emotion tag.
func (a *Agent) SetEmotion(emotion string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Emotion = emotion
}

// SetGoal updates the agent's current goal.
func (a *Agent) SetGoal(goal string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.CurrentGoal = goal
}

// StateSnapshot returns a copy of the current disposition.
func (a *Agent) StateSnapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// StatsSnapshot returns a copy of the usage counters.
func (a *Agent) StatsSnapshot() strategy.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(strategy.Stats, len(a.stats))
	for name, c := range a.stats {
		cp := *c
		out[name] = &cp
	}
	return out
}

// MemorySnapshot returns a copy of the agent's memory.
func (a *Agent) MemorySnapshot() persist.MemoryDoc {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc := persist.MemoryDoc{
		Goals:    append([]string(nil), a.memory.Goals...),
		Thoughts: append([]string(nil), a.memory.Thoughts...),
		Log:      append([]persist.LogEntry(nil), a.memory.Log...),
	}
	return doc
}

// logEvent appends to the in-memory log. Caller must hold the mutex.
func (a *Agent) logEvent(event string) {
	a.memory.Log = append(a.memory.Log, persist.LogEntry{
		Time:  time.Now().UTC(),
		Event: event,
	})
}

// persistLocked writes both documents. Caller must hold the mutex.
func (a *Agent) persistLocked(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	snap := &persist.Snapshot{Memes: a.memes, Memory: a.memory}
	if err := a.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	if err := a.store.SaveStats(ctx, a.stats); err != nil {
		return fmt.Errorf("persist stats: %w", err)
	}
	return nil
}
