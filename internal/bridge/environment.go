package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/memetic-os/memos/internal/meme"
	"github.com/memetic-os/memos/internal/provider"
	"go.uber.org/zap"
)

// EnvState is the substrate disposition injected into every prompt. Unlike
// the agent's integer energy, this layer tracks fractional levels that decay
// per exchange.
type EnvState struct {
	Emotion   string  `json:"emotion"`
	Focus     float64 `json:"focus"`
	Energy    float64 `json:"energy"`
	MetaState string  `json:"meta_state"`
}

// Environment wraps the adapter and an LLM router into a dialog loop. Each
// exchange shifts focus, builds a state prompt with the currently active
// memes, and occasionally injects an extra autonomous thought.
type Environment struct {
	adapter    *Adapter
	router     *provider.Router
	population *meme.Population
	logger     *zap.Logger

	mu    sync.Mutex
	state EnvState
}

// NewEnvironment creates a dialog environment. The population may be nil; the
// state prompt then carries no active memes.
func NewEnvironment(adapter *Adapter, router *provider.Router, population *meme.Population, logger *zap.Logger) *Environment {
	return &Environment{
		adapter:    adapter,
		router:     router,
		population: population,
		logger:     logger,
		state: EnvState{
			Emotion:   "спокойствие",
			Focus:     0.8,
			Energy:    0.9,
			MetaState: "рефлексия",
		},
	}
}

// State returns a copy of the substrate state.
func (e *Environment) State() EnvState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Handle runs one dialog exchange and returns the LLM reply.
func (e *Environment) Handle(ctx context.Context, userInput string) (string, error) {
	e.mu.Lock()
	// Questions sharpen focus, statements relax it.
	delta := -0.05
	if strings.Contains(userInput, "?") {
		delta = 0.1
	}
	e.state.Focus = clamp(e.state.Focus+delta, 0.1, 0.9)
	statePrompt := e.statePromptLocked()
	e.mu.Unlock()

	contextMsg, err := e.adapter.ProcessInput(ctx, userInput)
	if err != nil {
		return "", err
	}

	msgs := []provider.Message{
		{Role: "system", Content: statePrompt},
		contextMsg,
		{Role: "user", Content: userInput},
	}

	// Occasionally surface an extra autonomous thought.
	if rand.Float64() < 0.1 {
		if auto, ok := e.adapter.InjectAutonomousThought(); ok {
			msgs = append(msgs[:1], append([]provider.Message{auto}, msgs[1:]...)...)
		}
	}

	resp, err := e.router.Route(ctx, &provider.ChatRequest{
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("dialog exchange: %w", err)
	}

	e.mu.Lock()
	e.state.Energy = clamp(e.state.Energy*0.97, 0.1, 1.0)
	e.mu.Unlock()

	return strings.TrimSpace(resp.Content), nil
}

// statePromptLocked renders the substrate state with up to three active
// memes. Caller must hold the mutex.
func (e *Environment) statePromptLocked() string {
	doc := map[string]interface{}{
		"emotion":      e.state.Emotion,
		"focus":        round2(e.state.Focus),
		"energy":       round2(e.state.Energy),
		"meta_state":   e.state.MetaState,
		"active_memes": strings.Join(e.activeMemes(), ", "),
	}
	data, _ := json.Marshal(doc)
	return "[UMA_STATE_JSON]" + string(data) + "[END_STATE]"
}

// activeMemes picks the highest-fitness text-renderable memes above the focus
// level, at most three.
func (e *Environment) activeMemes() []string {
	if e.population == nil {
		return nil
	}
	var names []string
	for _, m := range e.population.List() {
		if m.Fitness < e.state.Focus {
			continue
		}
		if text := m.RenderText(); text != "" {
			names = append(names, text)
		}
		if len(names) == 3 {
			break
		}
	}
	return names
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
