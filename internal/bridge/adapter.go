package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/provider"
	"go.uber.org/zap"
)

// Response mode templates keyed by the agent's emotion. Challenge fills in the
// user input; observe and reflect fill in a buffered thought.
const (
	modeObserve   = "observe"
	modeReflect   = "reflect"
	modeChallenge = "challenge"
)

var responseModes = map[string]string{
	modeObserve:   "Наблюдаю: %s",
	modeReflect:   "Анализирую: %s",
	modeChallenge: "Ставлю под сомнение: %s",
}

// BufferedThought is one autonomous thought waiting to surface in a prompt.
type BufferedThought struct {
	Thought   string    `json:"thought"`
	Priority  float64   `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

// Adapter weaves the agent's autonomous decision output into system prompts
// for a chat-completion LLM. Actions above the cost threshold accumulate in a
// thought buffer; high-priority thoughts surface in the next prompt.
type Adapter struct {
	agent  *agent.Agent
	logger *zap.Logger

	mu                  sync.Mutex
	buffer              []BufferedThought
	activationThreshold float64
}

// NewAdapter creates an adapter over the given agent.
func NewAdapter(a *agent.Agent, logger *zap.Logger) *Adapter {
	return &Adapter{
		agent:               a,
		logger:              logger,
		activationThreshold: 0.7,
	}
}

// ProcessInput runs the user input through the agent and returns the system
// prompt line for the next LLM call.
func (ad *Adapter) ProcessInput(ctx context.Context, userInput string) (provider.Message, error) {
	result, err := ad.agent.Think(ctx, "Пользователь: "+userInput)
	if err != nil {
		return provider.Message{}, fmt.Errorf("process input: %w", err)
	}
	ad.absorb(result)
	return ad.contextMessage(userInput), nil
}

// AbsorbReflection feeds a background decision result into the buffer.
func (ad *Adapter) AbsorbReflection(result *agent.ThinkResult) {
	ad.absorb(result)
}

// absorb buffers thoughts for actions costly enough to be worth surfacing.
func (ad *Adapter) absorb(result *agent.ThinkResult) {
	if result == nil || result.Status != agent.StatusProcessed {
		return
	}
	ad.mu.Lock()
	defer ad.mu.Unlock()
	for _, act := range result.Actions {
		if act.EnergyCost <= 3 {
			continue
		}
		ad.buffer = append(ad.buffer, BufferedThought{
			Thought:   act.Strategy + ": " + act.ActionPlan,
			Priority:  float64(act.EnergyCost) / 10,
			Timestamp: time.Now(),
		})
	}
}

// InjectAutonomousThought pops a random buffered thought as a system message,
// or false when the buffer is empty.
func (ad *Adapter) InjectAutonomousThought() (provider.Message, bool) {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.buffer) == 0 {
		return provider.Message{}, false
	}
	i := rand.Intn(len(ad.buffer))
	t := ad.buffer[i]
	ad.buffer = append(ad.buffer[:i], ad.buffer[i+1:]...)
	return provider.Message{
		Role:    "system",
		Content: "Авторефлексия: " + t.Thought,
	}, true
}

// BufferLen reports how many thoughts are waiting.
func (ad *Adapter) BufferLen() int {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return len(ad.buffer)
}

// contextMessage picks a response mode from the agent's emotion and fills it
// with either a high-priority buffered thought or the raw input.
func (ad *Adapter) contextMessage(lastInput string) provider.Message {
	emotion := ad.agent.StateSnapshot().Emotion

	mode := modeObserve
	switch {
	case emotion == "тревога":
		mode = modeChallenge
	case emotion == "спокойствие" && rand.Float64() > 0.7:
		mode = modeReflect
	}

	ad.mu.Lock()
	var active *BufferedThought
	activeIdx := -1
	if mode != modeChallenge && len(ad.buffer) > 0 {
		var high []int
		for i, t := range ad.buffer {
			if t.Priority > ad.activationThreshold {
				high = append(high, i)
			}
		}
		if len(high) > 0 {
			activeIdx = high[rand.Intn(len(high))]
			t := ad.buffer[activeIdx]
			active = &t
		}
	}
	if activeIdx >= 0 {
		ad.buffer = append(ad.buffer[:activeIdx], ad.buffer[activeIdx+1:]...)
	}
	ad.mu.Unlock()

	var content string
	if active != nil {
		content = fmt.Sprintf(responseModes[mode], active.Thought)
	} else {
		content = fmt.Sprintf(responseModes[mode], lastInput)
	}
	return provider.Message{Role: "system", Content: content}
}
