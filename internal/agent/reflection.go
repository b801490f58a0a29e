package agent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Thought pools for the background reflection loop. Auto thoughts are mundane
// self-observations; meta thoughts question the agent's own reasoning.
var (
	autoThoughts = []string{
		"Что бы улучшило текущую цель?",
		"Какие мемы наиболее пригодны?",
		"Что я могу забыть?",
		"Какую стратегию стоит попробовать?",
		"Есть ли конфликт между целями?",
	}
	metaThoughts = []string{
		"Как я себя чувствую?",
		"Какие стратегии я использовал сегодня?",
		"Почему я выбрал стратегию X?",
		"Что можно улучшить в моем мышлении?",
		"Какая моя цель сейчас и соответствует ли она моим действиям?",
	}
)

// Reflector feeds the agent self-generated thoughts on an interval, so the
// decision loop keeps running without external input.
type Reflector struct {
	agent    *Agent
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReflector creates a stopped reflector.
func NewReflector(agent *Agent, interval time.Duration, logger *zap.Logger) *Reflector {
	return &Reflector{
		agent:    agent,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the reflection loop. Calling Start on a running reflector is
// a no-op.
func (r *Reflector) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx)
	r.logger.Info("reflection started", zap.Duration("interval", r.interval))
}

// Stop cancels the loop and waits for the current cycle to finish.
func (r *Reflector) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("reflection stopped")
}

// Running reports whether the loop is active.
func (r *Reflector) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Reflector) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

// cycle runs one reflection pass. A panic or error in one cycle must not kill
// the loop; the next tick starts clean.
func (r *Reflector) cycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reflection cycle panicked", zap.Any("panic", rec))
		}
	}()

	thought := r.pick()
	result, err := r.agent.Think(ctx, thought)
	if err != nil {
		r.logger.Warn("reflection think failed", zap.Error(err))
		return
	}
	r.logger.Debug("reflection cycle",
		zap.String("thought", thought),
		zap.String("status", result.Status))
}

// pick draws a thought: mostly auto, occasionally meta.
func (r *Reflector) pick() string {
	if rand.Float64() < 0.7 {
		return "[auto] " + autoThoughts[rand.Intn(len(autoThoughts))]
	}
	return "[meta] " + metaThoughts[rand.Intn(len(metaThoughts))]
}
