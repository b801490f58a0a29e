package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BroadcastRecord tracks a sent broadcast for history.
type BroadcastRecord struct {
	Message *BroadcastMessage `json:"message"`
	SentAt  time.Time         `json:"sent_at"`
	Targets []string          `json:"targets"`
}

// Broadcaster announces population and strategy events through the gateway.
type Broadcaster struct {
	gateway *Gateway
	mu      sync.Mutex
	history []BroadcastRecord
	logger  *zap.Logger
}

// NewBroadcaster creates a broadcaster backed by the given gateway.
func NewBroadcaster(gw *Gateway, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		gateway: gw,
		logger:  logger,
	}
}

// Send broadcasts a message to all or selected platforms via the gateway.
func (b *Broadcaster) Send(ctx context.Context, msg *BroadcastMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("broadcast type is required")
	}

	b.logger.Info("sending broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.Int("priority", msg.Priority),
	)

	if err := b.gateway.Broadcast(ctx, msg); err != nil {
		return err
	}

	targets := msg.Platforms
	if len(targets) == 0 {
		targets = b.gateway.Adapters()
	}

	b.mu.Lock()
	b.history = append(b.history, BroadcastRecord{
		Message: msg,
		SentAt:  time.Now(),
		Targets: targets,
	})
	b.mu.Unlock()

	return nil
}

// AnnounceGeneration broadcasts a population evolution milestone.
func (b *Broadcaster) AnnounceGeneration(ctx context.Context, generation, size int) error {
	return b.Send(ctx, &BroadcastMessage{
		Type:    BroadcastGeneration,
		Title:   fmt.Sprintf("Поколение %d", generation),
		Content: fmt.Sprintf("Популяция мемов обновлена, размер %d", size),
	})
}

// AnnounceStrategies broadcasts newly evolved thinking strategies.
func (b *Broadcaster) AnnounceStrategies(ctx context.Context, names []string) error {
	return b.Send(ctx, &BroadcastMessage{
		Type:    BroadcastStrategyEvolved,
		Title:   "Эволюция стратегий",
		Content: "Новые стратегии: " + strings.Join(names, ", "),
	})
}

// History returns recent broadcast records.
func (b *Broadcaster) History(limit int) []BroadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	start := len(b.history) - limit
	return b.history[start:]
}
