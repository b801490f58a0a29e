package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Gateway owns the registered platform adapters and fans messages between
// them and the single inbound handler.
type Gateway struct {
	adapters map[string]Adapter
	handler  MessageHandler
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway with no adapters.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// SetHandler sets the callback for all inbound messages. Must be called
// before Register: registration captures the handler indirection.
func (g *Gateway) SetHandler(h MessageHandler) {
	g.handler = h
}

// Register adds an adapter and wires its inbound messages to the handler.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	platform := adapter.Platform()
	g.adapters[platform] = adapter
	adapter.OnMessage(func(msg *InboundMessage) {
		if g.handler != nil {
			g.handler(msg)
		}
	})
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

// ConnectAll starts every registered adapter. One adapter failing to connect
// does not stop the others; the combined failure is reported at the end so
// the caller can decide whether to run degraded.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	failed := 0
	for platform, adapter := range g.adapters {
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Error("adapter connect failed",
				zap.String("platform", platform), zap.Error(err))
			failed++
			continue
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	if failed > 0 {
		return fmt.Errorf("connect failed on %d adapter(s)", failed)
	}
	return nil
}

// Send delivers a message through the adapter named in msg.Platform.
func (g *Gateway) Send(ctx context.Context, msg *OutboundMessage) error {
	g.mu.RLock()
	adapter, ok := g.adapters[msg.Platform]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no adapter for platform: %s", msg.Platform)
	}
	return adapter.Send(ctx, msg)
}

// Broadcast fans a message out to all adapters, or to the subset named in
// msg.Platforms when non-empty.
func (g *Gateway) Broadcast(ctx context.Context, msg *BroadcastMessage) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := g.adapters
	if len(msg.Platforms) > 0 {
		targets = make(map[string]Adapter)
		for _, p := range msg.Platforms {
			if a, ok := g.adapters[p]; ok {
				targets[p] = a
			}
		}
	}

	failed := 0
	for platform, adapter := range targets {
		if err := adapter.Broadcast(ctx, msg); err != nil {
			g.logger.Error("broadcast failed",
				zap.String("platform", platform), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("broadcast failed on %d platform(s)", failed)
	}
	return nil
}

// Close shuts down all adapters. Close errors are logged, not returned;
// shutdown proceeds regardless.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for platform, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}

// Adapters returns the registered platform names, sorted for stable output.
func (g *Gateway) Adapters() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for p := range g.adapters {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}
