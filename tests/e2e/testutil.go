package e2e

import (
	"context"
	"fmt"
	"sync"

	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/memetic-os/memos/internal/gateway"
	"github.com/memetic-os/memos/internal/graph"
	"github.com/memetic-os/memos/internal/persist"
)

// Suppress unused import warning for testcontainers base package.
var _ = testcontainers.GenericContainerRequest{}

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testLogger   *zap.Logger
	testPGStore  *persist.PostgresStore
	testGraph    *graph.MemeGraph
	testRedisURL string
)

// startNeo4j starts a Neo4j testcontainer, returns URI + cleanup func.
func startNeo4j(ctx context.Context) (string, func(), error) {
	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start neo4j: %w", err)
	}
	uri, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("neo4j bolt url: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return uri, cleanup, nil
}

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("memos_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// CaptureAdapter is a test gateway adapter that records all outbound messages.
type CaptureAdapter struct {
	sent    []*gateway.OutboundMessage
	handler gateway.MessageHandler
	mu      sync.Mutex
}

func (c *CaptureAdapter) Platform() string                   { return "test" }
func (c *CaptureAdapter) Connect(ctx context.Context) error  { return nil }
func (c *CaptureAdapter) OnMessage(h gateway.MessageHandler) { c.handler = h }
func (c *CaptureAdapter) Close() error                       { return nil }

func (c *CaptureAdapter) Send(ctx context.Context, msg *gateway.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *CaptureAdapter) Broadcast(ctx context.Context, msg *gateway.BroadcastMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, &gateway.OutboundMessage{
		Platform:  "test",
		ChannelID: "broadcast",
		Content:   msg.Content,
	})
	return nil
}

// Inject simulates an inbound message from a user.
func (c *CaptureAdapter) Inject(msg *gateway.InboundMessage) {
	msg.Platform = "test"
	if c.handler != nil {
		c.handler(msg)
	}
}

// Sent returns a copy of all captured outbound messages.
func (c *CaptureAdapter) Sent() []*gateway.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]*gateway.OutboundMessage, len(c.sent))
	copy(cp, c.sent)
	return cp
}

// Reset clears captured messages.
func (c *CaptureAdapter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
