package e2e

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/gateway"
	"github.com/memetic-os/memos/internal/graph"
	"github.com/memetic-os/memos/internal/persist"
	"github.com/memetic-os/memos/internal/queue"
	msgrouter "github.com/memetic-os/memos/internal/router"
	"github.com/memetic-os/memos/internal/strategy"
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	// 1. Start Neo4j
	neo4jURI, neo4jCleanup, err := startNeo4j(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "neo4j: %v\n", err)
		os.Exit(1)
	}
	defer neo4jCleanup()

	testGraph, err = graph.NewMemeGraph(neo4jURI, "", "", 0.1, testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meme graph: %v\n", err)
		os.Exit(1)
	}
	defer testGraph.Close(ctx)

	// 2. Start PostgreSQL
	pgDSN, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		os.Exit(1)
	}
	defer pgCleanup()

	testPGStore, err = persist.NewPostgresStore(pgDSN, testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pg store: %v\n", err)
		os.Exit(1)
	}
	defer testPGStore.Close()

	if err := testPGStore.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ensure schema: %v\n", err)
		os.Exit(1)
	}

	// 3. Start Redis
	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer redisCleanup()
	testRedisURL = redisURL

	os.Exit(m.Run())
}

func TestPostgresDocuments(t *testing.T) {
	ctx := context.Background()

	snap := &persist.Snapshot{
		Memes: map[string]string{"идея": "содержание"},
		Memory: persist.MemoryDoc{
			Goals:    []string{"понимание"},
			Thoughts: []string{"почему так?"},
		},
	}
	if err := testPGStore.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	stats := strategy.Stats{}
	c := stats.Touch("Базовый анализ")
	c.Uses, c.Success = 3, 2
	if err := testPGStore.SaveStats(ctx, stats); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}

	loaded, found, err := testPGStore.LoadSnapshot(ctx)
	if err != nil || !found {
		t.Fatalf("LoadSnapshot: found=%v err=%v", found, err)
	}
	if loaded.Memes["идея"] != "содержание" {
		t.Errorf("meme = %q", loaded.Memes["идея"])
	}
	if len(loaded.Memory.Goals) != 1 || loaded.Memory.Goals[0] != "понимание" {
		t.Errorf("goals = %v", loaded.Memory.Goals)
	}

	loadedStats, found, err := testPGStore.LoadStats(ctx)
	if err != nil || !found {
		t.Fatalf("LoadStats: found=%v err=%v", found, err)
	}
	if got := loadedStats["Базовый анализ"]; got == nil || got.Uses != 3 || got.Success != 2 {
		t.Errorf("stats = %+v", got)
	}
}

func TestAgentRestoresFromPostgres(t *testing.T) {
	ctx := context.Background()

	first, err := agent.New(ctx, testPGStore, testLogger)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	if err := first.AddMeme(ctx, "паттерн", "наблюдение за повторением"); err != nil {
		t.Fatalf("AddMeme: %v", err)
	}
	if err := first.RememberGoal(ctx, "рост"); err != nil {
		t.Fatalf("RememberGoal: %v", err)
	}

	second, err := agent.New(ctx, testPGStore, testLogger)
	if err != nil {
		t.Fatalf("restored agent: %v", err)
	}
	if got := second.GetMeme("паттерн"); got != "наблюдение за повторением" {
		t.Errorf("restored meme = %q", got)
	}
	mem := second.MemorySnapshot()
	found := false
	for _, g := range mem.Goals {
		if g == "рост" {
			found = true
		}
	}
	if !found {
		t.Errorf("goal not restored: %v", mem.Goals)
	}
}

func TestThoughtQueueRoundtrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	q, err := queue.NewThoughtQueue(testRedisURL, testLogger)
	if err != nil {
		t.Fatalf("thought queue: %v", err)
	}
	defer q.Close()

	// Consumer reads only entries newer than its start position.
	ch := q.Consume(ctx)
	time.Sleep(200 * time.Millisecond)

	want := []string{"первая мысль", "вторая мысль", "третья мысль"}
	for i, text := range want {
		err := q.Publish(ctx, &queue.Thought{
			ID:        fmt.Sprintf("t-%d", i),
			Source:    "api",
			Text:      text,
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	for i := 0; i < len(want); i++ {
		select {
		case th := <-ch:
			if th.Text != want[i] {
				t.Errorf("thought %d = %q, want %q", i, th.Text, want[i])
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for thought %d", i)
		}
	}
}

func TestThoughtQueueStopsWithFullBuffer(t *testing.T) {
	q, err := queue.NewThoughtQueue(testRedisURL, testLogger)
	if err != nil {
		t.Fatalf("thought queue: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Consume(ctx)
	time.Sleep(200 * time.Millisecond)

	// Overfill the consumer's buffer without draining, then cancel. The
	// consumer must stop and close the channel instead of blocking on the
	// undelivered remainder.
	const published = 30
	for i := 0; i < published; i++ {
		err := q.Publish(context.Background(), &queue.Thought{
			ID:     fmt.Sprintf("t-%d", i),
			Source: "api",
			Text:   "мысль",
		})
		if err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	time.Sleep(500 * time.Millisecond)
	cancel()

	received := 0
	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if received >= published {
					t.Errorf("received all %d thoughts, cancellation should drop the undelivered tail", received)
				}
				return
			}
			received++
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestMemeGraphLifecycle(t *testing.T) {
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	if err := testGraph.UpsertMeme(ctx, a, "text", 0.9); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := testGraph.UpsertMeme(ctx, b, "text", 0.5); err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if err := testGraph.SetLink(ctx, &graph.Link{From: a, To: b, Weight: 0.8}); err != nil {
		t.Fatalf("SetLink: %v", err)
	}

	links, err := testGraph.Neighbors(ctx, a)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(links) != 1 || links[0].To != b {
		t.Fatalf("links = %+v", links)
	}
	if links[0].Weight != 0.8 {
		t.Errorf("weight = %v", links[0].Weight)
	}

	// One decay tick at rate 0.1 should lower the weight.
	testGraph.OnTick(time.Now())
	links, err = testGraph.Neighbors(ctx, a)
	if err != nil {
		t.Fatalf("Neighbors after decay: %v", err)
	}
	if len(links) != 1 || links[0].Weight >= 0.8 {
		t.Errorf("weight after decay = %+v", links)
	}

	if err := testGraph.RemoveMeme(ctx, a); err != nil {
		t.Fatalf("RemoveMeme: %v", err)
	}
	links, err = testGraph.Neighbors(ctx, a)
	if err != nil {
		t.Fatalf("Neighbors after remove: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("links after remove = %+v", links)
	}
}

func TestGatewayCommandFlow(t *testing.T) {
	ctx := context.Background()

	thinker, err := agent.New(ctx, testPGStore, testLogger)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	thinker.SetStrategies([]*strategy.Strategy{{
		Name:          "Базовый анализ",
		Level:         1,
		TriggerTopics: []string{"почему"},
		ActionPlan:    "разобрать вопрос на части",
	}})

	gw := gateway.NewGateway(testLogger)
	capture := &CaptureAdapter{}

	mr := msgrouter.New(thinker, nil, gw, testLogger)

	// SetHandler BEFORE Register — handler is captured at registration time
	gw.SetHandler(mr.Handle)
	gw.Register(capture)

	capture.Inject(&gateway.InboundMessage{
		ChannelID: "ch-1",
		UserID:    "u-1",
		UserName:  "tester",
		Content:   "/state",
		Timestamp: time.Now(),
	})
	sent := capture.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages", len(sent))
	}
	if !strings.Contains(sent[0].Content, "эмоция") {
		t.Errorf("state reply = %q", sent[0].Content)
	}

	capture.Reset()
	capture.Inject(&gateway.InboundMessage{
		ChannelID: "ch-1",
		UserID:    "u-1",
		UserName:  "tester",
		Content:   "почему это работает?",
		Timestamp: time.Now(),
	})
	sent = capture.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages", len(sent))
	}
	if !strings.Contains(sent[0].Content, "энергия") {
		t.Errorf("decision reply = %q", sent[0].Content)
	}
}
