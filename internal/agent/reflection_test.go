package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReflectorProducesThoughts(t *testing.T) {
	a, _ := newTestAgent(t)
	r := NewReflector(a, 10*time.Millisecond, zap.NewNop())

	r.Start(context.Background())
	if !r.Running() {
		t.Fatal("reflector should be running after Start")
	}
	time.Sleep(100 * time.Millisecond)
	r.Stop()
	if r.Running() {
		t.Fatal("reflector should be stopped after Stop")
	}

	mem := a.MemorySnapshot()
	if len(mem.Thoughts) == 0 {
		t.Fatal("no reflected thoughts recorded")
	}
	for _, th := range mem.Thoughts {
		if !strings.HasPrefix(th, "[auto] ") && !strings.HasPrefix(th, "[meta] ") {
			t.Errorf("thought %q missing reflection prefix", th)
		}
	}
}

func TestReflectorStopIsIdempotent(t *testing.T) {
	a, _ := newTestAgent(t)
	r := NewReflector(a, time.Millisecond, zap.NewNop())

	r.Start(context.Background())
	r.Start(context.Background()) // second Start is a no-op
	r.Stop()
	r.Stop() // second Stop must not block or panic
}

func TestReflectorPickPrefixes(t *testing.T) {
	a, _ := newTestAgent(t)
	r := NewReflector(a, time.Minute, zap.NewNop())

	auto, meta := 0, 0
	for i := 0; i < 200; i++ {
		th := r.pick()
		switch {
		case strings.HasPrefix(th, "[auto] "):
			auto++
		case strings.HasPrefix(th, "[meta] "):
			meta++
		default:
			t.Fatalf("unexpected thought %q", th)
		}
	}
	if auto == 0 || meta == 0 {
		t.Errorf("expected both pools drawn, got auto=%d meta=%d", auto, meta)
	}
}
