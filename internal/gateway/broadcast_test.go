package gateway

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestBroadcaster() *Broadcaster {
	return NewBroadcaster(NewGateway(zap.NewNop()), zap.NewNop())
}

func TestSendRequiresType(t *testing.T) {
	b := newTestBroadcaster()
	err := b.Send(context.Background(), &BroadcastMessage{Title: "без типа"})
	if err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestAnnounceGeneration(t *testing.T) {
	b := newTestBroadcaster()
	if err := b.AnnounceGeneration(context.Background(), 5, 12); err != nil {
		t.Fatalf("AnnounceGeneration: %v", err)
	}

	records := b.History(0)
	if len(records) != 1 {
		t.Fatalf("history = %d records", len(records))
	}
	msg := records[0].Message
	if msg.Type != BroadcastGeneration {
		t.Errorf("type = %q", msg.Type)
	}
	if !strings.Contains(msg.Title, "5") || !strings.Contains(msg.Content, "12") {
		t.Errorf("message = %q / %q", msg.Title, msg.Content)
	}
}

func TestAnnounceStrategies(t *testing.T) {
	b := newTestBroadcaster()
	err := b.AnnounceStrategies(context.Background(), []string{"Базовый анализ v42"})
	if err != nil {
		t.Fatalf("AnnounceStrategies: %v", err)
	}

	records := b.History(0)
	if len(records) != 1 {
		t.Fatalf("history = %d records", len(records))
	}
	msg := records[0].Message
	if msg.Type != BroadcastStrategyEvolved {
		t.Errorf("type = %q", msg.Type)
	}
	if !strings.Contains(msg.Content, "Базовый анализ v42") {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestHistoryLimit(t *testing.T) {
	b := newTestBroadcaster()
	for i := 0; i < 4; i++ {
		if err := b.AnnounceGeneration(context.Background(), i+1, 1); err != nil {
			t.Fatal(err)
		}
	}

	records := b.History(2)
	if len(records) != 2 {
		t.Fatalf("limited history = %d records, want 2", len(records))
	}
	// Most recent records are kept.
	if got := records[1].Message.Title; !strings.Contains(got, "4") {
		t.Errorf("last record title = %q", got)
	}

	if got := len(b.History(0)); got != 4 {
		t.Errorf("unlimited history = %d records, want 4", got)
	}
}
