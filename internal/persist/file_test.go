package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memetic-os/memos/internal/strategy"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(
		filepath.Join(dir, "memos_memory.json"),
		filepath.Join(dir, "strategy_stats.json"),
		zap.NewNop(),
	)
}

func TestMissingFilesReadAsAbsent(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if _, found, err := fs.LoadSnapshot(ctx); err != nil || found {
		t.Errorf("expected absent snapshot, found=%v err=%v", found, err)
	}
	if _, found, err := fs.LoadStats(ctx); err != nil || found {
		t.Errorf("expected absent stats, found=%v err=%v", found, err)
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	in := &Snapshot{
		Memes: map[string]string{"идея": "содержание"},
		Memory: MemoryDoc{
			Goals:    []string{"устранение противоречий"},
			Thoughts: []string{"почему так?"},
			Log:      []LogEntry{{Time: time.Now().UTC(), Event: "Мысль: почему так?"}},
		},
	}
	if err := fs.SaveSnapshot(ctx, in); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	out, found, err := fs.LoadSnapshot(ctx)
	if err != nil || !found {
		t.Fatalf("load snapshot: found=%v err=%v", found, err)
	}
	if out.Memes["идея"] != "содержание" {
		t.Errorf("meme note lost: %v", out.Memes)
	}
	if len(out.Memory.Goals) != 1 || out.Memory.Goals[0] != "устранение противоречий" {
		t.Errorf("goals lost: %v", out.Memory.Goals)
	}
	if len(out.Memory.Log) != 1 || out.Memory.Log[0].Event == "" {
		t.Errorf("log lost: %v", out.Memory.Log)
	}
}

func TestStatsRoundtrip(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	in := strategy.Stats{
		"Базовый анализ": {Uses: 3, Success: 2, Fail: 1},
	}
	if err := fs.SaveStats(ctx, in); err != nil {
		t.Fatalf("save stats: %v", err)
	}

	out, found, err := fs.LoadStats(ctx)
	if err != nil || !found {
		t.Fatalf("load stats: found=%v err=%v", found, err)
	}
	c := out["Базовый анализ"]
	if c == nil || c.Uses != 3 || c.Success != 2 || c.Fail != 1 {
		t.Errorf("counters lost: %+v", c)
	}
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	first := &Snapshot{Memes: map[string]string{"a": "1", "b": "2"}}
	second := &Snapshot{Memes: map[string]string{"c": "3"}}
	if err := fs.SaveSnapshot(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := fs.SaveSnapshot(ctx, second); err != nil {
		t.Fatal(err)
	}

	out, _, err := fs.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Memes) != 1 || out.Memes["c"] != "3" {
		t.Errorf("save must replace wholesale, got %v", out.Memes)
	}
}
