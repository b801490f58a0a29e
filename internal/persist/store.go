package persist

import (
	"context"
	"time"

	"github.com/memetic-os/memos/internal/strategy"
)

// LogEntry is one timestamped event in the agent's log.
type LogEntry struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
}

// MemoryDoc is the persisted shape of the agent's memory: ordered, append-only
// lists within a session.
type MemoryDoc struct {
	Goals    []string   `json:"goals"`
	Thoughts []string   `json:"thoughts"`
	Log      []LogEntry `json:"log"`
}

// Snapshot is the first of the two persisted documents: meme notes plus
// memory.
type Snapshot struct {
	Memes  map[string]string `json:"memes"`
	Memory MemoryDoc         `json:"memory"`
}

// Store persists the agent's two documents: the {memes, memory} snapshot and
// the strategy statistics. Load methods report absence with found=false
// rather than an error; Save overwrites the whole document. No partial-write
// protocol is provided: concurrent writers are out of contract.
type Store interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	LoadStats(ctx context.Context) (strategy.Stats, bool, error)
	SaveStats(ctx context.Context, stats strategy.Stats) error
}
