package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/memetic-os/memos/internal/strategy"
	"go.uber.org/zap"
)

// FileStore keeps the two documents in separate JSON files, each rewritten
// wholesale after every mutating operation. Suitable for a single writer at
// a time; there is no protection against concurrent processes.
type FileStore struct {
	snapshotPath string
	statsPath    string
	logger       *zap.Logger
}

// NewFileStore creates a file-backed store. Missing files are not an error:
// they read back as absent documents.
func NewFileStore(snapshotPath, statsPath string, logger *zap.Logger) *FileStore {
	return &FileStore{
		snapshotPath: snapshotPath,
		statsPath:    statsPath,
		logger:       logger,
	}
}

// LoadSnapshot reads the {memes, memory} document if it exists.
func (f *FileStore) LoadSnapshot(_ context.Context) (*Snapshot, bool, error) {
	data, err := os.ReadFile(f.snapshotPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot %s: %w", f.snapshotPath, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("parse snapshot %s: %w", f.snapshotPath, err)
	}
	return &s, true, nil
}

// SaveSnapshot overwrites the {memes, memory} document.
func (f *FileStore) SaveSnapshot(_ context.Context, s *Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(f.snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", f.snapshotPath, err)
	}
	return nil
}

// LoadStats reads the strategy statistics document if it exists.
func (f *FileStore) LoadStats(_ context.Context) (strategy.Stats, bool, error) {
	data, err := os.ReadFile(f.statsPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read stats %s: %w", f.statsPath, err)
	}
	var stats strategy.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("parse stats %s: %w", f.statsPath, err)
	}
	return stats, true, nil
}

// SaveStats overwrites the strategy statistics document.
func (f *FileStore) SaveStats(_ context.Context, stats strategy.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	if err := os.WriteFile(f.statsPath, data, 0o644); err != nil {
		return fmt.Errorf("write stats %s: %w", f.statsPath, err)
	}
	return nil
}
