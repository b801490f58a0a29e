package sim

import (
	"context"
	"time"

	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/meme"
	"go.uber.org/zap"
)

// Indexer re-syncs the vector index after a generation replaces the
// population. Satisfied by vectorstore.MemeIndex.
type Indexer interface {
	IndexPopulation(ctx context.Context, p *meme.Population) (int, error)
}

// Announcer publishes evolution milestones to chat platforms. Satisfied by
// gateway.Broadcaster.
type Announcer interface {
	AnnounceGeneration(ctx context.Context, generation, size int) error
	AnnounceStrategies(ctx context.Context, names []string) error
}

// GenerationDriver advances the meme population every N ticks and evolves the
// agent's strategies every M ticks. It implements TickListener.
type GenerationDriver struct {
	population    *meme.Population
	agent         *agent.Agent
	index         Indexer
	announcer     Announcer
	evolveEvery   int
	strategyEvery int
	ticks         int
	logger        *zap.Logger
}

// NewGenerationDriver wires the population and agent into the clock.
// Non-positive intervals disable the corresponding step.
func NewGenerationDriver(p *meme.Population, a *agent.Agent, evolveEvery, strategyEvery int, logger *zap.Logger) *GenerationDriver {
	return &GenerationDriver{
		population:    p,
		agent:         a,
		evolveEvery:   evolveEvery,
		strategyEvery: strategyEvery,
		logger:        logger,
	}
}

// SetIndex attaches a vector index that is refreshed best-effort after each
// generation. Accepts nil.
func (d *GenerationDriver) SetIndex(idx Indexer) {
	d.index = idx
}

// SetAnnouncer attaches a broadcaster for evolution milestones. Accepts nil.
func (d *GenerationDriver) SetAnnouncer(a Announcer) {
	d.announcer = a
}

// OnTick implements TickListener.
func (d *GenerationDriver) OnTick(worldTime time.Time) {
	d.ticks++

	if d.evolveEvery > 0 && d.ticks%d.evolveEvery == 0 {
		d.population.Evolve()
		if d.index != nil {
			if n, err := d.index.IndexPopulation(context.Background(), d.population); err != nil {
				d.logger.Warn("population reindex failed", zap.Error(err))
			} else {
				d.logger.Debug("population reindexed", zap.Int("indexed", n))
			}
		}
		if d.announcer != nil {
			err := d.announcer.AnnounceGeneration(context.Background(),
				d.population.Generation(), d.population.Len())
			if err != nil {
				d.logger.Warn("generation announcement failed", zap.Error(err))
			}
		}
	}

	if d.strategyEvery > 0 && d.ticks%d.strategyEvery == 0 && d.agent != nil {
		mutated, err := d.agent.EvolveStrategies(context.Background())
		if err != nil {
			d.logger.Warn("strategy evolution failed", zap.Error(err))
			return
		}
		if len(mutated) > 0 {
			d.logger.Info("strategies evolved on tick",
				zap.Int("tick", d.ticks),
				zap.Int("new", len(mutated)))
			if d.announcer != nil {
				names := make([]string, len(mutated))
				for i, m := range mutated {
					names[i] = m.Name
				}
				if err := d.announcer.AnnounceStrategies(context.Background(), names); err != nil {
					d.logger.Warn("strategy announcement failed", zap.Error(err))
				}
			}
		}
	}
}
