package sim

import (
	"context"
	"testing"
	"time"

	"github.com/memetic-os/memos/internal/meme"
	"go.uber.org/zap"
)

type countingListener struct {
	ticks int
	last  time.Time
}

func (c *countingListener) OnTick(wt time.Time) {
	c.ticks++
	c.last = wt
}

func TestClockNotifiesListeners(t *testing.T) {
	clock := NewClock(5*time.Millisecond, 1.0, zap.NewNop())
	l := &countingListener{}
	clock.AddListener(l)

	clock.Start()
	time.Sleep(60 * time.Millisecond)
	clock.Stop()

	if l.ticks == 0 {
		t.Fatal("listener never ticked")
	}
	if l.last.IsZero() {
		t.Error("tick carried zero world time")
	}
}

func TestClockSpeedAdvancesWorldTime(t *testing.T) {
	clock := NewClock(time.Millisecond, 100.0, zap.NewNop())
	start := clock.WorldTime()

	clock.Start()
	time.Sleep(50 * time.Millisecond)
	clock.Stop()

	advanced := clock.WorldTime().Sub(start)
	// At 100x a few milliseconds of real time cover far more world time.
	if advanced < 100*time.Millisecond {
		t.Errorf("world time advanced only %v at 100x", advanced)
	}
}

func TestGenerationDriverEvolvesOnSchedule(t *testing.T) {
	pop := meme.NewPopulation(nil, zap.NewNop())
	m, err := meme.New(meme.KindText, "идея", nil)
	if err != nil {
		t.Fatal(err)
	}
	pop.Add(m)

	d := NewGenerationDriver(pop, nil, 3, 0, zap.NewNop())
	for i := 0; i < 9; i++ {
		d.OnTick(time.Now())
	}
	if got := pop.Generation(); got != 3 {
		t.Errorf("generation = %d after 9 ticks with period 3, want 3", got)
	}
}

type recordingAnnouncer struct {
	generations []int
	strategies  [][]string
}

func (r *recordingAnnouncer) AnnounceGeneration(_ context.Context, generation, size int) error {
	r.generations = append(r.generations, generation)
	return nil
}

func (r *recordingAnnouncer) AnnounceStrategies(_ context.Context, names []string) error {
	r.strategies = append(r.strategies, names)
	return nil
}

func TestGenerationDriverAnnouncesGenerations(t *testing.T) {
	pop := meme.NewPopulation(nil, zap.NewNop())
	m, err := meme.New(meme.KindText, "идея", nil)
	if err != nil {
		t.Fatal(err)
	}
	pop.Add(m)

	ann := &recordingAnnouncer{}
	d := NewGenerationDriver(pop, nil, 2, 0, zap.NewNop())
	d.SetAnnouncer(ann)
	for i := 0; i < 6; i++ {
		d.OnTick(time.Now())
	}

	if len(ann.generations) != 3 {
		t.Fatalf("announcements = %d after 6 ticks with period 2, want 3", len(ann.generations))
	}
	if ann.generations[2] != 3 {
		t.Errorf("last announced generation = %d, want 3", ann.generations[2])
	}
}

func TestGenerationDriverDisabled(t *testing.T) {
	pop := meme.NewPopulation(nil, zap.NewNop())
	m, err := meme.New(meme.KindText, "идея", nil)
	if err != nil {
		t.Fatal(err)
	}
	pop.Add(m)

	d := NewGenerationDriver(pop, nil, 0, 0, zap.NewNop())
	for i := 0; i < 10; i++ {
		d.OnTick(time.Now())
	}
	if got := pop.Generation(); got != 0 {
		t.Errorf("generation = %d, want 0 when disabled", got)
	}
}
