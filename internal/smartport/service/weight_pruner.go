package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
)

type PrunerConfig struct {
	// RetentionDays of weight history to keep, counted in whole UTC days
	// so the dashboard's "today" is never touched. 0 keeps everything.
	RetentionDays int

	// IntervalHours between sweeps. Defaults to 6.
	IntervalHours int

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// WeightPruner sweeps expired scale readings in the background.
type WeightPruner struct {
	store    store.WeightStore
	days     int
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu     sync.Mutex
	stop   context.CancelFunc
	exited chan struct{}
}

func NewWeightPruner(s store.WeightStore, cfg PrunerConfig, logger *log.Logger) *WeightPruner {
	every := time.Duration(cfg.IntervalHours) * time.Hour
	if every <= 0 {
		every = 6 * time.Hour
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &WeightPruner{
		store:    s,
		days:     cfg.RetentionDays,
		interval: every,
		logger:   logger,
		now:      func() time.Time { return now().UTC() },
	}
}

// Cutoff is the start of the oldest UTC day still retained.
func (p *WeightPruner) Cutoff() time.Time {
	t := p.now()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -p.days)
}

// PruneOnce deletes readings recorded before Cutoff.
func (p *WeightPruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.days <= 0 {
		return 0, nil
	}
	cutoff := p.Cutoff()
	n, err := p.store.PruneWeightsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune weights before %s: %w", cutoff.Format("2006-01-02"), err)
	}
	obs.WeightsPruned.Add(float64(n))
	return n, nil
}

// Start sweeps right away and then every interval, until ctx ends or Stop
// is called. With no retention it does nothing.
func (p *WeightPruner) Start(ctx context.Context) {
	if p.days <= 0 {
		p.logger.Printf("weight retention disabled, readings kept forever")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	ctx, p.stop = context.WithCancel(ctx)
	p.exited = make(chan struct{})
	go p.run(ctx, p.exited)

	p.logger.Printf("weight retention days=%d sweep_every=%s", p.days, p.interval)
}

// Stop ends the sweeps and waits for a running one to finish.
func (p *WeightPruner) Stop() {
	p.mu.Lock()
	stop, exited := p.stop, p.exited
	p.stop = nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-exited
}

func (p *WeightPruner) run(ctx context.Context, exited chan struct{}) {
	defer close(exited)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		n, err := p.PruneOnce(ctx)
		switch {
		case err != nil:
			p.logger.Printf("weight retention sweep failed: %v", err)
		case n > 0:
			p.logger.Printf("weight retention sweep deleted=%d before=%s", n, p.Cutoff().Format("2006-01-02"))
		}
		timer.Reset(p.interval)
	}
}
