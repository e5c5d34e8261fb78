// Package poller runs periodic background jobs such as the reminder tick and
// the daily reminder cleanup.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is a named unit of periodic work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Poller runs every job on its own ticker until stopped
type Poller struct {
	jobs   []Job
	logger *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Poller for jobs. Jobs with a non-positive interval are rejected.
func New(logger *slog.Logger, jobs ...Job) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, j := range jobs {
		if j.Interval <= 0 {
			return nil, fmt.Errorf("job %q: interval must be positive", j.Name)
		}
		if j.Run == nil {
			return nil, fmt.Errorf("job %q: run function is required", j.Name)
		}
	}
	return &Poller{
		jobs:     jobs,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Start launches one goroutine per job and returns immediately
func (p *Poller) Start(ctx context.Context) {
	for _, j := range p.jobs {
		p.wg.Add(1)
		go p.loop(ctx, j)
	}
}

// Stop signals every job to stop and waits for running iterations to finish
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, j Job) {
	defer p.wg.Done()

	p.logger.Info("Starting job", "job", j.Name, "interval", j.Interval)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	// Initial run
	p.run(ctx, j)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Job stopped (context cancelled)", "job", j.Name)
			return
		case <-p.stopChan:
			p.logger.Info("Job stopped", "job", j.Name)
			return
		case <-ticker.C:
			p.run(ctx, j)
		}
	}
}

// run executes one iteration. Errors and panics are logged; the next tick
// runs normally.
func (p *Poller) run(ctx context.Context, j Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panicked", "job", j.Name, "panic", r)
		}
	}()

	start := time.Now()
	if err := j.Run(ctx); err != nil {
		p.logger.Error("Job failed", "job", j.Name, "error", err)
		return
	}
	p.logger.Debug("Job finished", "job", j.Name, "took", time.Since(start))
}
