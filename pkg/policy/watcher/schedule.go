package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Poller triggers reloads on a cron schedule such as "@every 30s" or
// "*/5 * * * *".
type Poller struct {
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPoller validates schedule and creates a stopped poller.
func NewPoller(schedule string, logger *slog.Logger) (*Poller, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid poll schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With("component", "poller"),
	}, nil
}

// Start schedules reload until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context, reload ReloadFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller already running")
	}
	if _, err := p.cron.AddFunc(p.schedule, func() {
		p.logger.Debug("Polling policy artifact")
		reload(ctx, "poll")
	}); err != nil {
		return fmt.Errorf("failed to schedule polling: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("Policy poller started", "schedule", p.schedule)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the schedule and waits for a running reload to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	done := p.cron.Stop()
	<-done.Done()
	p.running = false
	p.logger.Info("Policy poller stopped")
}

// NextRun returns the next scheduled poll, or nil when not running.
func (p *Poller) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if !p.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
