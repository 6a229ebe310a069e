package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ThreatScanner/internal/ports"
	"ThreatScanner/pkg/logger"
)

// CronScheduler runs a job on a standard five-field cron expression.
type CronScheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for expr evaluated in loc (UTC when nil).
func NewCronScheduler(expr string, loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{expr: expr, location: loc, logger: logger.Component(log, "scheduler")}
}

// Start registers job and begins ticking. Overlapping runs are skipped, and
// the scheduler stops by itself when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cr := cron.New(
		cron.WithLocation(c.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	entryID, err := cr.AddFunc(c.expr, func() { job(time.Now().In(c.location)) })
	if err != nil {
		return fmt.Errorf("add cron schedule %q: %w", c.expr, err)
	}

	cr.Start()
	c.cron = cr
	c.logger.Info("scheduler started", "cron", c.expr, "entry_id", entryID, "next", cr.Entry(entryID).Next)

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for a running job or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	stopCtx := cr.Stop()
	select {
	case <-stopCtx.Done():
		c.logger.Info("scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		c.logger.Warn("scheduler stop timeout")
		return ctx.Err()
	}
}

// Validate parses expr without scheduling anything.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
