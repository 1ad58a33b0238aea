package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"VisaDecisions/internal/ports"
)

// CronScheduler triggers jobs on a standard five-field cron expression.
type CronScheduler struct {
	spec       string
	location   *time.Location
	runOnStart bool
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// Options configure a CronScheduler.
type Options struct {
	Spec       string
	Timezone   string
	RunOnStart bool
}

// NewCronScheduler validates the expression and timezone up front.
func NewCronScheduler(opts Options, logger *slog.Logger) (*CronScheduler, error) {
	if _, err := cron.ParseStandard(opts.Spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", opts.Spec, err)
	}

	loc := time.UTC
	if opts.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(opts.Timezone); err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &CronScheduler{
		spec:       opts.Spec,
		location:   loc,
		runOnStart: opts.RunOnStart,
		logger:     logger,
	}, nil
}

// Start registers job and begins the cron loop. Overlapping triggers are
// skipped while a previous run is still going.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(c.logger.Handler(), slog.LevelDebug))
	cr := cron.New(
		cron.WithLocation(c.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	id, err := cr.AddFunc(c.spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	})
	if err != nil {
		return fmt.Errorf("register job: %w", err)
	}

	cr.Start()
	c.cron = cr

	c.logger.Info("cron scheduler started",
		slog.String("spec", c.spec),
		slog.String("timezone", c.location.String()),
		slog.Time("next", cr.Entry(id).Next),
	)

	if c.runOnStart {
		go cr.Entry(id).WrappedJob.Run()
	}
	return nil
}

// Stop halts the loop and waits for a running job to finish or ctx to expire.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	c.logger.Info("cron scheduler stopping")
	select {
	case <-cr.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
