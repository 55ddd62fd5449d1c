package scheduler

import (
	"context"
	"time"

	"filingscout/internal/ports"
)

// IntervalScheduler triggers the pipeline on a fixed interval using
// time.Ticker. The first cycle runs immediately on Start.
type IntervalScheduler struct {
	interval time.Duration
	location *time.Location
	stop     chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler firing every interval.
func NewIntervalScheduler(interval time.Duration, location *time.Location) *IntervalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if location == nil {
		location = time.Local
	}
	return &IntervalScheduler{interval: interval, location: location}
}

// Start begins ticking until the context is cancelled or Stop is called.
func (c *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		job(time.Now().In(c.location))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(c.location))
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (c *IntervalScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}
