package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/pmundhra/plum-ems/internal/logging"
)

// Sweeper drives Scheduler.Sweep on a cron schedule, the periodic visitor
// spec.md §4.1 describes informally as "a periodic sweeper visits every
// active employer".
type Sweeper struct {
	scheduler *Scheduler
	cron      *cron.Cron
	log       *logging.Logger
}

// NewSweeper builds a Sweeper that invokes Scheduler.Sweep on the given
// cron expression (e.g. "@every 5s").
func NewSweeper(s *Scheduler, cronExpr string, log *logging.Logger) (*Sweeper, error) {
	c := cron.New()
	sw := &Sweeper{scheduler: s, cron: c, log: log}

	_, err := c.AddFunc(cronExpr, func() {
		sw.scheduler.Sweep(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweeper cron %q: %w", cronExpr, err)
	}
	return sw, nil
}

// Start begins the cron scheduler in the background.
func (sw *Sweeper) Start() {
	sw.cron.Start()
}

// Stop halts the cron scheduler, waiting for any in-flight sweep to finish.
func (sw *Sweeper) Stop() {
	<-sw.cron.Stop().Done()
}
