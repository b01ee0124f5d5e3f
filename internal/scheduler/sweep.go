package scheduler

import (
	"context"
	"time"

	"spotter_portal_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

const (
	sweepBatchSize  = 200
	sweepStaleAfter = 2 * time.Minute
	sweepTimeout    = time.Minute
)

// Redeliverer re-dispatches updates whose delivery failed or never started.
type Redeliverer interface {
	Redeliver(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// RedeliverySweep periodically hands failed updates back to the queue.
type RedeliverySweep struct {
	cron        *cron.Cron
	redeliverer Redeliverer
	log         *logger.Logger
}

// NewRedeliverySweep schedules the sweep on schedule, a cron expression or a
// descriptor such as "@every 5m".
func NewRedeliverySweep(schedule string, redeliverer Redeliverer, log *logger.Logger) (*RedeliverySweep, error) {
	s := &RedeliverySweep{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		redeliverer: redeliverer,
		log:         log,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RedeliverySweep) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := s.redeliverer.Redeliver(ctx, sweepStaleAfter, sweepBatchSize)
	if err != nil {
		s.log.Error("redelivery sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("redelivery sweep requeued updates", "count", n)
	}
}

// Run starts the schedule and stops it when ctx is done, waiting for a
// running sweep to finish.
func (s *RedeliverySweep) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
