package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSchedule is a robfig/cron spec.
const DefaultSweepSchedule = "@every 15s"

// SweepExpired force-submits every active session whose deadline has passed,
// so candidates who never come back are still graded, then retries any
// ledger append that failed earlier. It returns how many sessions it closed;
// individual failures are logged and the sweep goes on.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	expired, err := e.store.ListExpired(ctx, e.now())
	if err != nil {
		return 0, unavailable("list expired sessions", err)
	}
	closed := 0
	var firstErr error
	for _, s := range expired {
		if err := ctx.Err(); err != nil {
			return closed, err
		}
		ok, err := e.sweepOne(ctx, s.ID)
		if err != nil {
			e.log.WithError(err).WithField("session", s.ID).Error("forced submit failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			closed++
		}
	}
	e.metrics.Swept(closed)
	if closed > 0 {
		e.log.WithField("closed", closed).Info("deadline sweep")
	}
	if err := e.retryLedger(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return closed, firstErr
}

// retryLedger completes ledger writes for sessions that were graded but
// whose entry was never confirmed. Nobody may ever read an abandoned
// session again, so the sweep is the only retry it gets.
func (e *Engine) retryLedger(ctx context.Context) error {
	pending, err := e.store.ListUnledgered(ctx)
	if err != nil {
		return unavailable("list unledgered sessions", err)
	}
	var firstErr error
	for _, s := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.settle(ctx, s.ID); err != nil {
			e.log.WithError(err).WithField("session", s.ID).Error("ledger retry failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.log.WithField("session", s.ID).Info("ledger entry recovered")
	}
	return firstErr
}

func (e *Engine) sweepOne(ctx context.Context, id string) (bool, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, t, err := e.load(ctx, id)
	if err != nil {
		return false, err
	}
	// re-check under the lock; the candidate may have submitted meanwhile
	if s.Status != StatusActive || !Expired(e.now(), s) {
		return false, nil
	}
	if _, err := e.submitLocked(ctx, s, t, true); err != nil {
		return false, err
	}
	return true, nil
}

// Sweeper runs SweepExpired on a cron schedule.
type Sweeper struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

// NewSweeper schedules the sweep plus any extra jobs (for example pool
// stats) on the same cron. Overlapping runs are skipped.
func NewSweeper(e *Engine, schedule string, timeout time.Duration, extra ...func()) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := e.SweepExpired(ctx); err != nil {
			e.log.WithError(err).Warn("deadline sweep incomplete")
		}
		for _, f := range extra {
			f()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{cron: c, log: e.log}, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("deadline sweeper started")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
