package cron

import (
	"context"
	"time"

	"chainvault/internal/metrics"
	"chainvault/pkg/utils"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepLimit = 200

type Confirmer interface {
	ConfirmStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Settler interface {
	SettleStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Sweeper re-drives sends and swap orders whose scheduled task was lost,
// typically because the process restarted before the delay elapsed.
type Sweeper struct {
	confirmer Confirmer
	settler   Settler
	after     time.Duration
	now       func() time.Time
}

func NewSweeper(confirmer Confirmer, settler Settler, after time.Duration, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{confirmer: confirmer, settler: settler, after: after, now: now}
}

// Sweep runs one recovery pass over everything older than the sweep window.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.after)

	confirmed, err := s.confirmer.ConfirmStale(ctx, cutoff, sweepLimit)
	s.record("transaction", confirmed, err)

	settled, err := s.settler.SettleStale(ctx, cutoff, sweepLimit)
	s.record("swap_order", settled, err)
}

func (s *Sweeper) record(kind string, n int, err error) {
	if err != nil {
		metrics.SweeperRuns.WithLabelValues(kind, "error").Inc()
		utils.Logger.WithFields(logrus.Fields{
			"kind":  kind,
			"error": err.Error(),
		}).Error("sweep failed")
		return
	}
	if n == 0 {
		return
	}
	metrics.SweeperRuns.WithLabelValues(kind, "ok").Add(float64(n))
	utils.Logger.WithFields(logrus.Fields{
		"kind":  kind,
		"count": n,
	}).Info("sweep recovered stale entities")
}

func StartCronJob(ctx context.Context, s *Sweeper) *cron.Cron {
	c := cron.New()

	// Every minute: recover dropped confirmations and settlements
	_, err := c.AddFunc("* * * * *", func() {
		runCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()
		s.Sweep(runCtx)
	})
	if err != nil {
		utils.Logger.Errorf("Failed to schedule sweeper job: %v", err)
	}

	c.Start()
	utils.Logger.Info("Cron jobs started (stale settlement sweep every minute)")
	return c
}
