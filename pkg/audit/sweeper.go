package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mindglow/mindglow/pkg/logger"
)

// Purger is the part of Store the sweeper needs.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes audit records older than the retention window on a cron
// schedule.
type Sweeper struct {
	store     Purger
	expr      string
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(store Purger, cronExpr string, retentionDays int) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("audit sweeper: store is required")
	}
	expr := strings.TrimSpace(cronExpr)
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("audit sweeper: invalid cron expression %q", cronExpr)
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("audit sweeper: retention_days must be > 0, got %d", retentionDays)
	}
	return &Sweeper{
		store:     store,
		expr:      expr,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

// Next is the first scheduled sweep strictly after t.
func (s *Sweeper) Next(t time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(s.expr, t, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next sweep for %q: %w", s.expr, err)
	}
	return next, nil
}

// SweepOnce purges everything older than now minus the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logger.InfoCF("audit", "Retention sweep completed",
		map[string]any{
			"deleted": n,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		})
	return n, nil
}

// Run sweeps on schedule until ctx is cancelled. Sweep failures are logged
// and the schedule continues.
func (s *Sweeper) Run(ctx context.Context) error {
	logger.InfoCF("audit", "Retention sweeper started",
		map[string]any{"schedule": s.expr, "retention_hours": s.retention.Hours()})

	for {
		next, err := s.Next(s.now())
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.InfoC("audit", "Retention sweeper stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCF("audit", "Retention sweep failed", map[string]any{"error": err.Error()})
		}
	}
}
