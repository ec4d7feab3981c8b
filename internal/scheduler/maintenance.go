package scheduler

import (
	"context"
	"time"

	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
)

const defaultMaintenanceInterval = 5 * time.Minute

// PaymentLinkExpirer marks approved applications whose payment link lapsed.
type PaymentLinkExpirer interface {
	ExpirePaymentLinks(ctx context.Context, now time.Time) (int64, error)
}

// OutboxPruner removes delivered outbox records.
type OutboxPruner interface {
	DeleteSucceededBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Maintenance runs the periodic housekeeping sweeps.
type Maintenance struct {
	payments  PaymentLinkExpirer
	outbox    OutboxPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewMaintenance(cfg config.SchedulerConfig, payments PaymentLinkExpirer, pruner OutboxPruner, log *logger.Logger) *Maintenance {
	interval := cfg.GetMaintenanceInterval()
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &Maintenance{
		payments:  payments,
		outbox:    pruner,
		log:       log,
		interval:  interval,
		retention: cfg.GetOutboxRetention(),
		now:       time.Now,
	}
}

func (m *Maintenance) Run(ctx context.Context) {
	if m == nil {
		return
	}

	m.sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Maintenance) sweep(ctx context.Context) {
	now := m.now().UTC()

	if m.payments != nil {
		expired, err := m.payments.ExpirePaymentLinks(ctx, now)
		if err != nil {
			m.log.Warn("payment link expiry failed", "error", err)
		} else if expired > 0 {
			m.log.Info("expired payment links", "count", expired)
		}
	}

	if m.outbox != nil && m.retention > 0 {
		deleted, err := m.outbox.DeleteSucceededBefore(ctx, now.Add(-m.retention))
		if err != nil {
			m.log.Warn("outbox cleanup failed", "error", err)
		} else if deleted > 0 {
			m.log.Info("outbox cleanup deleted delivered records", "deleted", deleted)
		}
	}
}
