package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AutoCloseSweeper periodically closes tickets that have sat in RESOLVED
// past the dwell window without requester action.
type AutoCloseSweeper struct {
	tickets   repository.TicketRepository
	lifecycle *service.LifecycleService
	interval  time.Duration
	logger    *zap.Logger
	nowFn     func() time.Time
}

// NewAutoCloseSweeper builds the sweeper.
func NewAutoCloseSweeper(tickets repository.TicketRepository, lifecycle *service.LifecycleService, interval time.Duration, logger *zap.Logger) *AutoCloseSweeper {
	return &AutoCloseSweeper{
		tickets:   tickets,
		lifecycle: lifecycle,
		interval:  interval,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// Run sweeps on a fixed cadence until the context is canceled.
func (w *AutoCloseSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("auto-close sweeper started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("auto-close sweeper stopped")
			return
		case <-ticker.C:
			closed, err := w.SweepOnce(ctx)
			if err != nil {
				w.logger.Error("auto-close sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				w.logger.Info("auto-close sweep completed", zap.Int("closed", closed))
			}
		}
	}
}

// SweepOnce closes every overdue resolved ticket. A failure on one ticket
// does not stop the sweep; remaining candidates are still processed.
func (w *AutoCloseSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := w.nowFn().Add(-domain.AutoCloseDwell)

	candidates, err := w.tickets.ListResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range candidates {
		ticketNo := candidates[i].TicketNo
		if _, err := w.lifecycle.AutoClose(ctx, ticketNo); err != nil {
			w.logger.Warn("auto-close skipped ticket",
				zap.String("ticket_no", ticketNo),
				zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}
