package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"khata/internal/amqp"
	"khata/internal/balance"
	"khata/internal/core"
	klog "khata/internal/log"
)

// Ledger is the part of the ledger service the worker drives.
type Ledger interface {
	Repropagate(ctx context.Context, from core.Date) (balance.Result, error)
	RepairAll(ctx context.Context) (balance.Result, error)
	EnsureToday(ctx context.Context) (bool, error)
}

// PropagationWorker runs balance cascades requested through the queue and
// keeps today's snapshot in place.
type PropagationWorker struct {
	ledger Ledger
	group  singleflight.Group
}

func NewPropagationWorker(ledger Ledger) *PropagationWorker {
	return &PropagationWorker{ledger: ledger}
}

// HandlePropagation processes one request from AMQP. Concurrent requests
// for the same start date share a single cascade.
func (w *PropagationWorker) HandlePropagation(ctx context.Context, req *amqp.PropagationRequest) error {
	from, err := req.FromDate()
	if err != nil {
		return err
	}

	logger := klog.FromContext(ctx).With(klog.FieldMessageID, req.ID)
	logger.InfoContext(ctx, "Processing propagation request",
		"from", req.Key(),
		"reason", req.Reason)

	// the cascade is shared with later callers, so the first caller's
	// cancellation must not fail theirs
	sctx := context.WithoutCancel(ctx)
	v, err, shared := w.group.Do(req.Key(), func() (any, error) {
		if from.IsZero() {
			return w.ledger.RepairAll(sctx)
		}
		return w.ledger.Repropagate(sctx, from)
	})
	if err != nil {
		return fmt.Errorf("propagate from %s: %w", req.Key(), err)
	}

	res := v.(balance.Result)
	logger.InfoContext(ctx, "Balances repropagated",
		klog.FieldAnchor, res.Anchor.String(),
		klog.FieldDays, res.Visited,
		"written", res.Written,
		"shared", shared,
		"latency_ms", time.Since(req.RequestedAt).Milliseconds())
	return nil
}

// StartupCheck makes sure today has a snapshot. It runs once before the
// worker starts consuming.
func (w *PropagationWorker) StartupCheck(ctx context.Context) error {
	logger := klog.FromContext(ctx)
	created, err := w.ledger.EnsureToday(ctx)
	if err != nil {
		return fmt.Errorf("ensure today: %w", err)
	}
	logger.InfoContext(ctx, "Startup check completed",
		klog.FieldOperation, klog.OpStartup,
		"created", created)
	return nil
}

// RunEnsureToday calls EnsureToday every interval until ctx is done, so the
// day rolls over without user activity. Failures are logged and retried on
// the next tick.
func (w *PropagationWorker) RunEnsureToday(ctx context.Context, interval time.Duration) error {
	logger := klog.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			created, err := w.ledger.EnsureToday(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Periodic ensure today failed",
					klog.FieldError, err,
					klog.FieldErrorType, klog.ErrorType(err))
				continue
			}
			if created {
				logger.InfoContext(ctx, "Created balance snapshot for new day")
			}
		}
	}
}
