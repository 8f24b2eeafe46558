package services

import (
	"context"

	"khata/internal/amqp"
	"khata/internal/balance"
	"khata/internal/core"
	"khata/internal/storage"
)

// EnsureToday creates today's snapshot when it is missing. It reports
// whether a row was created.
func (s *LedgerService) EnsureToday(ctx context.Context) (bool, error) {
	today := s.today()
	var created bool
	_, err := s.submit(ctx, "ensure_today", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		var err error
		created, err = s.propagator.EnsureDay(ctx, tx, today)
		if err != nil || !created {
			return Outcome{}, err
		}
		return Outcome{Propagations: []balance.Result{{Anchor: today}}}, nil
	})
	return created, err
}

// SetOpeningBalance overrides the opening of date and propagates from it.
func (s *LedgerService) SetOpeningBalance(ctx context.Context, date core.Date, opening core.CashBank) (Outcome, error) {
	if err := date.Validate(); err != nil {
		return Outcome{}, core.NewValidationError("date", err.Error())
	}
	return s.submit(ctx, "set_opening_balance", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		res, err := s.propagator.SetOpening(ctx, tx, date, opening)
		return Outcome{Propagations: []balance.Result{res}}, err
	})
}

// DeleteDailyBalance removes the snapshot of date. It is only created again
// when new activity lands on that date.
func (s *LedgerService) DeleteDailyBalance(ctx context.Context, date core.Date) (Outcome, error) {
	return s.submit(ctx, "delete_daily_balance", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		if err := tx.DeleteDailyBalance(ctx, date); err != nil {
			return Outcome{}, err
		}
		// no cascade ran, the anchor only drives cache invalidation
		return Outcome{Propagations: []balance.Result{{Anchor: date}}}, nil
	})
}

// Repropagate recomputes balances forward from from.
func (s *LedgerService) Repropagate(ctx context.Context, from core.Date) (balance.Result, error) {
	out, err := s.submit(ctx, "repropagate", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		res, err := s.propagator.PropagateForward(ctx, tx, from)
		return Outcome{Propagations: []balance.Result{res}}, err
	})
	if len(out.Propagations) == 0 {
		return balance.Result{Anchor: from}, err
	}
	return out.Propagations[0], err
}

// RepairAll recomputes every snapshot from the earliest date the store
// knows. It is what restore runs afterwards.
func (s *LedgerService) RepairAll(ctx context.Context) (balance.Result, error) {
	out, err := s.submit(ctx, "repair_all", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		earliest, err := tx.EarliestDate(ctx)
		if err != nil || earliest.IsZero() {
			return Outcome{}, err
		}
		res, err := s.propagator.PropagateForward(ctx, tx, earliest)
		return Outcome{Propagations: []balance.Result{res}}, err
	})
	if len(out.Propagations) == 0 {
		return balance.Result{}, err
	}
	return out.Propagations[0], err
}

// RepropagateAsync runs Repropagate on the writer and delivers the result
// once the cascade has committed or failed.
func (s *LedgerService) RepropagateAsync(ctx context.Context, from core.Date) <-chan PropagationOutcome {
	ch := make(chan PropagationOutcome, 1)
	go func() {
		defer close(ch)
		var (
			res balance.Result
			err error
		)
		if from.IsZero() {
			res, err = s.RepairAll(ctx)
		} else {
			res, err = s.Repropagate(ctx, from)
		}
		ch <- PropagationOutcome{Result: res, Err: err}
	}()
	return ch
}

// RequestRepropagation hands a cascade to the worker through the queue.
// Without a publisher it runs in place. A zero from asks for a full repair.
func (s *LedgerService) RequestRepropagation(ctx context.Context, from core.Date, reason string) error {
	if s.publisher == nil {
		r := <-s.RepropagateAsync(ctx, from)
		return r.Err
	}
	return s.publisher.PublishPropagation(ctx, amqp.NewPropagationRequest(from, reason))
}
