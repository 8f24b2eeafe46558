// Package balance keeps daily cash/bank snapshots consistent with the cash
// book.
//
// Each day's opening is the previous day's closing, so any change on a day
// can invalidate every later day. Recomputation therefore always runs
// forward from the earliest affected date, never just on the row that was
// touched. Every day's write is idempotent given a correct opening, so an
// interrupted cascade is repaired by running it again from the same anchor.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"khata/internal/core"
)

// Store is what the propagator needs from the entity store.
type Store interface {
	GetDailyBalance(ctx context.Context, date core.Date) (core.DailyBalance, bool, error)
	LatestDailyBalanceBefore(ctx context.Context, date core.Date) (core.DailyBalance, bool, error)
	DailyBalancesFrom(ctx context.Context, from core.Date) ([]core.DailyBalance, error)
	CashBookEntriesFrom(ctx context.Context, from core.Date) ([]core.CashBookEntry, error)
	// CashBookEntriesBetween lists entries strictly between after and before.
	// A zero after means no lower bound.
	CashBookEntriesBetween(ctx context.Context, after, before core.Date) ([]core.CashBookEntry, error)
	UpsertDailyBalance(ctx context.Context, b core.DailyBalance) error
}

// Result describes one cascade.
type Result struct {
	Anchor      core.Date
	LastWritten core.Date // zero when nothing had to change
	Visited     int       // days recomputed
	Written     int       // rows inserted or changed
}

// PropagationError aborts a cascade. Rows up to LastWritten were written
// with correct values; rerunning from Anchor repairs the rest.
type PropagationError struct {
	Anchor      core.Date
	LastWritten core.Date
	Err         error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagate from %s (last written %q): %v", e.Anchor, e.LastWritten, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Propagator recomputes daily balances.
type Propagator struct {
	now func() time.Time
}

func NewPropagator() *Propagator {
	return &Propagator{now: time.Now}
}

// PropagateForward recomputes the snapshot of from and of every later day
// up to the frontier, the last date that has a snapshot or cash book
// activity.
//
// The opening of from is the closing of the day before. If that day has no
// snapshot, it is the closing of the nearest earlier snapshot (zero if none)
// plus the activity in between, see openingFor. A manual opening on from
// itself wins over the carried value. Later days always take the carried
// value.
//
// The anchor row is always written. Later days are only written when they
// already have a snapshot or have activity; untouched days are skipped,
// never materialized.
func (p *Propagator) PropagateForward(ctx context.Context, store Store, from core.Date) (Result, error) {
	res := Result{Anchor: from}
	if err := from.Validate(); err != nil {
		return res, core.NewValidationError("date", err.Error())
	}

	carry, err := p.openingFor(ctx, store, from)
	if err != nil {
		return res, &PropagationError{Anchor: from, Err: err}
	}

	snapshots, err := store.DailyBalancesFrom(ctx, from)
	if err != nil {
		return res, &PropagationError{Anchor: from, Err: err}
	}
	entries, err := store.CashBookEntriesFrom(ctx, from)
	if err != nil {
		return res, &PropagationError{Anchor: from, Err: err}
	}

	existing := make(map[core.Date]core.DailyBalance, len(snapshots))
	frontier := from
	for _, b := range snapshots {
		existing[b.Date] = b
		if b.Date.After(frontier) {
			frontier = b.Date
		}
	}
	deltas := make(map[core.Date]core.CashBank)
	for _, e := range entries {
		d := deltas[e.Date]
		delta := e.Delta()
		deltas[e.Date] = core.CashBank{Cash: d.Cash.Add(delta.Cash), Bank: d.Bank.Add(delta.Bank)}
		if e.Date.After(frontier) {
			frontier = e.Date
		}
	}

	for day := from; !day.After(frontier); day = day.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return res, &PropagationError{Anchor: from, LastWritten: res.LastWritten, Err: err}
		}

		snap, hasSnap := existing[day]
		delta, active := deltas[day]
		anchor := day == from
		if !anchor && !hasSnap && !active {
			continue
		}

		row := core.DailyBalance{
			Date:      day,
			Opening:   carry,
			Note:      snap.Note,
			CreatedAt: snap.CreatedAt,
		}
		if anchor && hasSnap && snap.OpeningManual {
			row.Opening = snap.Opening
			row.OpeningManual = true
		}
		row.Closing = core.CashBank{
			Cash: row.Opening.Cash.Add(delta.Cash),
			Bank: row.Opening.Bank.Add(delta.Bank),
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = p.now()
		}
		res.Visited++

		if !hasSnap || !sameBalance(snap, row) {
			if err := store.UpsertDailyBalance(ctx, row); err != nil {
				return res, &PropagationError{Anchor: from, LastWritten: res.LastWritten, Err: err}
			}
			res.Written++
			res.LastWritten = day
		}
		carry = row.Closing
	}

	slog.DebugContext(ctx, "Balances propagated",
		"from", from.String(),
		"frontier", frontier.String(),
		"visited", res.Visited,
		"written", res.Written)

	return res, nil
}

// PropagateDates runs PropagateForward once per distinct date, earliest
// first. Zero dates are ignored.
func (p *Propagator) PropagateDates(ctx context.Context, store Store, dates ...core.Date) ([]Result, error) {
	uniq := make(map[core.Date]struct{}, len(dates))
	anchors := make([]core.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := uniq[d]; ok {
			continue
		}
		uniq[d] = struct{}{}
		anchors = append(anchors, d)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Before(anchors[j]) })

	results := make([]Result, 0, len(anchors))
	for _, d := range anchors {
		res, err := p.PropagateForward(ctx, store, d)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// EnsureDay creates the snapshot of date when it does not exist yet. An
// existing snapshot is left alone.
func (p *Propagator) EnsureDay(ctx context.Context, store Store, date core.Date) (bool, error) {
	_, ok, err := store.GetDailyBalance(ctx, date)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if _, err := p.PropagateForward(ctx, store, date); err != nil {
		return false, err
	}
	return true, nil
}

// SetOpening stores a manual opening on date and propagates from it.
func (p *Propagator) SetOpening(ctx context.Context, store Store, date core.Date, opening core.CashBank) (Result, error) {
	snap, ok, err := store.GetDailyBalance(ctx, date)
	if err != nil {
		return Result{Anchor: date}, err
	}
	if !ok {
		snap = core.DailyBalance{Date: date, CreatedAt: p.now()}
	}
	snap.Opening = opening
	snap.OpeningManual = true
	if err := store.UpsertDailyBalance(ctx, snap); err != nil {
		return Result{Anchor: date}, err
	}
	return p.PropagateForward(ctx, store, date)
}

// openingFor is the balance carried into from: the closing of the nearest
// earlier snapshot plus the activity of any days after it that have no
// snapshot of their own (a user may have deleted one).
func (p *Propagator) openingFor(ctx context.Context, store Store, from core.Date) (core.CashBank, error) {
	prev, ok, err := store.GetDailyBalance(ctx, from.AddDays(-1))
	if err != nil {
		return core.CashBank{}, err
	}
	if ok {
		return prev.Closing, nil
	}

	carry := core.CashBank{Cash: core.Zero, Bank: core.Zero}
	var after core.Date
	prev, ok, err = store.LatestDailyBalanceBefore(ctx, from)
	if err != nil {
		return core.CashBank{}, err
	}
	if ok {
		carry, after = prev.Closing, prev.Date
	}

	gap, err := store.CashBookEntriesBetween(ctx, after, from)
	if err != nil {
		return core.CashBank{}, err
	}
	for _, e := range gap {
		delta := e.Delta()
		carry = core.CashBank{Cash: carry.Cash.Add(delta.Cash), Bank: carry.Bank.Add(delta.Bank)}
	}
	return carry, nil
}

func sameBalance(a, b core.DailyBalance) bool {
	return a.Opening.Equal(b.Opening) &&
		a.Closing.Equal(b.Closing) &&
		a.OpeningManual == b.OpeningManual
}
