package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/storage"
)

// CashPatch is the new state of an edited cash book line.
type CashPatch struct {
	Date       core.Date
	Mode       core.CashMode
	Amount     core.Money
	PartyLabel string // ignored for lines mirrored from a ledger entry
	Note       string
}

// AddCashEntry records a manual or expense line. Party money goes through
// AddReceipt, AddPayment or AddPurchase so that it gets a ledger entry.
func (s *LedgerService) AddCashEntry(ctx context.Context, e core.CashBookEntry) (Outcome, error) {
	if e.SourceType == "" {
		e.SourceType = core.SourceManual
	}
	if e.SourceType != core.SourceManual && e.SourceType != core.SourceExpense {
		return Outcome{}, core.NewValidationError("source type",
			"party entries must be recorded as receipts, payments or purchases")
	}
	e.ID, e.SourceID, e.LinkedLedgerEntryID = 0, 0, 0
	e.PartyLabel = strings.TrimSpace(e.PartyLabel)
	if err := e.Validate(); err != nil {
		return Outcome{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	return s.submit(ctx, "add_cash_entry", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		var out Outcome
		id, err := tx.InsertCashBookEntry(ctx, e)
		if err != nil {
			return out, err
		}
		out.Changes = append(out.Changes, ledger.Change{CashEntryID: id, Dirty: []core.Date{e.Date}})
		return out, s.propagateChanges(ctx, tx, &out)
	})
}

// EditCashEntry edits a cash book line. A line mirrored from a ledger entry
// is edited through that entry so both sides stay in step.
func (s *LedgerService) EditCashEntry(ctx context.Context, id int64, p CashPatch) (Outcome, error) {
	return s.submit(ctx, "edit_cash_entry", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		e, err := tx.GetCashBookEntry(ctx, id)
		if err != nil {
			return Outcome{}, err
		}

		if src, linked, err := linkedEntry(ctx, tx, e); err != nil {
			return Outcome{}, err
		} else if linked {
			kind, channel, err := core.KindFor(p.Mode, src.Channel)
			if err != nil {
				return Outcome{}, err
			}
			return s.editTransaction(ctx, tx, src.ID, ledger.Patch{
				Amount:  p.Amount,
				Kind:    kind,
				Channel: channel,
				Note:    p.Note,
				Date:    p.Date,
			})
		}

		var out Outcome
		oldDate := e.Date
		e.Date = p.Date
		e.Mode = p.Mode
		e.Amount = p.Amount
		e.PartyLabel = strings.TrimSpace(p.PartyLabel)
		e.Note = p.Note
		if err := e.Validate(); err != nil {
			return out, err
		}
		if err := tx.UpdateCashBookEntry(ctx, e); err != nil {
			return out, err
		}
		out.Changes = append(out.Changes, ledger.Change{
			CashEntryID: id,
			Moved:       oldDate != e.Date,
			Dirty:       []core.Date{oldDate, e.Date},
		})
		return out, s.propagateChanges(ctx, tx, &out)
	})
}

// DeleteCashEntry removes a cash book line. Deleting a mirror deletes its
// ledger entry too.
func (s *LedgerService) DeleteCashEntry(ctx context.Context, id int64) (Outcome, error) {
	return s.submit(ctx, "delete_cash_entry", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		e, err := tx.GetCashBookEntry(ctx, id)
		if err != nil {
			return Outcome{}, err
		}

		if src, linked, err := linkedEntry(ctx, tx, e); err != nil {
			return Outcome{}, err
		} else if linked {
			return s.deleteTransaction(ctx, tx, src.ID)
		}

		var out Outcome
		if err := tx.DeleteCashBookEntry(ctx, id); err != nil {
			return out, err
		}
		out.Changes = append(out.Changes, ledger.Change{CashEntryID: id, Dirty: []core.Date{e.Date}})
		return out, s.propagateChanges(ctx, tx, &out)
	})
}

// linkedEntry resolves the weak back-reference of a cash book line. A
// reference to a ledger entry that no longer exists counts as unlinked.
func linkedEntry(ctx context.Context, tx *storage.Tx, e core.CashBookEntry) (core.PartyLedgerEntry, bool, error) {
	if e.LinkedLedgerEntryID == 0 {
		return core.PartyLedgerEntry{}, false, nil
	}
	src, err := tx.GetLedgerEntry(ctx, e.LinkedLedgerEntryID)
	if errors.Is(err, core.ErrNotFound) {
		return core.PartyLedgerEntry{}, false, nil
	}
	if err != nil {
		return core.PartyLedgerEntry{}, false, err
	}
	return src, true, nil
}
