package storage

import (
	"context"
	"database/sql"
	"errors"

	"khata/internal/core"
)

// Tx is the entity store scoped to one unit of work. It satisfies the
// store interfaces of the ledger and balance packages.
type Tx struct {
	queries     *Queries
	afterCommit []func()
}

// AfterCommit registers fn to run once the transaction has committed. It is
// used for side effects that must not happen on rollback, like removing
// files.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

func (t *Tx) CreateParty(ctx context.Context, p core.Party) (core.Party, error) {
	created, err := t.queries.CreateParty(ctx, p)
	if err != nil {
		return core.Party{}, translate("create party", err, "party", p.Name)
	}
	return created, nil
}

func (t *Tx) GetParty(ctx context.Context, id int64) (core.Party, error) {
	p, err := t.queries.GetParty(ctx, id)
	if err != nil {
		return core.Party{}, translate("get party", err, "party", id)
	}
	return p, nil
}

// FindPartyByName looks a party up case-insensitively.
func (t *Tx) FindPartyByName(ctx context.Context, name string) (core.Party, bool, error) {
	p, err := t.queries.GetPartyByNameKey(ctx, core.NormalizedName(name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Party{}, false, nil
	}
	if err != nil {
		return core.Party{}, false, core.NewStoreError("find party by name", err)
	}
	return p, true, nil
}

func (t *Tx) UpdateParty(ctx context.Context, p core.Party) error {
	n, err := t.queries.UpdateParty(ctx, p)
	if err != nil {
		return translate("update party", err, "party", p.ID)
	}
	if n == 0 {
		return core.NewNotFoundError("party", p.ID)
	}
	return nil
}

func (t *Tx) DeleteParty(ctx context.Context, id int64) error {
	n, err := t.queries.DeleteParty(ctx, id)
	if err != nil {
		return translate("delete party", err, "party", id)
	}
	if n == 0 {
		return core.NewNotFoundError("party", id)
	}
	return nil
}

func (t *Tx) InsertLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) (int64, error) {
	id, err := t.queries.CreateLedgerEntry(ctx, e)
	if err != nil {
		return 0, core.NewStoreError("insert ledger entry", err)
	}
	return id, nil
}

func (t *Tx) GetLedgerEntry(ctx context.Context, id int64) (core.PartyLedgerEntry, error) {
	e, err := t.queries.GetLedgerEntry(ctx, id)
	if err != nil {
		return core.PartyLedgerEntry{}, translate("get ledger entry", err, "ledger entry", id)
	}
	return e, nil
}

func (t *Tx) LedgerEntriesForParty(ctx context.Context, partyID int64) ([]core.PartyLedgerEntry, error) {
	items, err := t.queries.ListLedgerEntriesByParty(ctx, partyID)
	if err != nil {
		return nil, core.NewStoreError("list ledger entries", err)
	}
	return items, nil
}

func (t *Tx) UpdateLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) error {
	n, err := t.queries.UpdateLedgerEntry(ctx, e)
	if err != nil {
		return core.NewStoreError("update ledger entry", err)
	}
	if n == 0 {
		return core.NewNotFoundError("ledger entry", e.ID)
	}
	return nil
}

func (t *Tx) DeleteLedgerEntry(ctx context.Context, id int64) error {
	n, err := t.queries.DeleteLedgerEntry(ctx, id)
	if err != nil {
		return core.NewStoreError("delete ledger entry", err)
	}
	if n == 0 {
		return core.NewNotFoundError("ledger entry", id)
	}
	return nil
}

func (t *Tx) DeleteLedgerEntriesForParty(ctx context.Context, partyID int64) (int64, error) {
	n, err := t.queries.DeleteLedgerEntriesByParty(ctx, partyID)
	if err != nil {
		return 0, core.NewStoreError("delete ledger entries", err)
	}
	return n, nil
}

func (t *Tx) InsertCashBookEntry(ctx context.Context, e core.CashBookEntry) (int64, error) {
	id, err := t.queries.CreateCashBookEntry(ctx, e)
	if err != nil {
		return 0, core.NewStoreError("insert cash book entry", err)
	}
	return id, nil
}

func (t *Tx) GetCashBookEntry(ctx context.Context, id int64) (core.CashBookEntry, error) {
	e, err := t.queries.GetCashBookEntry(ctx, id)
	if err != nil {
		return core.CashBookEntry{}, translate("get cash book entry", err, "cash book entry", id)
	}
	return e, nil
}

// MirrorOf returns the cash book entry linked to a ledger entry, if any.
func (t *Tx) MirrorOf(ctx context.Context, ledgerEntryID int64) (core.CashBookEntry, bool, error) {
	e, err := t.queries.GetMirrorOf(ctx, ledgerEntryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashBookEntry{}, false, nil
	}
	if err != nil {
		return core.CashBookEntry{}, false, core.NewStoreError("get mirror", err)
	}
	return e, true, nil
}

func (t *Tx) UpdateCashBookEntry(ctx context.Context, e core.CashBookEntry) error {
	n, err := t.queries.UpdateCashBookEntry(ctx, e)
	if err != nil {
		return core.NewStoreError("update cash book entry", err)
	}
	if n == 0 {
		return core.NewNotFoundError("cash book entry", e.ID)
	}
	return nil
}

func (t *Tx) DeleteCashBookEntry(ctx context.Context, id int64) error {
	n, err := t.queries.DeleteCashBookEntry(ctx, id)
	if err != nil {
		return core.NewStoreError("delete cash book entry", err)
	}
	if n == 0 {
		return core.NewNotFoundError("cash book entry", id)
	}
	return nil
}

func (t *Tx) DeleteMirrorsOf(ctx context.Context, ledgerEntryID int64) (int64, error) {
	n, err := t.queries.DeleteMirrorsOf(ctx, ledgerEntryID)
	if err != nil {
		return 0, core.NewStoreError("delete mirrors", err)
	}
	return n, nil
}

func (t *Tx) CashBookEntriesForParty(ctx context.Context, partyID int64) ([]core.CashBookEntry, error) {
	items, err := t.queries.ListCashBookEntriesByParty(ctx, partyID)
	if err != nil {
		return nil, core.NewStoreError("list cash book entries by party", err)
	}
	return items, nil
}

func (t *Tx) UnlinkPartyMirrors(ctx context.Context, partyID int64) (int64, error) {
	n, err := t.queries.UnlinkPartyMirrors(ctx, partyID)
	if err != nil {
		return 0, core.NewStoreError("unlink party mirrors", err)
	}
	return n, nil
}

func (t *Tx) CashBookEntriesFrom(ctx context.Context, from core.Date) ([]core.CashBookEntry, error) {
	items, err := t.queries.ListCashBookEntriesFrom(ctx, from)
	if err != nil {
		return nil, core.NewStoreError("list cash book entries", err)
	}
	return items, nil
}

func (t *Tx) CashBookEntriesBetween(ctx context.Context, after, before core.Date) ([]core.CashBookEntry, error) {
	items, err := t.queries.ListCashBookEntriesBetween(ctx, after, before)
	if err != nil {
		return nil, core.NewStoreError("list cash book entries", err)
	}
	return items, nil
}

func (t *Tx) GetDailyBalance(ctx context.Context, date core.Date) (core.DailyBalance, bool, error) {
	b, err := t.queries.GetDailyBalance(ctx, date)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyBalance{}, false, nil
	}
	if err != nil {
		return core.DailyBalance{}, false, core.NewStoreError("get daily balance", err)
	}
	return b, true, nil
}

func (t *Tx) LatestDailyBalanceBefore(ctx context.Context, date core.Date) (core.DailyBalance, bool, error) {
	b, err := t.queries.LatestDailyBalanceBefore(ctx, date)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyBalance{}, false, nil
	}
	if err != nil {
		return core.DailyBalance{}, false, core.NewStoreError("latest daily balance", err)
	}
	return b, true, nil
}

func (t *Tx) DailyBalancesFrom(ctx context.Context, from core.Date) ([]core.DailyBalance, error) {
	items, err := t.queries.ListDailyBalancesFrom(ctx, from)
	if err != nil {
		return nil, core.NewStoreError("list daily balances", err)
	}
	return items, nil
}

func (t *Tx) UpsertDailyBalance(ctx context.Context, b core.DailyBalance) error {
	if err := t.queries.UpsertDailyBalance(ctx, b); err != nil {
		return core.NewStoreError("upsert daily balance", err)
	}
	return nil
}

func (t *Tx) DeleteDailyBalance(ctx context.Context, date core.Date) error {
	n, err := t.queries.DeleteDailyBalance(ctx, date)
	if err != nil {
		return core.NewStoreError("delete daily balance", err)
	}
	if n == 0 {
		return core.NewNotFoundError("daily balance", date)
	}
	return nil
}

// EarliestDate is the first date that has either a snapshot or cash book
// activity. It is zero on an empty store.
func (t *Tx) EarliestDate(ctx context.Context) (core.Date, error) {
	cb, err := t.queries.EarliestCashBookDate(ctx)
	if err != nil {
		return core.Date{}, core.NewStoreError("earliest cash book date", err)
	}
	db, err := t.queries.EarliestDailyBalanceDate(ctx)
	if err != nil {
		return core.Date{}, core.NewStoreError("earliest daily balance date", err)
	}
	return core.MinDate(cb, db), nil
}
