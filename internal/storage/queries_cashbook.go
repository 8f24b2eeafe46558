package storage

import (
	"context"
	"database/sql"
	"fmt"

	"khata/internal/core"
)

const cashBookColumns = `id, date, mode, amount, partyLabel, note, sourceType, sourceId, linkedLedgerEntryId, createdAt`

func scanCashBookEntry(row rowScanner) (core.CashBookEntry, error) {
	var (
		e            core.CashBookEntry
		mode, source string
		linked       sql.NullInt64
		created      int64
	)
	if err := row.Scan(&e.ID, &e.Date, &mode, &e.Amount, &e.PartyLabel, &e.Note, &source, &e.SourceID, &linked, &created); err != nil {
		return core.CashBookEntry{}, err
	}
	m, err := core.ParseCashMode(mode)
	if err != nil {
		return core.CashBookEntry{}, fmt.Errorf("cash book entry %d: %w", e.ID, err)
	}
	s, err := core.ParseSourceKind(source)
	if err != nil {
		return core.CashBookEntry{}, fmt.Errorf("cash book entry %d: %w", e.ID, err)
	}
	e.Mode, e.SourceType = m, s
	if linked.Valid {
		e.LinkedLedgerEntryID = linked.Int64
	}
	e.CreatedAt = fromMillis(created)
	return e, nil
}

func collectCashBookEntries(ctx context.Context, db DBTX, query string, args ...any) ([]core.CashBookEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.CashBookEntry
	for rows.Next() {
		e, err := scanCashBookEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const createCashBookEntry = `INSERT INTO cash_book_entries
(date, mode, amount, partyLabel, note, sourceType, sourceId, linkedLedgerEntryId, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateCashBookEntry(ctx context.Context, e core.CashBookEntry) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCashBookEntry,
		e.Date, string(e.Mode), e.Amount, e.PartyLabel, e.Note, string(e.SourceType), e.SourceID,
		nullID(e.LinkedLedgerEntryID), toMillis(e.CreatedAt),
	).Scan(&id)
	return id, err
}

const getCashBookEntry = `SELECT ` + cashBookColumns + ` FROM cash_book_entries WHERE id = ?`

func (q *Queries) GetCashBookEntry(ctx context.Context, id int64) (core.CashBookEntry, error) {
	return scanCashBookEntry(q.db.QueryRowContext(ctx, getCashBookEntry, id))
}

const getMirrorOf = `SELECT ` + cashBookColumns + ` FROM cash_book_entries
WHERE linkedLedgerEntryId = ?
ORDER BY id
LIMIT 1`

func (q *Queries) GetMirrorOf(ctx context.Context, ledgerEntryID int64) (core.CashBookEntry, error) {
	return scanCashBookEntry(q.db.QueryRowContext(ctx, getMirrorOf, ledgerEntryID))
}

const listCashBookEntriesByDate = `SELECT ` + cashBookColumns + ` FROM cash_book_entries
WHERE date = ?
ORDER BY id`

func (q *Queries) ListCashBookEntriesByDate(ctx context.Context, date core.Date) ([]core.CashBookEntry, error) {
	return collectCashBookEntries(ctx, q.db, listCashBookEntriesByDate, date)
}

const listCashBookEntriesFrom = `SELECT ` + cashBookColumns + ` FROM cash_book_entries
WHERE date >= ?
ORDER BY date, id`

func (q *Queries) ListCashBookEntriesFrom(ctx context.Context, from core.Date) ([]core.CashBookEntry, error) {
	return collectCashBookEntries(ctx, q.db, listCashBookEntriesFrom, from)
}

const listCashBookEntriesBetween = `SELECT ` + cashBookColumns + ` FROM cash_book_entries
WHERE (? IS NULL OR date > ?) AND date < ?
ORDER BY date, id`

func (q *Queries) ListCashBookEntriesBetween(ctx context.Context, after, before core.Date) ([]core.CashBookEntry, error) {
	return collectCashBookEntries(ctx, q.db, listCashBookEntriesBetween, after, after, before)
}

const listCashBookEntriesByParty = `SELECT ` + cashBookColumns + ` FROM cash_book_entries
WHERE sourceType IN ('CUSTOMER', 'SUPPLIER') AND sourceId = ?
ORDER BY date, id`

func (q *Queries) ListCashBookEntriesByParty(ctx context.Context, partyID int64) ([]core.CashBookEntry, error) {
	return collectCashBookEntries(ctx, q.db, listCashBookEntriesByParty, partyID)
}

const updateCashBookEntry = `UPDATE cash_book_entries
SET date = ?, mode = ?, amount = ?, partyLabel = ?, note = ?, sourceType = ?, sourceId = ?, linkedLedgerEntryId = ?
WHERE id = ?`

func (q *Queries) UpdateCashBookEntry(ctx context.Context, e core.CashBookEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCashBookEntry,
		e.Date, string(e.Mode), e.Amount, e.PartyLabel, e.Note, string(e.SourceType), e.SourceID,
		nullID(e.LinkedLedgerEntryID), e.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCashBookEntry = `DELETE FROM cash_book_entries WHERE id = ?`

func (q *Queries) DeleteCashBookEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCashBookEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteMirrorsOf = `DELETE FROM cash_book_entries WHERE linkedLedgerEntryId = ?`

func (q *Queries) DeleteMirrorsOf(ctx context.Context, ledgerEntryID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteMirrorsOf, ledgerEntryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const unlinkPartyMirrors = `UPDATE cash_book_entries
SET linkedLedgerEntryId = NULL
WHERE linkedLedgerEntryId IN (SELECT id FROM party_ledger_entries WHERE partyId = ?)`

func (q *Queries) UnlinkPartyMirrors(ctx context.Context, partyID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, unlinkPartyMirrors, partyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const earliestCashBookDate = `SELECT MIN(date) FROM cash_book_entries`

func (q *Queries) EarliestCashBookDate(ctx context.Context) (core.Date, error) {
	var d core.Date
	err := q.db.QueryRowContext(ctx, earliestCashBookDate).Scan(&d)
	return d, err
}
