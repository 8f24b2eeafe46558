package storage

import (
	"context"
	"fmt"

	"khata/internal/core"
)

const ledgerColumns = `id, partyId, kind, amount, date, note, channel, attachmentPath, createdAt`

func scanLedgerEntry(row rowScanner) (core.PartyLedgerEntry, error) {
	var (
		e             core.PartyLedgerEntry
		kind, channel string
		created       int64
	)
	if err := row.Scan(&e.ID, &e.PartyID, &kind, &e.Amount, &e.Date, &e.Note, &channel, &e.AttachmentPath, &created); err != nil {
		return core.PartyLedgerEntry{}, err
	}
	k, err := core.ParseLedgerEntryKind(kind)
	if err != nil {
		return core.PartyLedgerEntry{}, fmt.Errorf("ledger entry %d: %w", e.ID, err)
	}
	c, err := core.ParsePaymentChannel(channel)
	if err != nil {
		return core.PartyLedgerEntry{}, fmt.Errorf("ledger entry %d: %w", e.ID, err)
	}
	e.Kind, e.Channel = k, c
	e.CreatedAt = fromMillis(created)
	return e, nil
}

func collectLedgerEntries(ctx context.Context, db DBTX, query string, args ...any) ([]core.PartyLedgerEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.PartyLedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const createLedgerEntry = `INSERT INTO party_ledger_entries (partyId, kind, amount, date, note, channel, attachmentPath, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) CreateLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createLedgerEntry,
		e.PartyID, string(e.Kind), e.Amount, e.Date, e.Note, string(e.Channel), e.AttachmentPath, toMillis(e.CreatedAt),
	).Scan(&id)
	return id, err
}

const getLedgerEntry = `SELECT ` + ledgerColumns + ` FROM party_ledger_entries WHERE id = ?`

func (q *Queries) GetLedgerEntry(ctx context.Context, id int64) (core.PartyLedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRowContext(ctx, getLedgerEntry, id))
}

const listLedgerEntriesByParty = `SELECT ` + ledgerColumns + ` FROM party_ledger_entries
WHERE partyId = ?
ORDER BY date, id`

func (q *Queries) ListLedgerEntriesByParty(ctx context.Context, partyID int64) ([]core.PartyLedgerEntry, error) {
	return collectLedgerEntries(ctx, q.db, listLedgerEntriesByParty, partyID)
}

const updateLedgerEntry = `UPDATE party_ledger_entries
SET kind = ?, amount = ?, date = ?, note = ?, channel = ?, attachmentPath = ?
WHERE id = ?`

func (q *Queries) UpdateLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateLedgerEntry,
		string(e.Kind), e.Amount, e.Date, e.Note, string(e.Channel), e.AttachmentPath, e.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteLedgerEntry = `DELETE FROM party_ledger_entries WHERE id = ?`

func (q *Queries) DeleteLedgerEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLedgerEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteLedgerEntriesByParty = `DELETE FROM party_ledger_entries WHERE partyId = ?`

func (q *Queries) DeleteLedgerEntriesByParty(ctx context.Context, partyID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLedgerEntriesByParty, partyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
