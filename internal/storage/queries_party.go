package storage

import (
	"context"
	"fmt"

	"khata/internal/core"
)

const partyColumns = `id, name, role, openingBalance, createdAt`

func scanParty(row rowScanner) (core.Party, error) {
	var (
		p       core.Party
		role    string
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &role, &p.OpeningBalance, &created); err != nil {
		return core.Party{}, err
	}
	r, err := core.ParsePartyRole(role)
	if err != nil {
		return core.Party{}, fmt.Errorf("party %d: %w", p.ID, err)
	}
	p.Role = r
	p.CreatedAt = fromMillis(created)
	return p, nil
}

const createParty = `INSERT INTO parties (name, nameKey, role, openingBalance, createdAt)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + partyColumns

func (q *Queries) CreateParty(ctx context.Context, p core.Party) (core.Party, error) {
	row := q.db.QueryRowContext(ctx, createParty,
		p.Name, core.NormalizedName(p.Name), string(p.Role), p.OpeningBalance, toMillis(p.CreatedAt))
	return scanParty(row)
}

const getParty = `SELECT ` + partyColumns + ` FROM parties WHERE id = ?`

func (q *Queries) GetParty(ctx context.Context, id int64) (core.Party, error) {
	return scanParty(q.db.QueryRowContext(ctx, getParty, id))
}

const getPartyByNameKey = `SELECT ` + partyColumns + ` FROM parties WHERE nameKey = ?`

func (q *Queries) GetPartyByNameKey(ctx context.Context, key string) (core.Party, error) {
	return scanParty(q.db.QueryRowContext(ctx, getPartyByNameKey, key))
}

const listParties = `SELECT ` + partyColumns + ` FROM parties ORDER BY nameKey`

func (q *Queries) ListParties(ctx context.Context) ([]core.Party, error) {
	rows, err := q.db.QueryContext(ctx, listParties)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateParty = `UPDATE parties SET name = ?, nameKey = ?, role = ?, openingBalance = ? WHERE id = ?`

func (q *Queries) UpdateParty(ctx context.Context, p core.Party) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateParty,
		p.Name, core.NormalizedName(p.Name), string(p.Role), p.OpeningBalance, p.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteParty = `DELETE FROM parties WHERE id = ?`

func (q *Queries) DeleteParty(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteParty, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
