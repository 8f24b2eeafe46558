package storage

import (
	"context"

	"khata/internal/core"
)

const dailyBalanceColumns = `date, openingCash, openingBank, closingCash, closingBank, openingManual, note, createdAt`

func scanDailyBalance(row rowScanner) (core.DailyBalance, error) {
	var (
		b       core.DailyBalance
		manual  int64
		created int64
	)
	err := row.Scan(&b.Date,
		&b.Opening.Cash, &b.Opening.Bank,
		&b.Closing.Cash, &b.Closing.Bank,
		&manual, &b.Note, &created)
	if err != nil {
		return core.DailyBalance{}, err
	}
	b.OpeningManual = manual != 0
	b.CreatedAt = fromMillis(created)
	return b, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

const getDailyBalance = `SELECT ` + dailyBalanceColumns + ` FROM daily_balances WHERE date = ?`

func (q *Queries) GetDailyBalance(ctx context.Context, date core.Date) (core.DailyBalance, error) {
	return scanDailyBalance(q.db.QueryRowContext(ctx, getDailyBalance, date))
}

const latestDailyBalanceBefore = `SELECT ` + dailyBalanceColumns + ` FROM daily_balances
WHERE date < ?
ORDER BY date DESC
LIMIT 1`

func (q *Queries) LatestDailyBalanceBefore(ctx context.Context, date core.Date) (core.DailyBalance, error) {
	return scanDailyBalance(q.db.QueryRowContext(ctx, latestDailyBalanceBefore, date))
}

const listDailyBalancesFrom = `SELECT ` + dailyBalanceColumns + ` FROM daily_balances
WHERE date >= ?
ORDER BY date`

func (q *Queries) ListDailyBalancesFrom(ctx context.Context, from core.Date) ([]core.DailyBalance, error) {
	rows, err := q.db.QueryContext(ctx, listDailyBalancesFrom, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.DailyBalance
	for rows.Next() {
		b, err := scanDailyBalance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// createdAt is only written on insert.
const upsertDailyBalance = `INSERT INTO daily_balances
(date, openingCash, openingBank, closingCash, closingBank, openingManual, note, createdAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (date) DO UPDATE SET
    openingCash   = excluded.openingCash,
    openingBank   = excluded.openingBank,
    closingCash   = excluded.closingCash,
    closingBank   = excluded.closingBank,
    openingManual = excluded.openingManual,
    note          = excluded.note`

func (q *Queries) UpsertDailyBalance(ctx context.Context, b core.DailyBalance) error {
	_, err := q.db.ExecContext(ctx, upsertDailyBalance,
		b.Date,
		b.Opening.Cash, b.Opening.Bank,
		b.Closing.Cash, b.Closing.Bank,
		boolInt(b.OpeningManual), b.Note, toMillis(b.CreatedAt))
	return err
}

const deleteDailyBalance = `DELETE FROM daily_balances WHERE date = ?`

func (q *Queries) DeleteDailyBalance(ctx context.Context, date core.Date) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDailyBalance, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const earliestDailyBalanceDate = `SELECT MIN(date) FROM daily_balances`

func (q *Queries) EarliestDailyBalanceDate(ctx context.Context) (core.Date, error) {
	var d core.Date
	err := q.db.QueryRowContext(ctx, earliestDailyBalanceDate).Scan(&d)
	return d, err
}
