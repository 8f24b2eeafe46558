package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"khata/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the entity store. Writes go through InTx; the read
// methods run on the pool and only ever observe committed state.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx runs fn inside one database transaction. fn's error rolls everything
// back; hooks registered with Tx.AfterCommit run only after a successful
// commit.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStoreError("begin", err)
	}

	tx := &Tx{queries: r.queries.WithTx(sqlTx)}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return core.NewStoreError("commit", err)
	}

	for _, hook := range tx.afterCommit {
		hook()
	}
	return nil
}

func (r *SQLiteRepository) GetParty(ctx context.Context, id int64) (core.Party, error) {
	p, err := r.queries.GetParty(ctx, id)
	if err != nil {
		return core.Party{}, translate("get party", err, "party", id)
	}
	return p, nil
}

func (r *SQLiteRepository) ListParties(ctx context.Context) ([]core.Party, error) {
	items, err := r.queries.ListParties(ctx)
	if err != nil {
		return nil, core.NewStoreError("list parties", err)
	}
	return items, nil
}

func (r *SQLiteRepository) LedgerEntriesForParty(ctx context.Context, partyID int64) ([]core.PartyLedgerEntry, error) {
	items, err := r.queries.ListLedgerEntriesByParty(ctx, partyID)
	if err != nil {
		return nil, core.NewStoreError("list ledger entries", err)
	}
	return items, nil
}

func (r *SQLiteRepository) GetLedgerEntry(ctx context.Context, id int64) (core.PartyLedgerEntry, error) {
	e, err := r.queries.GetLedgerEntry(ctx, id)
	if err != nil {
		return core.PartyLedgerEntry{}, translate("get ledger entry", err, "ledger entry", id)
	}
	return e, nil
}

func (r *SQLiteRepository) CashBookEntriesForDate(ctx context.Context, date core.Date) ([]core.CashBookEntry, error) {
	items, err := r.queries.ListCashBookEntriesByDate(ctx, date)
	if err != nil {
		return nil, core.NewStoreError("list cash book entries", err)
	}
	return items, nil
}

func (r *SQLiteRepository) CashBookEntriesForParty(ctx context.Context, partyID int64) ([]core.CashBookEntry, error) {
	items, err := r.queries.ListCashBookEntriesByParty(ctx, partyID)
	if err != nil {
		return nil, core.NewStoreError("list cash book entries by party", err)
	}
	return items, nil
}

func (r *SQLiteRepository) GetCashBookEntry(ctx context.Context, id int64) (core.CashBookEntry, error) {
	e, err := r.queries.GetCashBookEntry(ctx, id)
	if err != nil {
		return core.CashBookEntry{}, translate("get cash book entry", err, "cash book entry", id)
	}
	return e, nil
}

func (r *SQLiteRepository) MirrorOf(ctx context.Context, ledgerEntryID int64) (core.CashBookEntry, bool, error) {
	e, err := r.queries.GetMirrorOf(ctx, ledgerEntryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashBookEntry{}, false, nil
	}
	if err != nil {
		return core.CashBookEntry{}, false, core.NewStoreError("get mirror", err)
	}
	return e, true, nil
}

// BalanceForDate returns the snapshot of a date; ok is false when the date
// has none.
func (r *SQLiteRepository) BalanceForDate(ctx context.Context, date core.Date) (core.DailyBalance, bool, error) {
	b, err := r.queries.GetDailyBalance(ctx, date)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyBalance{}, false, nil
	}
	if err != nil {
		return core.DailyBalance{}, false, core.NewStoreError("get daily balance", err)
	}
	return b, true, nil
}

func (r *SQLiteRepository) DailyBalancesFrom(ctx context.Context, from core.Date) ([]core.DailyBalance, error) {
	items, err := r.queries.ListDailyBalancesFrom(ctx, from)
	if err != nil {
		return nil, core.NewStoreError("list daily balances", err)
	}
	return items, nil
}

// translate maps driver errors to the domain taxonomy.
func translate(op string, err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.NewNotFoundError(entity, id)
	case errors.Is(err, core.ErrValidation):
		// invalid enum value read back from disk
		return core.NewStoreError(op, err)
	case isUniqueViolation(err):
		return core.NewValidationError("name", "already in use")
	default:
		return core.NewStoreError(op, err)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
