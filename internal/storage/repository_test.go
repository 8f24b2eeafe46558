package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"khata/internal/core"
)

var d0 = core.NewDate(2025, 3, 1)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustParty(t *testing.T, repo *SQLiteRepository, name string) core.Party {
	t.Helper()
	var p core.Party
	err := repo.InTx(context.Background(), func(tx *Tx) error {
		var err error
		p, err = tx.CreateParty(context.Background(), core.Party{
			Name:           name,
			Role:           core.RoleBoth,
			OpeningBalance: core.Zero,
			CreatedAt:      time.Now(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("CreateParty: %v", err)
	}
	return p
}

func TestInTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")
	hookRan := false

	err := repo.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.CreateParty(ctx, core.Party{Name: "Aijaz", Role: core.RoleCustomer, OpeningBalance: core.Zero, CreatedAt: time.Now()}); err != nil {
			return err
		}
		tx.AfterCommit(func() { hookRan = true })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if hookRan {
		t.Fatal("after-commit hook ran on rollback")
	}
	parties, err := repo.ListParties(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(parties) != 0 {
		t.Fatalf("rolled back party is visible: %+v", parties)
	}
}

func TestAfterCommitRunsAfterCommit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	var seen int

	err := repo.InTx(ctx, func(tx *Tx) error {
		_, err := tx.CreateParty(ctx, core.Party{Name: "Aijaz", Role: core.RoleCustomer, OpeningBalance: core.Zero, CreatedAt: time.Now()})
		tx.AfterCommit(func() {
			parties, _ := repo.ListParties(ctx)
			seen = len(parties)
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Fatalf("hook saw %d parties, want the committed one", seen)
	}
}

func TestPartyNameIsUniqueIgnoringCase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustParty(t, repo, "Aijaz")

	err := repo.InTx(ctx, func(tx *Tx) error {
		_, err := tx.CreateParty(ctx, core.Party{Name: "AIJAZ", Role: core.RoleSeller, OpeningBalance: core.Zero, CreatedAt: time.Now()})
		return err
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	err = repo.InTx(ctx, func(tx *Tx) error {
		p, found, err := tx.FindPartyByName(ctx, "  aijaz ")
		if err != nil {
			return err
		}
		if !found || p.Name != "Aijaz" {
			t.Errorf("FindPartyByName = %+v, %v", p, found)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLedgerAndMirrorRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := mustParty(t, repo, "Bashir")

	var entryID, mirrorID int64
	err := repo.InTx(ctx, func(tx *Tx) error {
		var err error
		entryID, err = tx.InsertLedgerEntry(ctx, core.PartyLedgerEntry{
			PartyID: p.ID, Kind: core.KindCredit, Amount: core.MustParseMoney("125.50"),
			Date: d0, Channel: core.ChannelBank, CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		mirrorID, err = tx.InsertCashBookEntry(ctx, core.CashBookEntry{
			Date: d0, Mode: core.ModeBankOut, Amount: core.MustParseMoney("125.50"),
			PartyLabel: p.Name, Note: "Paid to Bashir", SourceType: core.SourceSupplier,
			SourceID: p.ID, LinkedLedgerEntryID: entryID, CreatedAt: time.Now(),
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	m, ok, err := repo.MirrorOf(ctx, entryID)
	if err != nil || !ok {
		t.Fatalf("MirrorOf = %v, %v", ok, err)
	}
	if m.ID != mirrorID || m.Date != d0 || !m.Amount.Equal(core.MustParseMoney("125.50")) {
		t.Fatalf("mirror = %+v", m)
	}

	err = repo.InTx(ctx, func(tx *Tx) error {
		n, err := tx.UnlinkPartyMirrors(ctx, p.ID)
		if n != 1 {
			t.Errorf("unlinked %d rows", n)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := repo.MirrorOf(ctx, entryID); ok {
		t.Fatal("mirror still linked")
	}
	line, err := repo.GetCashBookEntry(ctx, mirrorID)
	if err != nil || line.LinkedLedgerEntryID != 0 {
		t.Fatalf("line after unlink: %+v %v", line, err)
	}
}

func TestDeletePartyCascadesLedgerEntries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := mustParty(t, repo, "Aijaz")

	err := repo.InTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertLedgerEntry(ctx, core.PartyLedgerEntry{
			PartyID: p.ID, Kind: core.KindDebit, Amount: core.MoneyFromInt(10),
			Date: d0, Channel: core.ChannelCash, CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		return tx.DeleteParty(ctx, p.ID)
	})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := repo.LedgerEntriesForParty(ctx, p.ID)
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries = %v, %v", entries, err)
	}
}

func TestMissingRowsAreNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetParty(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetParty: %v", err)
	}
	if _, err := repo.GetLedgerEntry(ctx, 42); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetLedgerEntry: %v", err)
	}
	err := repo.InTx(ctx, func(tx *Tx) error {
		return tx.DeleteCashBookEntry(ctx, 42)
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteCashBookEntry: %v", err)
	}
	if _, ok, err := repo.BalanceForDate(ctx, d0); ok || err != nil {
		t.Errorf("BalanceForDate = %v, %v", ok, err)
	}
}

func TestUpsertDailyBalanceKeepsCreatedAt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	first := time.UnixMilli(1_700_000_000_000)

	write := func(b core.DailyBalance) {
		t.Helper()
		if err := repo.InTx(ctx, func(tx *Tx) error { return tx.UpsertDailyBalance(ctx, b) }); err != nil {
			t.Fatal(err)
		}
	}
	zero := core.CashBank{Cash: core.Zero, Bank: core.Zero}
	write(core.DailyBalance{Date: d0, Opening: zero, Closing: zero, CreatedAt: first})
	write(core.DailyBalance{
		Date:          d0,
		Opening:       core.CashBank{Cash: core.MoneyFromInt(5), Bank: core.Zero},
		Closing:       core.CashBank{Cash: core.MoneyFromInt(7), Bank: core.MoneyFromInt(1)},
		OpeningManual: true,
		CreatedAt:     first.Add(time.Hour),
	})

	b, ok, err := repo.BalanceForDate(ctx, d0)
	if err != nil || !ok {
		t.Fatalf("BalanceForDate = %v, %v", ok, err)
	}
	if !b.CreatedAt.Equal(first) {
		t.Errorf("createdAt = %v, want %v", b.CreatedAt, first)
	}
	if !b.OpeningManual || !b.Closing.Equal(core.CashBank{Cash: core.MoneyFromInt(7), Bank: core.MoneyFromInt(1)}) {
		t.Errorf("balance = %+v", b)
	}
}

func TestEarliestDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	earliest := func() core.Date {
		t.Helper()
		var d core.Date
		if err := repo.InTx(ctx, func(tx *Tx) error {
			var err error
			d, err = tx.EarliestDate(ctx)
			return err
		}); err != nil {
			t.Fatal(err)
		}
		return d
	}

	if d := earliest(); !d.IsZero() {
		t.Fatalf("empty store: %s", d)
	}

	zero := core.CashBank{Cash: core.Zero, Bank: core.Zero}
	err := repo.InTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertDailyBalance(ctx, core.DailyBalance{Date: d0.AddDays(5), Opening: zero, Closing: zero, CreatedAt: time.Now()}); err != nil {
			return err
		}
		_, err := tx.InsertCashBookEntry(ctx, core.CashBookEntry{
			Date: d0.AddDays(2), Mode: core.ModeCashOut, Amount: core.MoneyFromInt(1),
			SourceType: core.SourceManual, CreatedAt: time.Now(),
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if d := earliest(); d != d0.AddDays(2) {
		t.Fatalf("earliest = %s, want %s", d, d0.AddDays(2))
	}
}

func TestCashBookEntriesBetween(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx *Tx) error {
		for i := 0; i < 4; i++ {
			if _, err := tx.InsertCashBookEntry(ctx, core.CashBookEntry{
				Date: d0.AddDays(i), Mode: core.ModeCashIn, Amount: core.MoneyFromInt(int64(i + 1)),
				SourceType: core.SourceManual, CreatedAt: time.Now(),
			}); err != nil {
				return err
			}
		}
		between, err := tx.CashBookEntriesBetween(ctx, d0, d0.AddDays(3))
		if err != nil {
			return err
		}
		if len(between) != 2 || between[0].Date != d0.AddDays(1) || between[1].Date != d0.AddDays(2) {
			t.Errorf("between = %+v", between)
		}
		unbounded, err := tx.CashBookEntriesBetween(ctx, core.Date{}, d0.AddDays(2))
		if err != nil {
			return err
		}
		if len(unbounded) != 2 || unbounded[0].Date != d0 {
			t.Errorf("unbounded = %+v", unbounded)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
