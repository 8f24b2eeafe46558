package services

import (
	"context"
	"log/slog"

	"khata/internal/core"
)

// BalanceForDate returns the committed snapshot of date; ok is false when
// there is none.
func (s *LedgerService) BalanceForDate(ctx context.Context, date core.Date) (core.DailyBalance, bool, error) {
	if s.balances == nil {
		return s.repo.BalanceForDate(ctx, date)
	}
	if c, hit := s.balances.Get(date); hit {
		return c.b, c.ok, nil
	}

	s.cacheMu.Lock()
	gen := s.cacheGen
	s.cacheMu.Unlock()

	b, ok, err := s.repo.BalanceForDate(ctx, date)
	if err != nil {
		return core.DailyBalance{}, false, err
	}

	s.cacheMu.Lock()
	// a commit in between may have made b stale
	if gen == s.cacheGen {
		s.balances.Set(date, cachedBalance{b: b, ok: ok})
	}
	s.cacheMu.Unlock()
	return b, ok, nil
}

func (s *LedgerService) invalidateFrom(from core.Date) {
	if s.balances == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.balances.DeleteFunc(func(d core.Date) bool { return !d.Before(from) })
}

func (s *LedgerService) LedgerEntriesForParty(ctx context.Context, partyID int64) ([]core.PartyLedgerEntry, error) {
	return s.repo.LedgerEntriesForParty(ctx, partyID)
}

func (s *LedgerService) CashBookEntriesForDate(ctx context.Context, date core.Date) ([]core.CashBookEntry, error) {
	return s.repo.CashBookEntriesForDate(ctx, date)
}

// CashBookDay returns a day of the cash book with every line categorized.
func (s *LedgerService) CashBookDay(ctx context.Context, date core.Date) (core.CashBookDay, error) {
	entries, err := s.repo.CashBookEntriesForDate(ctx, date)
	if err != nil {
		return core.CashBookDay{}, err
	}
	b, ok, err := s.BalanceForDate(ctx, date)
	if err != nil {
		return core.CashBookDay{}, err
	}
	var snap *core.DailyBalance
	if ok {
		snap = &b
	}
	return core.NewCashBookDay(date, snap, entries, s.categorizer), nil
}

func (s *LedgerService) ListParties(ctx context.Context) ([]core.Party, error) {
	return s.repo.ListParties(ctx)
}

func (s *LedgerService) GetParty(ctx context.Context, id int64) (core.Party, error) {
	return s.repo.GetParty(ctx, id)
}

// PartyBalance totals a party's ledger.
func (s *LedgerService) PartyBalance(ctx context.Context, partyID int64) (core.PartyBalance, error) {
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return core.PartyBalance{}, err
	}
	entries, err := s.repo.LedgerEntriesForParty(ctx, partyID)
	if err != nil {
		return core.PartyBalance{}, err
	}
	return core.SumPartyLedger(p, entries), nil
}

// Subscribe returns a channel of change events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (s *LedgerService) Subscribe() (<-chan ChangeEvent, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan ChangeEvent, 16)
	if s.subs == nil {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *LedgerService) publish(ev ChangeEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Dropping change event for slow subscriber", "subscriber", id, "op", ev.Op)
		}
	}
}

// Close stops the writer after the current unit of work, ends all
// subscriptions and closes the store.
func (s *LedgerService) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		<-s.done

		s.subsMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subs = nil
		s.subsMu.Unlock()

		if s.cacheMgr != nil {
			s.cacheMgr.Stop()
		}
		err = s.repo.Close()
	})
	return err
}
