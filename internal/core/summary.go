package core

// CategorizedEntry is a cash book line with its display bucket.
type CategorizedEntry struct {
	Entry  CashBookEntry
	Bucket Bucket
}

// CashBookDay is the read model of one day of the cash book.
type CashBookDay struct {
	Date     Date
	Balance  *DailyBalance // nil when the day has no snapshot
	Entries  []CategorizedEntry
	ByBucket map[Bucket]Money
}

// NewCashBookDay groups entries of a single day by bucket.
func NewCashBookDay(date Date, balance *DailyBalance, entries []CashBookEntry, c *Categorizer) CashBookDay {
	day := CashBookDay{
		Date:     date,
		Balance:  balance,
		Entries:  make([]CategorizedEntry, 0, len(entries)),
		ByBucket: make(map[Bucket]Money),
	}
	for _, e := range entries {
		b := c.CategorizeEntry(e)
		day.Entries = append(day.Entries, CategorizedEntry{Entry: e, Bucket: b})
		day.ByBucket[b] = day.ByBucket[b].Add(e.Amount)
	}
	return day
}

// PartyBalance summarizes a party's ledger.
//
// Net is what is payable to the party: goods received (PURCHASE) and money
// received from them (DEBIT) raise it, money given to them (CREDIT) lowers
// it. A negative Net means the party owes us.
type PartyBalance struct {
	PartyID  int64
	Opening  Money
	Debit    Money
	Credit   Money
	Purchase Money
	Net      Money
}

// SumPartyLedger folds ledger entries into a PartyBalance.
func SumPartyLedger(p Party, entries []PartyLedgerEntry) PartyBalance {
	out := PartyBalance{PartyID: p.ID, Opening: p.OpeningBalance}
	for _, e := range entries {
		switch e.Kind {
		case KindDebit:
			out.Debit = out.Debit.Add(e.Amount)
		case KindCredit:
			out.Credit = out.Credit.Add(e.Amount)
		case KindPurchase:
			out.Purchase = out.Purchase.Add(e.Amount)
		}
	}
	out.Net = out.Opening.Add(out.Debit).Add(out.Purchase).Sub(out.Credit)
	return out
}
