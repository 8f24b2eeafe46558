package core

import "strings"

// Bucket is the display group of a cash book entry. It is never used when
// computing balances.
type Bucket string

const (
	BucketMoneyReceived Bucket = "MONEY_RECEIVED"
	BucketDailyExpense  Bucket = "DAILY_EXPENSE"
	BucketPurchase      Bucket = "PURCHASE"
	BucketPaymentGiven  Bucket = "PAYMENT_GIVEN"
)

// DefaultExpenseThreshold separates small outflows (daily expenses) from
// larger ones.
var DefaultExpenseThreshold = MoneyFromInt(5000)

// DefaultPurchaseKeywords mark a note as describing a purchase.
var DefaultPurchaseKeywords = []string{
	"purchase", "bought", "buy", "stock", "goods", "inventory", "maal", "kharid",
}

// Categorizer assigns buckets. The zero value is not usable, use
// NewCategorizer.
type Categorizer struct {
	threshold Money
	keywords  []string
}

// NewCategorizer builds a categorizer. A non-positive threshold or an empty
// keyword list falls back to the defaults.
func NewCategorizer(threshold Money, keywords []string) *Categorizer {
	if !threshold.Decimal.IsPositive() {
		threshold = DefaultExpenseThreshold
	}
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		kws = append(kws, DefaultPurchaseKeywords...)
	}
	return &Categorizer{threshold: threshold, keywords: kws}
}

// DefaultCategorizer uses the built-in threshold and keywords.
func DefaultCategorizer() *Categorizer {
	return NewCategorizer(DefaultExpenseThreshold, nil)
}

// Categorize returns the bucket of an entry. The first matching rule wins.
func (c *Categorizer) Categorize(mode CashMode, amount Money, partyLabel, note string, source SourceKind) Bucket {
	switch {
	case source == SourceExpense:
		return BucketDailyExpense
	case source == SourceSupplier:
		if mode == ModePurchase {
			return BucketPurchase
		}
		return BucketPaymentGiven
	case mode == ModePurchase:
		return BucketPurchase
	case mode.Inflow():
		return BucketMoneyReceived
	case c.hasPurchaseKeyword(note):
		return BucketPurchase
	case amount.LessThan(c.threshold):
		return BucketDailyExpense
	case strings.TrimSpace(partyLabel) != "":
		return BucketPaymentGiven
	}
	return BucketPurchase
}

// CategorizeEntry is Categorize applied to a stored entry.
func (c *Categorizer) CategorizeEntry(e CashBookEntry) Bucket {
	return c.Categorize(e.Mode, e.Amount, e.PartyLabel, e.Note, e.SourceType)
}

func (c *Categorizer) hasPurchaseKeyword(note string) bool {
	note = strings.ToLower(note)
	for _, k := range c.keywords {
		if strings.Contains(note, k) {
			return true
		}
	}
	return false
}
