package core

import "testing"

func TestCategorize(t *testing.T) {
	c := DefaultCategorizer()
	cases := []struct {
		name   string
		mode   CashMode
		amount int64
		label  string
		note   string
		source SourceKind
		want   Bucket
	}{
		{"expense source wins over inflow", ModeCashIn, 10, "", "", SourceExpense, BucketDailyExpense},
		{"supplier purchase", ModePurchase, 900, "Rafiq", "", SourceSupplier, BucketPurchase},
		{"supplier payment", ModeCashOut, 900, "Rafiq", "", SourceSupplier, BucketPaymentGiven},
		{"purchase mode", ModePurchase, 10, "", "", SourceManual, BucketPurchase},
		{"cash in", ModeCashIn, 10, "", "", SourceCustomer, BucketMoneyReceived},
		{"bank in", ModeBankIn, 100000, "", "", SourceManual, BucketMoneyReceived},
		{"keyword in note", ModeCashOut, 10, "", "Bought STOCK for shop", SourceManual, BucketPurchase},
		{"small outflow", ModeCashOut, 4999, "Aijaz", "", SourceCustomer, BucketDailyExpense},
		{"threshold is exclusive", ModeBankOut, 5000, "Aijaz", "", SourceCustomer, BucketPaymentGiven},
		{"large labelled outflow", ModeCashOut, 8000, "Aijaz", "", SourceManual, BucketPaymentGiven},
		{"large anonymous outflow", ModeCashOut, 8000, "   ", "rent", SourceManual, BucketPurchase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Categorize(tc.mode, MoneyFromInt(tc.amount), tc.label, tc.note, tc.source)
			if got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestNewCategorizerOverrides(t *testing.T) {
	c := NewCategorizer(MoneyFromInt(100), []string{" Cement "})
	if got := c.Categorize(ModeCashOut, MoneyFromInt(150), "", "cement bags", SourceManual); got != BucketPurchase {
		t.Fatalf("custom keyword: got %s", got)
	}
	if got := c.Categorize(ModeCashOut, MoneyFromInt(150), "", "stock", SourceManual); got != BucketPurchase {
		// 150 is above the custom threshold and no label: falls through to PURCHASE
		t.Fatalf("fallthrough: got %s", got)
	}
	if got := c.Categorize(ModeCashOut, MoneyFromInt(150), "Aijaz", "stock", SourceManual); got != BucketPaymentGiven {
		t.Fatalf("default keywords should be replaced, got %s", got)
	}
	if got := c.Categorize(ModeCashOut, MoneyFromInt(99), "Aijaz", "", SourceManual); got != BucketDailyExpense {
		t.Fatalf("custom threshold: got %s", got)
	}

	d := NewCategorizer(Zero, nil)
	if got := d.Categorize(ModeCashOut, MoneyFromInt(4000), "x", "", SourceManual); got != BucketDailyExpense {
		t.Fatalf("zero threshold should fall back to default, got %s", got)
	}
}

func TestNewCashBookDay(t *testing.T) {
	day := NewDate(2025, 5, 5)
	entries := []CashBookEntry{
		{Mode: ModeCashIn, Amount: MoneyFromInt(200), SourceType: SourceCustomer},
		{Mode: ModeCashIn, Amount: MoneyFromInt(300), SourceType: SourceCustomer},
		{Mode: ModeCashOut, Amount: MoneyFromInt(40), SourceType: SourceExpense},
	}
	got := NewCashBookDay(day, nil, entries, DefaultCategorizer())
	if len(got.Entries) != 3 {
		t.Fatalf("entries = %d", len(got.Entries))
	}
	if !got.ByBucket[BucketMoneyReceived].Equal(MoneyFromInt(500)) {
		t.Fatalf("received = %s", got.ByBucket[BucketMoneyReceived])
	}
	if !got.ByBucket[BucketDailyExpense].Equal(MoneyFromInt(40)) {
		t.Fatalf("expense = %s", got.ByBucket[BucketDailyExpense])
	}
}
