package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	PartyRole       string
	LedgerEntryKind string
	PaymentChannel  string
	CashMode        string
	SourceKind      string
)

const (
	RoleCustomer PartyRole = "CUSTOMER"
	RoleSeller   PartyRole = "SELLER"
	RoleBoth     PartyRole = "BOTH"
)

const (
	KindDebit    LedgerEntryKind = "DEBIT"
	KindCredit   LedgerEntryKind = "CREDIT"
	KindPurchase LedgerEntryKind = "PURCHASE"
)

const (
	ChannelCash   PaymentChannel = "CASH"
	ChannelBank   PaymentChannel = "BANK"
	ChannelCredit PaymentChannel = "CREDIT"
)

const (
	ModeCashIn   CashMode = "CASH_IN"
	ModeCashOut  CashMode = "CASH_OUT"
	ModeBankIn   CashMode = "BANK_IN"
	ModeBankOut  CashMode = "BANK_OUT"
	ModePurchase CashMode = "PURCHASE"
)

const (
	SourceCustomer SourceKind = "CUSTOMER"
	SourceSupplier SourceKind = "SUPPLIER"
	SourceExpense  SourceKind = "EXPENSE"
	SourceManual   SourceKind = "MANUAL"
)

// MaxNoteLength bounds free-text notes on every entity.
const MaxNoteLength = 500

type (
	Party struct {
		ID             int64
		Name           string
		Role           PartyRole
		OpeningBalance Money
		CreatedAt      time.Time
	}

	PartyLedgerEntry struct {
		ID             int64
		PartyID        int64
		Kind           LedgerEntryKind
		Amount         Money
		Date           Date
		Note           string
		Channel        PaymentChannel
		AttachmentPath string // optional voice note, removed best-effort on delete
		CreatedAt      time.Time
	}

	// CashBookEntry is one line of the daily cash/bank register.
	// LinkedLedgerEntryID is a weak back-reference: zero when the entry was
	// entered manually, is an expense, or its ledger entry was removed with
	// its party.
	CashBookEntry struct {
		ID                  int64
		Date                Date
		Mode                CashMode
		Amount              Money
		PartyLabel          string
		Note                string
		SourceType          SourceKind
		SourceID            int64
		LinkedLedgerEntryID int64
		CreatedAt           time.Time
	}

	DailyBalance struct {
		Date          Date
		Opening       CashBank
		Closing       CashBank
		OpeningManual bool // opening was set by the user
		Note          string
		CreatedAt     time.Time
	}
)

func ParsePartyRole(s string) (PartyRole, error) {
	r := PartyRole(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Validate()
}

func (r PartyRole) Validate() error {
	switch r {
	case RoleCustomer, RoleSeller, RoleBoth:
		return nil
	}
	return invalidEnum("role", string(r))
}

func ParseLedgerEntryKind(s string) (LedgerEntryKind, error) {
	k := LedgerEntryKind(strings.ToUpper(strings.TrimSpace(s)))
	return k, k.Validate()
}

func (k LedgerEntryKind) Validate() error {
	switch k {
	case KindDebit, KindCredit, KindPurchase:
		return nil
	}
	return invalidEnum("kind", string(k))
}

func ParsePaymentChannel(s string) (PaymentChannel, error) {
	c := PaymentChannel(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Validate()
}

func (c PaymentChannel) Validate() error {
	switch c {
	case ChannelCash, ChannelBank, ChannelCredit:
		return nil
	}
	return invalidEnum("channel", string(c))
}

func ParseCashMode(s string) (CashMode, error) {
	m := CashMode(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.Validate()
}

func (m CashMode) Validate() error {
	switch m {
	case ModeCashIn, ModeCashOut, ModeBankIn, ModeBankOut, ModePurchase:
		return nil
	}
	return invalidEnum("mode", string(m))
}

// Inflow reports whether the mode adds money to cash or bank.
func (m CashMode) Inflow() bool { return m == ModeCashIn || m == ModeBankIn }

// Affects reports whether the mode moves cash or bank at all.
// PURCHASE entries are record-only.
func (m CashMode) Affects() bool { return m != ModePurchase && m != "" }

func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToUpper(strings.TrimSpace(s)))
	if k == "" {
		k = SourceManual
	}
	return k, k.Validate()
}

func (k SourceKind) Validate() error {
	switch k {
	case SourceCustomer, SourceSupplier, SourceExpense, SourceManual:
		return nil
	}
	return invalidEnum("source type", string(k))
}

// ModeFor maps a ledger entry's kind and channel to the mode of its cash
// book mirror.
func ModeFor(kind LedgerEntryKind, channel PaymentChannel) (CashMode, error) {
	switch kind {
	case KindPurchase:
		return ModePurchase, nil
	case KindDebit:
		switch channel {
		case ChannelCash:
			return ModeCashIn, nil
		case ChannelBank:
			return ModeBankIn, nil
		}
	case KindCredit:
		switch channel {
		case ChannelCash:
			return ModeCashOut, nil
		case ChannelBank:
			return ModeBankOut, nil
		}
	default:
		return "", invalidEnum("kind", string(kind))
	}
	return "", NewValidationError("channel",
		fmt.Sprintf("%s entries must be paid by %s or %s, got %q", kind, ChannelCash, ChannelBank, channel))
}

// KindFor is the inverse of ModeFor. PURCHASE keeps the given channel.
func KindFor(mode CashMode, purchaseChannel PaymentChannel) (LedgerEntryKind, PaymentChannel, error) {
	switch mode {
	case ModeCashIn:
		return KindDebit, ChannelCash, nil
	case ModeBankIn:
		return KindDebit, ChannelBank, nil
	case ModeCashOut:
		return KindCredit, ChannelCash, nil
	case ModeBankOut:
		return KindCredit, ChannelBank, nil
	case ModePurchase:
		return KindPurchase, purchaseChannel, nil
	}
	return "", "", invalidEnum("mode", string(mode))
}

// Delta returns the cash/bank movement an entry contributes to its day.
func (e CashBookEntry) Delta() CashBank {
	var out CashBank
	switch e.Mode {
	case ModeCashIn:
		out.Cash = e.Amount
	case ModeCashOut:
		out.Cash = e.Amount.Neg()
	case ModeBankIn:
		out.Bank = e.Amount
	case ModeBankOut:
		out.Bank = e.Amount.Neg()
	}
	return out
}

func (p Party) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "party name is required")
	}
	if len(p.Name) > 120 {
		return NewValidationError("name", "party name too long (max 120 characters)")
	}
	return p.Role.Validate()
}

// NormalizedName is the key name uniqueness is enforced on.
func NormalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e PartyLedgerEntry) Validate() error {
	if e.PartyID <= 0 {
		return NewValidationError("party", "party is required")
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := e.Channel.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return amountError(err)
	}
	if err := e.Date.Validate(); err != nil {
		return NewValidationError("date", err.Error())
	}
	if len(e.Note) > MaxNoteLength {
		return NewValidationError("note", fmt.Sprintf("note too long (max %d characters)", MaxNoteLength))
	}
	// the mirror mode has to be derivable
	_, err := ModeFor(e.Kind, e.Channel)
	return err
}

func (e CashBookEntry) Validate() error {
	if err := e.Mode.Validate(); err != nil {
		return err
	}
	if err := e.SourceType.Validate(); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return amountError(err)
	}
	if err := e.Date.Validate(); err != nil {
		return NewValidationError("date", err.Error())
	}
	if len(e.Note) > MaxNoteLength {
		return NewValidationError("note", fmt.Sprintf("note too long (max %d characters)", MaxNoteLength))
	}
	return nil
}

func invalidEnum(field, value string) error {
	return NewValidationError(field, fmt.Sprintf("invalid %s %q", field, value))
}

func amountError(err error) error {
	if errors.Is(err, ErrSubCent) {
		return NewValidationError("amount", "amount cannot have more than two decimal places")
	}
	return NewValidationError("amount", "amount must be greater than zero")
}
