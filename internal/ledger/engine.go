// Package ledger keeps party ledger entries and their cash book mirrors in
// step.
//
// Every ledger entry has exactly one mirror in the cash book, linked through
// the mirror's linkedLedgerEntryId. DEBIT and CREDIT entries mirror as a
// cash or bank movement, PURCHASE entries as a record-only PURCHASE line.
// The ledger entry never knows its mirror; all maintenance lives here.
//
// The engine only writes rows. It reports which dates it dirtied and leaves
// balance propagation to the caller, which runs it in the same transaction.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"khata/internal/core"
	klog "khata/internal/log"
)

// Store is the transaction-scoped slice of the entity store the engine
// writes through.
type Store interface {
	GetParty(ctx context.Context, id int64) (core.Party, error)

	InsertLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) (int64, error)
	GetLedgerEntry(ctx context.Context, id int64) (core.PartyLedgerEntry, error)
	UpdateLedgerEntry(ctx context.Context, e core.PartyLedgerEntry) error
	DeleteLedgerEntry(ctx context.Context, id int64) error

	InsertCashBookEntry(ctx context.Context, e core.CashBookEntry) (int64, error)
	MirrorOf(ctx context.Context, ledgerEntryID int64) (core.CashBookEntry, bool, error)
	UpdateCashBookEntry(ctx context.Context, e core.CashBookEntry) error
	DeleteMirrorsOf(ctx context.Context, ledgerEntryID int64) (int64, error)
	CashBookEntriesForParty(ctx context.Context, partyID int64) ([]core.CashBookEntry, error)
	UnlinkPartyMirrors(ctx context.Context, partyID int64) (int64, error)

	AfterCommit(fn func())
}

// ArtifactRemover deletes files attached to ledger entries.
type ArtifactRemover interface {
	Remove(path string) error
}

// Patch is the full new state of an edited ledger entry.
type Patch struct {
	Amount  core.Money
	Kind    core.LedgerEntryKind
	Channel core.PaymentChannel
	Note    string
	Date    core.Date
}

// Change reports what a sync step did.
type Change struct {
	LedgerEntryID int64
	CashEntryID   int64
	Moved         bool
	Dirty         []core.Date // dates whose balances must be propagated
}

type Engine struct {
	artifacts ArtifactRemover
	now       func() time.Time
}

// NewEngine returns an engine. artifacts may be nil when entries never carry
// attachments.
func NewEngine(artifacts ArtifactRemover) *Engine {
	return &Engine{artifacts: artifacts, now: time.Now}
}

// RecordReceiptOrPayment inserts e and its mirror.
func (g *Engine) RecordReceiptOrPayment(ctx context.Context, store Store, e core.PartyLedgerEntry) (Change, error) {
	if err := e.Validate(); err != nil {
		return Change{}, err
	}
	party, err := store.GetParty(ctx, e.PartyID)
	if err != nil {
		return Change{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = g.now()
	}

	id, err := store.InsertLedgerEntry(ctx, e)
	if err != nil {
		return Change{}, err
	}
	e.ID = id

	mirror, err := MirrorFor(party, e)
	if err != nil {
		return Change{}, err
	}
	mirror.CreatedAt = e.CreatedAt
	cashID, err := store.InsertCashBookEntry(ctx, mirror)
	if err != nil {
		return Change{}, err
	}

	fields := klog.NewFields().WithOperation(klog.OpCreate).WithEntry(e)
	fields[klog.FieldCashEntryID] = cashID
	slog.DebugContext(ctx, "Ledger entry recorded", fields.ToSlice()...)

	return Change{LedgerEntryID: id, CashEntryID: cashID, Dirty: []core.Date{e.Date}}, nil
}

// UpdateWithSync rewrites a ledger entry and its mirror. When the date is
// unchanged the mirror is patched in place and keeps its id. When the date
// moves, the mirror is deleted and recreated on the new date and both dates
// are dirty. A missing mirror is recreated.
func (g *Engine) UpdateWithSync(ctx context.Context, store Store, id int64, p Patch) (Change, error) {
	old, err := store.GetLedgerEntry(ctx, id)
	if err != nil {
		return Change{}, err
	}

	updated := old
	updated.Amount = p.Amount
	updated.Kind = p.Kind
	updated.Channel = p.Channel
	updated.Note = p.Note
	updated.Date = p.Date
	if err := updated.Validate(); err != nil {
		return Change{}, err
	}

	party, err := store.GetParty(ctx, old.PartyID)
	if err != nil {
		return Change{}, err
	}
	want, err := MirrorFor(party, updated)
	if err != nil {
		return Change{}, err
	}

	if err := store.UpdateLedgerEntry(ctx, updated); err != nil {
		return Change{}, err
	}

	change := Change{LedgerEntryID: id, Dirty: []core.Date{updated.Date}}
	moved := updated.Date != old.Date
	if moved {
		change.Moved = true
		change.Dirty = append(change.Dirty, old.Date)
	}

	mirror, ok, err := store.MirrorOf(ctx, id)
	if err != nil {
		return Change{}, err
	}

	switch {
	case ok && !moved:
		// keep identity, label and creation time of the existing mirror
		mirror.Mode = want.Mode
		mirror.Amount = want.Amount
		mirror.SourceType = want.SourceType
		mirror.SourceID = want.SourceID
		mirror.Note = noteFor(mirror.PartyLabel, updated)
		if err := store.UpdateCashBookEntry(ctx, mirror); err != nil {
			return Change{}, err
		}
		change.CashEntryID = mirror.ID

	default:
		if ok {
			if mirror.Date != old.Date {
				change.Dirty = append(change.Dirty, mirror.Date)
			}
			if _, err := store.DeleteMirrorsOf(ctx, id); err != nil {
				return Change{}, err
			}
		} else {
			slog.WarnContext(ctx, "Ledger entry had no mirror, recreating", klog.FieldEntryID, id)
		}
		want.CreatedAt = g.now()
		cashID, err := store.InsertCashBookEntry(ctx, want)
		if err != nil {
			return Change{}, err
		}
		change.CashEntryID = cashID
	}

	op := klog.OpUpdate
	if moved {
		op = klog.OpMove
	}
	fields := klog.NewFields().WithOperation(op).WithEntry(updated)
	fields[klog.FieldCashEntryID] = change.CashEntryID
	fields["old_date"] = old.Date.String()
	slog.DebugContext(ctx, "Ledger entry updated", fields.ToSlice()...)

	return change, nil
}

// DeleteWithSync removes a ledger entry and its mirror. An attachment is
// removed once the transaction has committed; failing to remove it is only
// logged.
func (g *Engine) DeleteWithSync(ctx context.Context, store Store, id int64) (Change, error) {
	entry, err := store.GetLedgerEntry(ctx, id)
	if err != nil {
		return Change{}, err
	}

	change := Change{LedgerEntryID: id, Dirty: []core.Date{entry.Date}}
	mirror, ok, err := store.MirrorOf(ctx, id)
	if err != nil {
		return Change{}, err
	}
	if ok {
		change.CashEntryID = mirror.ID
		if mirror.Date != entry.Date {
			change.Dirty = append(change.Dirty, mirror.Date)
		}
	}

	if _, err := store.DeleteMirrorsOf(ctx, id); err != nil {
		return Change{}, err
	}
	if err := store.DeleteLedgerEntry(ctx, id); err != nil {
		return Change{}, err
	}

	g.removeAfterCommit(ctx, store, entry.AttachmentPath)

	slog.DebugContext(ctx, "Ledger entry deleted",
		klog.NewFields().WithOperation(klog.OpDelete).WithEntry(entry).ToSlice()...)
	return change, nil
}

// RenamePartyEverywhere rewrites the label of every cash book line that
// belongs to the party, and the generated notes that carry the old name.
// User-written notes are left alone. It returns the number of rows changed.
func (g *Engine) RenamePartyEverywhere(ctx context.Context, store Store, partyID int64, oldName, newName string) (int, error) {
	if strings.TrimSpace(newName) == "" {
		return 0, core.NewValidationError("name", "party name is required")
	}
	entries, err := store.CashBookEntriesForParty(ctx, partyID)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, e := range entries {
		label := newName
		note := renameInNote(e.Note, oldName, newName)
		if e.PartyLabel == label && e.Note == note {
			continue
		}
		e.PartyLabel = label
		e.Note = note
		if err := store.UpdateCashBookEntry(ctx, e); err != nil {
			return changed, err
		}
		changed++
	}

	slog.InfoContext(ctx, "Party renamed in cash book",
		klog.FieldOperation, klog.OpRename,
		klog.FieldPartyID, partyID,
		"old_name", oldName,
		klog.FieldPartyName, newName,
		"rows", changed)
	return changed, nil
}

// UnlinkParty drops the back-references of every mirror of the party's
// ledger entries so the cash lines outlive the party.
func (g *Engine) UnlinkParty(ctx context.Context, store Store, partyID int64) (int64, error) {
	return store.UnlinkPartyMirrors(ctx, partyID)
}

// RemoveArtifacts schedules removal of attachment files after commit.
func (g *Engine) RemoveArtifacts(ctx context.Context, store Store, paths ...string) {
	for _, p := range paths {
		g.removeAfterCommit(ctx, store, p)
	}
}

func (g *Engine) removeAfterCommit(ctx context.Context, store Store, path string) {
	if path == "" || g.artifacts == nil {
		return
	}
	store.AfterCommit(func() {
		if err := g.artifacts.Remove(path); err != nil {
			var side *core.SideArtifactError
			if !errors.As(err, &side) {
				side = &core.SideArtifactError{Path: path, Err: err}
			}
			slog.WarnContext(ctx, "Failed to remove attachment",
				append([]any{"path", path}, klog.NewFields().WithComponent(klog.ComponentAttach).WithError(side).ToSlice()...)...)
		}
	})
}

// MirrorFor builds the cash book line for a ledger entry of party.
func MirrorFor(party core.Party, e core.PartyLedgerEntry) (core.CashBookEntry, error) {
	mode, err := core.ModeFor(e.Kind, e.Channel)
	if err != nil {
		return core.CashBookEntry{}, err
	}
	return core.CashBookEntry{
		Date:                e.Date,
		Mode:                mode,
		Amount:              e.Amount,
		PartyLabel:          party.Name,
		Note:                noteFor(party.Name, e),
		SourceType:          SourceKindFor(party.Role, e.Kind),
		SourceID:            party.ID,
		LinkedLedgerEntryID: e.ID,
	}, nil
}

// SourceKindFor decides whether a mirror counts as customer or supplier
// money. Parties that are both follow the direction of the entry.
func SourceKindFor(role core.PartyRole, kind core.LedgerEntryKind) core.SourceKind {
	switch role {
	case core.RoleSeller:
		return core.SourceSupplier
	case core.RoleCustomer:
		return core.SourceCustomer
	}
	if kind == core.KindDebit {
		return core.SourceCustomer
	}
	return core.SourceSupplier
}
