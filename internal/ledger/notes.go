package ledger

import (
	"strings"

	"khata/internal/core"
)

var autoNotePrefixes = map[core.LedgerEntryKind]string{
	core.KindDebit:    "Received from ",
	core.KindCredit:   "Paid to ",
	core.KindPurchase: "Purchase from ",
}

// AutoNote is the note a mirror gets when the user left it blank.
func AutoNote(kind core.LedgerEntryKind, partyName string) string {
	return autoNotePrefixes[kind] + partyName
}

func noteFor(partyName string, e core.PartyLedgerEntry) string {
	if strings.TrimSpace(e.Note) != "" {
		return e.Note
	}
	return AutoNote(e.Kind, partyName)
}

// renameInNote rewrites note only when it is exactly a generated note for
// oldName.
func renameInNote(note, oldName, newName string) string {
	for _, prefix := range autoNotePrefixes {
		if note == prefix+oldName {
			return prefix + newName
		}
	}
	return note
}
