package services

import (
	"context"
	"strings"
	"time"

	"khata/internal/core"
	"khata/internal/storage"
)

// CreateParty adds a party. Names are unique regardless of case.
func (s *LedgerService) CreateParty(ctx context.Context, p core.Party) (core.Party, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Party{}, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	var created core.Party
	_, err := s.submit(ctx, "create_party", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		if err := ensureNameFree(ctx, tx, p.Name, 0); err != nil {
			return Outcome{}, err
		}
		var err error
		created, err = tx.CreateParty(ctx, p)
		return Outcome{PartyID: created.ID}, err
	})
	if err != nil {
		return core.Party{}, err
	}
	return created, nil
}

// UpdateParty saves a party. A changed name is rewritten across the cash
// book in the same unit of work.
func (s *LedgerService) UpdateParty(ctx context.Context, p core.Party) (Outcome, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}
	return s.submit(ctx, "update_party", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		old, err := tx.GetParty(ctx, p.ID)
		if err != nil {
			return Outcome{}, err
		}
		p.CreatedAt = old.CreatedAt
		return s.saveParty(ctx, tx, old, p)
	})
}

// RenameParty changes only the name of a party.
func (s *LedgerService) RenameParty(ctx context.Context, partyID int64, newName string) (Outcome, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Outcome{}, core.NewValidationError("name", "party name is required")
	}
	return s.submit(ctx, "rename_party", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		old, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return Outcome{}, err
		}
		p := old
		p.Name = newName
		if err := p.Validate(); err != nil {
			return Outcome{}, err
		}
		return s.saveParty(ctx, tx, old, p)
	})
}

func (s *LedgerService) saveParty(ctx context.Context, tx *storage.Tx, old, p core.Party) (Outcome, error) {
	out := Outcome{PartyID: p.ID}
	if err := ensureNameFree(ctx, tx, p.Name, p.ID); err != nil {
		return out, err
	}
	if err := tx.UpdateParty(ctx, p); err != nil {
		return out, err
	}
	if old.Name != p.Name {
		if _, err := s.engine.RenamePartyEverywhere(ctx, tx, p.ID, old.Name, p.Name); err != nil {
			return out, err
		}
	}
	return out, nil
}

// DeleteParty removes a party with its ledger entries. Their cash book
// lines stay, unlinked, so the cash history and balances are unchanged.
func (s *LedgerService) DeleteParty(ctx context.Context, partyID int64) (Outcome, error) {
	return s.submit(ctx, "delete_party", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		out := Outcome{PartyID: partyID}
		if _, err := tx.GetParty(ctx, partyID); err != nil {
			return out, err
		}
		entries, err := tx.LedgerEntriesForParty(ctx, partyID)
		if err != nil {
			return out, err
		}
		if _, err := s.engine.UnlinkParty(ctx, tx, partyID); err != nil {
			return out, err
		}
		// ledger entries go with the party through ON DELETE CASCADE
		if err := tx.DeleteParty(ctx, partyID); err != nil {
			return out, err
		}

		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.AttachmentPath != "" {
				paths = append(paths, e.AttachmentPath)
			}
		}
		s.engine.RemoveArtifacts(ctx, tx, paths...)
		return out, nil
	})
}

func ensureNameFree(ctx context.Context, tx *storage.Tx, name string, selfID int64) error {
	other, found, err := tx.FindPartyByName(ctx, name)
	if err != nil {
		return err
	}
	if found && other.ID != selfID {
		return core.NewValidationError("name", "a party named "+other.Name+" already exists")
	}
	return nil
}
