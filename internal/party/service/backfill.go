package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/platform/sentinel"
	"studbook/pkg/requestcontext"
)

// EnsureParty resolves a legacy reference for the backfill job, minting a
// Party when the backing record exists but was never linked to one. Unlike
// Resolve it is not scoped by the request tenant: the backfill runs across
// tenants and each minted Party inherits the tenant of its backing row.
//
// Returns the zero PartyID with no error when the backing record itself is
// missing; the engine counts those rows as unresolvable and reports them.
// The minted return reports whether this call created the Party.
func (s *Service) EnsureParty(ctx context.Context, ref models.LegacyRef) (partyID id.PartyID, minted bool, err error) {
	if ref.IsEmpty() {
		return id.PartyID{}, false, nil
	}

	if !ref.OrganizationID.IsNil() {
		org, err := s.store.FindOrganization(ctx, ref.OrganizationID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return id.PartyID{}, false, nil
			}
			return id.PartyID{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "find organization for backfill")
		}
		if !org.PartyID.IsNil() {
			return org.PartyID, false, nil
		}
		return s.mintOrganizationParty(ctx, org)
	}

	person, err := s.store.FindPerson(ctx, ref.PersonID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.PartyID{}, false, nil
		}
		return id.PartyID{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "find person for backfill")
	}
	if !person.PartyID.IsNil() {
		return person.PartyID, false, nil
	}
	return s.mintPersonParty(ctx, person)
}

func (s *Service) mintPersonParty(ctx context.Context, person *models.Person) (id.PartyID, bool, error) {
	now := requestcontext.Now(ctx)
	party, err := models.NewParty(id.PartyID(uuid.New()), person.TenantID, models.KindPerson, person.DisplayName(), person.Email, now)
	if err != nil {
		return id.PartyID{}, false, err
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateParty(txCtx, party); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mint party")
		}
		if err := s.store.AttachPartyToPerson(txCtx, person.ID, party.ID); err != nil {
			// A concurrent backfill window attached first; that attach won.
			if errors.Is(err, sentinel.ErrInvalidState) {
				return sentinel.ErrInvalidState
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach party to person")
		}
		return nil
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		// Re-read to pick up whichever Party won the race. The winner
		// minted it, this call did not.
		refreshed, rerr := s.store.FindPerson(ctx, person.ID)
		if rerr != nil {
			return id.PartyID{}, false, dErrors.Wrap(rerr, dErrors.CodeInternal, "reread person after attach race")
		}
		return refreshed.PartyID, false, nil
	}
	if err != nil {
		return id.PartyID{}, false, err
	}
	return party.ID, true, nil
}

func (s *Service) mintOrganizationParty(ctx context.Context, org *models.Organization) (id.PartyID, bool, error) {
	now := requestcontext.Now(ctx)
	party, err := models.NewParty(id.PartyID(uuid.New()), org.TenantID, models.KindOrganization, org.Name, org.Email, now)
	if err != nil {
		return id.PartyID{}, false, err
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateParty(txCtx, party); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mint party")
		}
		if err := s.store.AttachPartyToOrganization(txCtx, org.ID, party.ID); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return sentinel.ErrInvalidState
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "attach party to organization")
		}
		return nil
	})
	if errors.Is(err, sentinel.ErrInvalidState) {
		refreshed, rerr := s.store.FindOrganization(ctx, org.ID)
		if rerr != nil {
			return id.PartyID{}, false, dErrors.Wrap(rerr, dErrors.CodeInternal, "reread organization after attach race")
		}
		return refreshed.PartyID, false, nil
	}
	if err != nil {
		return id.PartyID{}, false, err
	}
	return party.ID, true, nil
}
