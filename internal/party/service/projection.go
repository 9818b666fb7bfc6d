package service

import (
	"context"
	"time"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// Project derives the backward-compatible dual-reference shape for a party.
// This is the only place the legacy shape is reconstructed; it is computed
// on every read and never stored or cached. A zero party id and an orphaned
// Party both project to the all-nil shape, matching what old clients saw
// for a null reference.
func (s *Service) Project(ctx context.Context, partyID id.PartyID) (models.LegacyShape, error) {
	start := time.Now()
	defer s.metrics.ObserveProjection(start)

	if partyID.IsNil() {
		return models.LegacyShape{}, nil
	}
	backing, err := s.BackingOf(ctx, partyID)
	if err != nil {
		return models.LegacyShape{}, err
	}
	return models.FromBacking(backing), nil
}

// ProjectMany projects a page of party ids with the batched backing lookup
// (one query per kind per page, not one per row). Ids that do not resolve
// project to the all-nil shape so list responses keep their row count.
func (s *Service) ProjectMany(ctx context.Context, partyIDs []id.PartyID) (map[id.PartyID]models.LegacyShape, error) {
	start := time.Now()
	defer s.metrics.ObserveProjection(start)

	backings, err := s.BackingOfMany(ctx, partyIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[id.PartyID]models.LegacyShape, len(partyIDs))
	for _, pid := range partyIDs {
		if pid.IsNil() {
			continue
		}
		out[pid] = models.FromBacking(backings[pid])
	}
	return out, nil
}
