// Package models defines buying-group membership records. A group's current
// buyers are the assignments whose RemovedAt is unset; removal is soft so
// historical invoices keep a provable buyer at submission time.
package models

import (
	"time"

	id "studbook/pkg/domain"
)

// BuyerAssignment links a Party to a buying group. An assignment is current
// while RemovedAt is nil; removing and re-adding a buyer produces a new row.
type BuyerAssignment struct {
	ID         int64       `json:"id"`
	TenantID   id.TenantID `json:"tenant_id"`
	GroupID    id.GroupID  `json:"group_id"`
	PartyID    id.PartyID  `json:"party_id"`
	AssignedAt time.Time   `json:"assigned_at"`
	RemovedAt  *time.Time  `json:"removed_at,omitempty"`
}

// Current reports whether the assignment is still in force.
func (a BuyerAssignment) Current() bool {
	return a.RemovedAt == nil
}
