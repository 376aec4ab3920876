// Package models contains domain entities and business models for the slot pool
package models

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the lifecycle state of a slot
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusAssigned  SlotStatus = "assigned"
	SlotStatusInactive  SlotStatus = "inactive"
	SlotStatusSuspended SlotStatus = "suspended"
)

func (s SlotStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusAssigned, SlotStatusInactive, SlotStatusSuspended:
		return true
	}
	return false
}

// PlanType is the commercial plan a slot was sold under
type PlanType string

const (
	PlanTypeEssential PlanType = "essential"
	PlanTypePremium   PlanType = "premium"
)

func (p PlanType) Valid() bool {
	return p == PlanTypeEssential || p == PlanTypePremium
}

// Slot is one sellable access unit inside an account.
// Invariants: ClientID != nil iff Status == assigned; (AccountID, SlotNumber) never changes.
type Slot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_slots_uuid" json:"uuid"`
	AccountID  uint      `gorm:"not null;uniqueIndex:uk_slots_account_slot_number,priority:1;index:idx_slots_account_id" json:"account_id"`
	Account    *Account  `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
	SlotNumber int       `gorm:"not null;uniqueIndex:uk_slots_account_slot_number,priority:2" json:"slot_number"`
	Username   string    `gorm:"size:64;not null;uniqueIndex:uk_slots_username" json:"username"`
	Password   string    `gorm:"size:16;not null" json:"password"`

	Status   SlotStatus `gorm:"type:varchar(16);not null;default:'available';index:idx_slots_status" json:"status"`
	ClientID *uint      `gorm:"index:idx_slots_client_id" json:"client_id,omitempty"`
	PlanType *PlanType  `gorm:"type:varchar(16)" json:"plan_type,omitempty"`

	SoldBy    *string    `gorm:"size:255" json:"sold_by,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notes     *string    `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Slot) TableName() string {
	return "slots"
}

// IsFree reports whether the slot can be claimed right now
func (s *Slot) IsFree() bool {
	return s.Status == SlotStatusAvailable && s.ClientID == nil
}

// SlotFilter represents filter criteria for slot queries
type SlotFilter struct {
	ID         *uint
	UUID       *uuid.UUID
	AccountID  *uint
	ClientID   *uint
	Status     *SlotStatus
	PlanType   *PlanType
	Username   *string
	SlotNumber *int
}

// SlotSale carries the sale attributes recorded when a slot is claimed
type SlotSale struct {
	PlanType  *PlanType  `json:"plan_type,omitempty"`
	SoldBy    *string    `json:"sold_by,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// Snapshot returns the history metadata describing a claim
func (s SlotSale) Snapshot(clientID uint) HistoryMetadata {
	m := HistoryMetadata{"client_id": clientID}
	if s.PlanType != nil {
		m["plan_type"] = string(*s.PlanType)
	}
	if s.SoldBy != nil {
		m["sold_by"] = *s.SoldBy
	}
	if s.SoldAt != nil {
		m["sold_at"] = s.SoldAt.UTC().Format(time.RFC3339)
	}
	if s.StartsAt != nil {
		m["starts_at"] = s.StartsAt.UTC().Format(time.RFC3339)
	}
	if s.ExpiresAt != nil {
		m["expires_at"] = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if s.Notes != nil {
		m["notes"] = *s.Notes
	}
	return m
}

// SlotPatch is a partial administrative update. Nil fields are left untouched.
type SlotPatch struct {
	SoldBy    *string
	SoldAt    *time.Time
	StartsAt  *time.Time
	ExpiresAt *time.Time
	Status    *SlotStatus
	Notes     *string
	PlanType  *PlanType
	Password  *string
}

// IsEmpty reports whether no recognized field is set
func (p SlotPatch) IsEmpty() bool {
	return p.SoldBy == nil && p.SoldAt == nil && p.StartsAt == nil && p.ExpiresAt == nil &&
		p.Status == nil && p.Notes == nil && p.PlanType == nil && p.Password == nil
}

// Snapshot returns the history metadata describing the patch
func (p SlotPatch) Snapshot() HistoryMetadata {
	m := HistoryMetadata{}
	if p.SoldBy != nil {
		m["sold_by"] = *p.SoldBy
	}
	if p.SoldAt != nil {
		m["sold_at"] = p.SoldAt.UTC().Format(time.RFC3339)
	}
	if p.StartsAt != nil {
		m["starts_at"] = p.StartsAt.UTC().Format(time.RFC3339)
	}
	if p.ExpiresAt != nil {
		m["expires_at"] = p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if p.Status != nil {
		m["status"] = string(*p.Status)
	}
	if p.Notes != nil {
		m["notes"] = *p.Notes
	}
	if p.PlanType != nil {
		m["plan_type"] = string(*p.PlanType)
	}
	if p.Password != nil {
		m["password"] = *p.Password
	}
	return m
}
