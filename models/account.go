// Package models contains domain entities and business models for the slot pool
package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAccountCapacity is the number of slots provisioned with every account
const DefaultAccountCapacity = 8

// Account is a fixed-capacity block of slots created only by pool growth.
// SequenceIndex is 1-based, unique and immutable; Email is derived from it.
// Deleting an account cascades to its slots and their history.
type Account struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_accounts_uuid" json:"uuid"`
	SequenceIndex int64     `gorm:"not null;uniqueIndex:uk_accounts_sequence_index" json:"sequence_index"`
	Email         string    `gorm:"size:255;not null;uniqueIndex:uk_accounts_email" json:"email"`
	Capacity      int       `gorm:"not null;default:8" json:"capacity"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_accounts_created_at" json:"created_at"`

	Slots []Slot `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE" json:"slots,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	SequenceIndex *int64
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
