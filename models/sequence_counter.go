package models

import "time"

// SequenceAccountIndex names the counter that numbers pool accounts
const SequenceAccountIndex = "pool_account_index"

// SequenceCounter stores the last value handed out by a named monotonic counter.
// Increments happen in the database so concurrent instances never share a value.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
