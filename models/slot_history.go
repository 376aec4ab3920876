// Package models contains domain entities and business models for the slot pool
package models

import (
	"encoding/json"
	"time"
)

// SlotHistoryAction tags a history entry
type SlotHistoryAction string

const (
	SlotHistoryActionAssigned            SlotHistoryAction = "assigned"
	SlotHistoryActionReleased            SlotHistoryAction = "released"
	SlotHistoryActionPasswordRegenerated SlotHistoryAction = "password_regenerated"
	SlotHistoryActionUpdated             SlotHistoryAction = "updated"
)

// SlotHistory is an append-only audit entry. Rows are only removed by the
// cascade that deletes their slot.
type SlotHistory struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	SlotID    uint              `gorm:"not null;index:idx_slot_history_slot_action,priority:1" json:"slot_id"`
	Slot      *Slot             `gorm:"foreignKey:SlotID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Action    SlotHistoryAction `gorm:"type:varchar(32);not null;index:idx_slot_history_slot_action,priority:2" json:"action"`
	Metadata  json.RawMessage   `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_slot_history_created_at" json:"created_at"`
}

func (SlotHistory) TableName() string {
	return "slot_history"
}

// HistoryMetadata is the key/value snapshot stored with every history entry
type HistoryMetadata map[string]any

// Marshal encodes the metadata; nil encodes as an empty object
func (m HistoryMetadata) Marshal() (json.RawMessage, error) {
	if m == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(m)
}

// DecodeHistoryMetadata decodes stored metadata, tolerating empty payloads
func DecodeHistoryMetadata(raw json.RawMessage) (HistoryMetadata, error) {
	m := HistoryMetadata{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// SlotHistoryFilter represents filter criteria for history queries
type SlotHistoryFilter struct {
	ID            *uint
	SlotID        *uint
	Action        *SlotHistoryAction
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
