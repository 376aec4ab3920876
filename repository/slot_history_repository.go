// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SlotHistoryRepositoryImpl implements SlotHistoryRepository interface
type SlotHistoryRepositoryImpl struct {
	*BaseRepository[models.SlotHistory, models.SlotHistoryFilter]
}

// NewSlotHistoryRepository creates a new slot history repository
func NewSlotHistoryRepository(db *gorm.DB) SlotHistoryRepository {
	return &SlotHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SlotHistory, models.SlotHistoryFilter](db),
	}
}

// ListBySlot returns the history of a slot, newest first
func (r *SlotHistoryRepositoryImpl) ListBySlot(ctx context.Context, slotID uint) ([]*models.SlotHistory, error) {
	db := r.getDB(ctx)

	var rows []*models.SlotHistory
	err := db.Where("slot_id = ?", slotID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history of slot %d: %w", slotID, err)
	}

	return rows, nil
}

// ListBySlots returns the history of several slots, newest first
func (r *SlotHistoryRepositoryImpl) ListBySlots(ctx context.Context, slotIDs []uint) ([]*models.SlotHistory, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	db := r.getDB(ctx)

	var rows []*models.SlotHistory
	err := db.Where("slot_id = ANY(?)", pq.Array(toInt64s(slotIDs))).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slot history: %w", err)
	}

	return rows, nil
}

func (r *SlotHistoryRepositoryImpl) ExistsAction(ctx context.Context, slotID uint, action models.SlotHistoryAction) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.SlotHistory{}).
		Where("slot_id = ? AND action = ?", slotID, action).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check history of slot %d: %w", slotID, err)
	}

	return count > 0, nil
}
