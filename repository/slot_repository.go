// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const freshSlotCondition = "NOT EXISTS (SELECT 1 FROM slot_history h WHERE h.slot_id = slots.id AND h.action = ?)"

// SlotRepositoryImpl implements SlotRepository interface
type SlotRepositoryImpl struct {
	*BaseRepository[models.Slot, models.SlotFilter]
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &SlotRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Slot, models.SlotFilter](db),
	}
}

func (r *SlotRepositoryImpl) applyFilter(db *gorm.DB, f models.SlotFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("slots.id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("slots.uuid = ?", *f.UUID)
	}
	if f.AccountID != nil {
		db = db.Where("slots.account_id = ?", *f.AccountID)
	}
	if f.ClientID != nil {
		db = db.Where("slots.client_id = ?", *f.ClientID)
	}
	if f.Status != nil {
		db = db.Where("slots.status = ?", *f.Status)
	}
	if f.PlanType != nil {
		db = db.Where("slots.plan_type = ?", *f.PlanType)
	}
	if f.Username != nil {
		db = db.Where("slots.username = ?", *f.Username)
	}
	if f.SlotNumber != nil {
		db = db.Where("slots.slot_number = ?", *f.SlotNumber)
	}
	return db
}

func (r *SlotRepositoryImpl) ByFilter(ctx context.Context, filter models.SlotFilter, orderBy string, limit, offset int) ([]*models.Slot, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Slot{}), filter).
		Select("slots.*").
		Joins("JOIN accounts ON accounts.id = slots.account_id").
		Preload("Account")
	if orderBy == "" {
		orderBy = "accounts.sequence_index ASC, slots.slot_number ASC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Slot
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return rows, nil
}

func (r *SlotRepositoryImpl) Count(ctx context.Context, filter models.SlotFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Slot{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count slots: %w", err)
	}
	return count, nil
}

func (r *SlotRepositoryImpl) Exists(ctx context.Context, filter models.SlotFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// ByID loads a slot with its account
func (r *SlotRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Slot, error) {
	db := r.getDB(ctx)

	var slot models.Slot
	err := db.Preload("Account").Where("id = ?", id).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find slot %d: %w", id, err)
	}

	return &slot, nil
}

// ByIDForUpdate loads a slot with a row lock; callers must be inside a transaction
func (r *SlotRepositoryImpl) ByIDForUpdate(ctx context.Context, id uint) (*models.Slot, error) {
	db := r.getDB(ctx)

	var slot models.Slot
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock slot %d: %w", id, err)
	}

	return &slot, nil
}

func (r *SlotRepositoryImpl) availableQuery(db *gorm.DB, freshOnly bool) *gorm.DB {
	query := db.Model(&models.Slot{}).
		Where("slots.status = ? AND slots.client_id IS NULL", models.SlotStatusAvailable)
	if freshOnly {
		query = query.Where(freshSlotCondition, models.SlotHistoryActionAssigned)
	}
	return query
}

func (r *SlotRepositoryImpl) SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error) {
	db := r.getDB(ctx)

	query := r.availableQuery(db, freshOnly).
		Select("slots.*").
		Joins("JOIN accounts ON accounts.id = slots.account_id").
		Order("accounts.sequence_index ASC, slots.slot_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Slot
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to select candidate slots: %w", err)
	}

	return rows, nil
}

func (r *SlotRepositoryImpl) CountAvailable(ctx context.Context, freshOnly bool) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.availableQuery(db, freshOnly).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count available slots: %w", err)
	}

	return count, nil
}

// TryClaim is a compare-and-set on (status, client_id). Losing the race is not an error.
func (r *SlotRepositoryImpl) TryClaim(ctx context.Context, slotID, clientID uint, sale models.SlotSale) (claimed bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	res := db.Model(&models.Slot{}).
		Where("id = ? AND status = ? AND client_id IS NULL", slotID, models.SlotStatusAvailable).
		Updates(map[string]any{
			"status":     models.SlotStatusAssigned,
			"client_id":  clientID,
			"plan_type":  sale.PlanType,
			"sold_by":    sale.SoldBy,
			"sold_at":    sale.SoldAt,
			"starts_at":  sale.StartsAt,
			"expires_at": sale.ExpiresAt,
			"notes":      sale.Notes,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim slot %d: %w", slotID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (r *SlotRepositoryImpl) Release(ctx context.Context, slotID, clientID uint, newPassword string) (released bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	res := db.Model(&models.Slot{}).
		Where("id = ? AND client_id = ? AND status = ?", slotID, clientID, models.SlotStatusAssigned).
		Updates(map[string]any{
			"status":     models.SlotStatusAvailable,
			"client_id":  nil,
			"sold_by":    nil,
			"sold_at":    nil,
			"expires_at": nil,
			"notes":      nil,
			"password":   newPassword,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to release slot %d: %w", slotID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (r *SlotRepositoryImpl) ApplyPatch(ctx context.Context, slotID uint, patch models.SlotPatch, mode PatchMode) (err error) {
	updates := map[string]any{"updated_at": utils.UTCNow()}
	if mode == PatchRelease {
		updates["sold_by"] = nil
		updates["sold_at"] = nil
		updates["expires_at"] = nil
		updates["notes"] = nil
		updates["client_id"] = nil
	}
	if patch.SoldBy != nil {
		updates["sold_by"] = *patch.SoldBy
	}
	if patch.SoldAt != nil {
		updates["sold_at"] = *patch.SoldAt
	}
	if patch.StartsAt != nil {
		updates["starts_at"] = *patch.StartsAt
	}
	if patch.ExpiresAt != nil {
		updates["expires_at"] = *patch.ExpiresAt
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if patch.PlanType != nil {
		updates["plan_type"] = *patch.PlanType
	}
	if patch.Password != nil {
		updates["password"] = *patch.Password
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	if err = db.Model(&models.Slot{}).Where("id = ?", slotID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update slot %d: %w", slotID, err)
	}

	return nil
}

func (r *SlotRepositoryImpl) SetPassword(ctx context.Context, slotID uint, password string) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	err = db.Model(&models.Slot{}).Where("id = ?", slotID).
		Updates(map[string]any{"password": password, "updated_at": utils.UTCNow()}).Error
	if err != nil {
		return fmt.Errorf("failed to set password of slot %d: %w", slotID, err)
	}

	return nil
}

func (r *SlotRepositoryImpl) ListByClient(ctx context.Context, clientID uint) ([]*models.Slot, error) {
	db := r.getDB(ctx)

	var rows []*models.Slot
	err := db.Preload("Account").
		Where("client_id = ? AND status = ?", clientID, models.SlotStatusAssigned).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list slots of client %d: %w", clientID, err)
	}

	return rows, nil
}

func (r *SlotRepositoryImpl) ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	db := r.getDB(ctx)

	var ids []uint
	query := db.Model(&models.Slot{}).Where("id > ?", afterID).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to page slot ids: %w", err)
	}

	return ids, nil
}

func toInt64s(ids []uint) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
