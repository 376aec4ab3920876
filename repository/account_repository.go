// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
	counters SequenceCounterRepository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB, counters SequenceCounterRepository) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
		counters:       counters,
	}
}

func (r *AccountRepositoryImpl) applyFilter(db *gorm.DB, f models.AccountFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.SequenceIndex != nil {
		db = db.Where("sequence_index = ?", *f.SequenceIndex)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Account{}), filter)
	if orderBy == "" {
		orderBy = "sequence_index ASC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return rows, nil
}

func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Account{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *AccountRepositoryImpl) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// CreateNext bumps the account sequence and inserts the account with its slots.
// A failure after the bump rolls the counter back with the rest of the transaction.
func (r *AccountRepositoryImpl) CreateNext(ctx context.Context, build AccountBuilder) (*models.Account, error) {
	var account *models.Account
	err := WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		seq, err := r.counters.Next(txCtx, models.SequenceAccountIndex)
		if err != nil {
			return err
		}

		account, err = build(seq)
		if err != nil {
			return err
		}

		if err := r.getDB(txCtx).Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account %d: %w", seq, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Delete removes the account; slots and their history go with it through the FK cascade
func (r *AccountRepositoryImpl) Delete(ctx context.Context, id uint) (deleted bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer func() { err = finish(db, shouldCommit, err) }()

	res := db.Delete(&models.Account{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete account %d: %w", id, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// Inventory returns every account with slot counts by status, in sequence order
func (r *AccountRepositoryImpl) Inventory(ctx context.Context) ([]*AccountInventory, error) {
	db := r.getDB(ctx)

	var rows []*AccountInventory
	err := db.Raw(`
		SELECT a.id AS account_id,
		       a.sequence_index,
		       a.email,
		       a.capacity,
		       COUNT(s.id) FILTER (WHERE s.status = 'available' AND s.client_id IS NULL) AS available,
		       COUNT(s.id) FILTER (WHERE s.status = 'available' AND s.client_id IS NULL
		           AND NOT EXISTS (SELECT 1 FROM slot_history h WHERE h.slot_id = s.id AND h.action = 'assigned')) AS fresh,
		       COUNT(s.id) FILTER (WHERE s.status = 'assigned') AS assigned,
		       COUNT(s.id) FILTER (WHERE s.status = 'inactive') AS inactive,
		       COUNT(s.id) FILTER (WHERE s.status = 'suspended') AS suspended
		FROM accounts a
		LEFT JOIN slots s ON s.account_id = a.id
		GROUP BY a.id
		ORDER BY a.sequence_index ASC`).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load account inventory: %w", err)
	}

	return rows, nil
}
