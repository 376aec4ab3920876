// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"gorm.io/gorm"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository on a counter table
type SequenceCounterRepositoryImpl struct {
	DB *gorm.DB
}

// NewSequenceCounterRepository creates a new sequence counter repository
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{DB: db}
}

// Next increments the named counter and returns the new value. The upsert takes a
// row lock, so concurrent callers are serialized by the database.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string) (int64, error) {
	db := dbFromContext(ctx, r.DB)

	var value int64
	err := db.Raw(`
		INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value`, name).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", name, err)
	}

	return value, nil
}

// Current returns the last value handed out, or 0 when the counter was never used
func (r *SequenceCounterRepositoryImpl) Current(ctx context.Context, name string) (int64, error) {
	db := dbFromContext(ctx, r.DB)

	var counter models.SequenceCounter
	err := db.Where("name = ?", name).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", name, err)
	}

	return counter.LastValue, nil
}
