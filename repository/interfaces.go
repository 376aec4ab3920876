// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/tv-slot-pool/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor runs fn inside a single storage transaction. Nested calls join the outer one.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountBuilder produces the account (with its slots) for a freshly allocated sequence index
type AccountBuilder func(sequenceIndex int64) (*models.Account, error)

// AccountInventory is a per-account projection with slot counts by status
type AccountInventory struct {
	AccountID     uint   `json:"account_id"`
	SequenceIndex int64  `json:"sequence_index"`
	Email         string `json:"email"`
	Capacity      int    `json:"capacity"`
	Available     int64  `json:"available"`
	Fresh         int64  `json:"fresh"`
	Assigned      int64  `json:"assigned"`
	Inactive      int64  `json:"inactive"`
	Suspended     int64  `json:"suspended"`
}

// AccountRepository defines operations for pool accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	// CreateNext allocates the next sequence index and persists the built account
	// together with its slots in one transaction.
	CreateNext(ctx context.Context, build AccountBuilder) (*models.Account, error)
	Delete(ctx context.Context, id uint) (bool, error)
	Inventory(ctx context.Context) ([]*AccountInventory, error)
}

// SlotRepository defines operations for slots
type SlotRepository interface {
	Repository[models.Slot, models.SlotFilter]
	ByIDForUpdate(ctx context.Context, id uint) (*models.Slot, error)
	// SelectCandidates returns available unassigned slots ordered by account
	// sequence then slot number. limit <= 0 means no limit.
	SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error)
	CountAvailable(ctx context.Context, freshOnly bool) (int64, error)
	// TryClaim assigns the slot only if it is still available and unassigned.
	// It reports false without error when another caller won.
	TryClaim(ctx context.Context, slotID, clientID uint, sale models.SlotSale) (bool, error)
	// Release returns an assigned slot of clientID to the pool with a new password.
	Release(ctx context.Context, slotID, clientID uint, newPassword string) (bool, error)
	// ApplyPatch clears the fields mode names, then writes the patch over them.
	ApplyPatch(ctx context.Context, slotID uint, patch models.SlotPatch, mode PatchMode) error
	SetPassword(ctx context.Context, slotID uint, password string) error
	ListByClient(ctx context.Context, clientID uint) ([]*models.Slot, error)
	// ListIDsAfter pages through slot ids in ascending order
	ListIDsAfter(ctx context.Context, afterID uint, limit int) ([]uint, error)
}

// PatchMode selects what ApplyPatch clears before writing the patch
type PatchMode int

const (
	// PatchKeepOwner leaves ownership untouched
	PatchKeepOwner PatchMode = iota
	// PatchRelease clears the client and the sale fields, as Release does
	PatchRelease
)

// SlotHistoryRepository defines operations for the slot audit trail
type SlotHistoryRepository interface {
	Save(ctx context.Context, entry *models.SlotHistory) error
	ListBySlot(ctx context.Context, slotID uint) ([]*models.SlotHistory, error)
	ListBySlots(ctx context.Context, slotIDs []uint) ([]*models.SlotHistory, error)
	ExistsAction(ctx context.Context, slotID uint, action models.SlotHistoryAction) (bool, error)
}

// SequenceCounterRepository defines operations for named monotonic counters
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
}

// Store bundles every pool repository behind one backing implementation
type Store interface {
	Transactor
	Accounts() AccountRepository
	Slots() SlotRepository
	History() SlotHistoryRepository
	Counters() SequenceCounterRepository
}
