package testing

import (
	"context"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/naming"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB     *TestDB
	Scheme naming.Scheme
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db, Scheme: naming.NewScheme(models.DefaultAccountCapacity, "fixtures.test", "fx")}
}

// BuildTestAccount returns account n with every slot available and password "0000"
func (tf *TestFixtures) BuildTestAccount(n int64) (*models.Account, error) {
	start, _ := tf.Scheme.Range(n)
	account := &models.Account{
		UUID:          uuid.New(),
		SequenceIndex: n,
		Email:         tf.Scheme.Email(n),
		Capacity:      tf.Scheme.Capacity,
	}
	for k := 1; k <= tf.Scheme.Capacity; k++ {
		account.Slots = append(account.Slots, models.Slot{
			UUID:       uuid.New(),
			SlotNumber: k,
			Username:   tf.Scheme.Username(start, k),
			Password:   "0000",
			Status:     models.SlotStatusAvailable,
		})
	}
	return account, nil
}

// CreateTestAccount inserts account n directly, bypassing the sequence counter
func (tf *TestFixtures) CreateTestAccount(n int64) (*models.Account, error) {
	account, err := tf.BuildTestAccount(n)
	if err != nil {
		return nil, err
	}
	if err := tf.DB.DB.WithContext(context.Background()).Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create test account %d: %w", n, err)
	}
	return account, nil
}

// CreateTestHistory appends a raw history entry for slotID
func (tf *TestFixtures) CreateTestHistory(slotID uint, action models.SlotHistoryAction) (*models.SlotHistory, error) {
	entry := &models.SlotHistory{
		SlotID:   slotID,
		Action:   action,
		Metadata: []byte(`{"fixture":true}`),
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test history: %w", err)
	}
	return entry, nil
}
