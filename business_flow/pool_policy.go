package businessflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/naming"
	"github.com/google/uuid"
)

// PoolPolicy is the immutable pool configuration the allocator works against
type PoolPolicy struct {
	Scheme          naming.Scheme
	AccountCapacity int
	MinFreshSlots   int
	MaxBatchSize    int
	PasswordDigits  int
	ClaimRetries    int
	MaxAccounts     int
	GrowthLockTTL   time.Duration
	GrowthLockWait  time.Duration
}

// NewPoolPolicy derives the policy from configuration
func NewPoolPolicy(cfg config.PoolConfig) PoolPolicy {
	return PoolPolicy{
		Scheme:          naming.NewScheme(cfg.AccountCapacity, cfg.EmailDomain, cfg.UsernamePrefix),
		AccountCapacity: cfg.AccountCapacity,
		MinFreshSlots:   cfg.MinFreshSlots,
		MaxBatchSize:    cfg.MaxBatchSize,
		PasswordDigits:  cfg.PasswordDigits,
		ClaimRetries:    cfg.ClaimRetries,
		MaxAccounts:     cfg.MaxAccounts,
		GrowthLockTTL:   cfg.GrowthLockTTL,
		GrowthLockWait:  cfg.GrowthLockWaitInterval,
	}
}

var ten = big.NewInt(10)

// GeneratePassword returns PasswordDigits uniformly random decimal digits.
// Leading zeros are kept.
func (p PoolPolicy) GeneratePassword() (string, error) {
	var b strings.Builder
	b.Grow(p.PasswordDigits)
	for i := 0; i < p.PasswordDigits; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate password digit: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// ValidatePassword checks the password is exactly PasswordDigits decimal digits
func (p PoolPolicy) ValidatePassword(password string) error {
	if len(password) != p.PasswordDigits {
		return ErrInvalidPassword
	}
	for i := 0; i < len(password); i++ {
		if password[i] < '0' || password[i] > '9' {
			return ErrInvalidPassword
		}
	}
	return nil
}

// BuildAccount materializes account n with its full set of available slots
func (p PoolPolicy) BuildAccount(n int64) (*models.Account, error) {
	start, _ := p.Scheme.Range(n)
	account := &models.Account{
		UUID:          uuid.New(),
		SequenceIndex: n,
		Email:         p.Scheme.Email(n),
		Capacity:      p.AccountCapacity,
		Slots:         make([]models.Slot, 0, p.AccountCapacity),
	}
	for k := 1; k <= p.AccountCapacity; k++ {
		password, err := p.GeneratePassword()
		if err != nil {
			return nil, err
		}
		account.Slots = append(account.Slots, models.Slot{
			UUID:       uuid.New(),
			SlotNumber: k,
			Username:   p.Scheme.Username(start, k),
			Password:   password,
			Status:     models.SlotStatusAvailable,
		})
	}
	return account, nil
}
