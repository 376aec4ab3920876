// Package scheduler runs the slot pool's one-shot startup tasks
package scheduler

import (
	"context"
	"fmt"
	"log"

	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/repository"
	"golang.org/x/time/rate"
)

// rotationPageSize is how many slot ids are read per page while rotating
const rotationPageSize = 200

// BootstrapActor names the startup tasks in slot history
const BootstrapActor = "system:bootstrap"

// BootstrapReport summarizes one bootstrap run
type BootstrapReport struct {
	AccountsCreated  int
	PasswordsRotated int
	RotationFailures int
}

// PoolBootstrap warms the pool up and rotates every slot password once at process start
type PoolBootstrap struct {
	allocator businessflow.SlotAllocatorFlow
	slots     repository.SlotRepository
	cfg       config.PoolConfig
	logger    *log.Logger
}

func NewPoolBootstrap(allocator businessflow.SlotAllocatorFlow, slots repository.SlotRepository, cfg config.PoolConfig, logger *log.Logger) *PoolBootstrap {
	if logger == nil {
		logger = log.Default()
	}
	return &PoolBootstrap{
		allocator: allocator,
		slots:     slots,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the enabled startup tasks in order: warm-up, then rotation.
// A failed warm-up aborts the run; individual rotation failures are counted and logged.
func (b *PoolBootstrap) Run(ctx context.Context) (BootstrapReport, error) {
	var report BootstrapReport
	ctx = businessflow.WithActor(ctx, BootstrapActor)

	if b.cfg.WarmupOnBoot {
		created, err := b.Warmup(ctx, b.cfg.MinFreshSlots)
		if err != nil {
			return report, err
		}
		report.AccountsCreated = created
	}

	if b.cfg.RotatePasswordsOnBoot {
		rotated, failures, err := b.RotatePasswords(ctx)
		report.PasswordsRotated = rotated
		report.RotationFailures = failures
		if err != nil {
			return report, err
		}
	}

	b.logger.Printf("pool bootstrap finished: accounts_created=%d passwords_rotated=%d rotation_failures=%d",
		report.AccountsCreated, report.PasswordsRotated, report.RotationFailures)
	return report, nil
}

// Warmup grows the pool until minFresh fresh slots exist and returns how many accounts it created
func (b *PoolBootstrap) Warmup(ctx context.Context, minFresh int) (int, error) {
	if minFresh <= 0 {
		return 0, nil
	}
	created, err := b.allocator.EnsureCapacity(ctx, minFresh)
	if err != nil {
		return 0, fmt.Errorf("pool warm-up failed: %w", err)
	}
	if len(created) > 0 {
		b.logger.Printf("pool warm-up created %d account(s), first=%s", len(created), created[0].Email)
	}
	return len(created), nil
}

// RotatePasswords regenerates the password of every slot, throttled to RotationRate slots per second.
// Slots deleted while the rotation runs are skipped.
func (b *PoolBootstrap) RotatePasswords(ctx context.Context) (int, int, error) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if b.cfg.RotationRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.cfg.RotationRate), b.cfg.RotationRate)
	}

	var rotated, failures int
	var afterID uint
	for {
		ids, err := b.slots.ListIDsAfter(ctx, afterID, rotationPageSize)
		if err != nil {
			return rotated, failures, fmt.Errorf("list slots for rotation: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return rotated, failures, fmt.Errorf("password rotation interrupted: %w", err)
			}
			if _, err := b.allocator.RegeneratePassword(ctx, id); err != nil {
				if businessflow.IsSlotNotFound(err) {
					continue
				}
				failures++
				b.logger.Printf("password rotation failed for slot %d: %v", id, err)
				continue
			}
			rotated++
		}
		afterID = ids[len(ids)-1]
	}

	return rotated, failures, nil
}
