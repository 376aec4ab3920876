package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/tv-slot-pool/app/metrics"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/repository"
	"github.com/amirphl/tv-slot-pool/utils"
)

// Release reasons stored in history metadata
const (
	ReleaseReasonClient        = "client_release"
	ReleaseReasonBatchRollback = "batch_rollback"
	ReleaseReasonStatusUpdate  = "status_update"
)

// Availability holds the two availability counts
type Availability struct {
	FreshAvailable int64
	TotalAvailable int64
}

// SlotAllocatorFlow owns every mutation of the slot pool
type SlotAllocatorFlow interface {
	SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error)
	AssignOne(ctx context.Context, clientID uint, sale models.SlotSale) (*models.Slot, error)
	AssignMany(ctx context.Context, clientID uint, quantity int, sale models.SlotSale) ([]*models.Slot, error)
	AssignSlot(ctx context.Context, slotID, clientID uint, sale models.SlotSale) (*models.Slot, error)
	Release(ctx context.Context, clientID uint) (int, error)
	RegeneratePassword(ctx context.Context, slotID uint) (*models.Slot, error)
	SetPasswordManually(ctx context.Context, slotID uint, password string) (*models.Slot, error)
	UpdateSlot(ctx context.Context, slotID uint, patch models.SlotPatch) (*models.Slot, error)
	EnsureCapacity(ctx context.Context, minFresh int) ([]*models.Account, error)
	ComputeAvailability(ctx context.Context) (Availability, error)
	RemoveAccount(ctx context.Context, accountID uint) error
}

type SlotAllocatorFlowImpl struct {
	store  repository.Store
	policy PoolPolicy
	audit  *SlotAuditRecorder
	locker GrowthLocker
	logger *log.Logger
}

func NewSlotAllocatorFlow(store repository.Store, policy PoolPolicy, locker GrowthLocker, logger *log.Logger) SlotAllocatorFlow {
	if locker == nil {
		locker = NewLocalGrowthLocker()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SlotAllocatorFlowImpl{
		store:  store,
		policy: policy,
		audit:  NewSlotAuditRecorder(store.History()),
		locker: locker,
		logger: logger,
	}
}

func (f *SlotAllocatorFlowImpl) SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error) {
	slots, err := f.store.Slots().SelectCandidates(ctx, limit, freshOnly)
	if err != nil {
		return nil, NewBusinessError("SELECT_CANDIDATES_FAILED", "Failed to select candidate slots", err)
	}
	return slots, nil
}

func (f *SlotAllocatorFlowImpl) AssignOne(ctx context.Context, clientID uint, sale models.SlotSale) (*models.Slot, error) {
	if clientID == 0 {
		return nil, NewBusinessError("CLIENT_ID_REQUIRED", "Client ID is required", ErrClientIDRequired)
	}
	if err := validateSale(sale); err != nil {
		return nil, err
	}
	return f.assignOne(ctx, clientID, withSaleDefaults(sale))
}

// candidateWindow is how many fresh candidates one selection reads
const candidateWindow = 16

// assignOne walks fresh candidates in naming order, claiming the first one it wins.
// A lost claim re-reads the fresh set without spending ClaimRetries; only storage
// errors and growth attempts count against it.
func (f *SlotAllocatorFlowImpl) assignOne(ctx context.Context, clientID uint, sale models.SlotSale) (*models.Slot, error) {
	var lastErr error
	failures := 0

	for failures < f.policy.ClaimRetries {
		if err := ctx.Err(); err != nil {
			return nil, NewBusinessError("REQUEST_CANCELLED", "Assignment was cancelled", err)
		}

		candidates, err := f.store.Slots().SelectCandidates(ctx, candidateWindow, true)
		if err != nil {
			failures++
			lastErr = err
			continue
		}

		if len(candidates) == 0 {
			failures++
			if _, err := f.EnsureCapacity(ctx, 1); err != nil {
				lastErr = err
				if IsPoolGrowthLimitReached(err) {
					break
				}
			}
			continue
		}

		for _, candidate := range candidates {
			slot, err := f.claim(ctx, candidate.ID, clientID, sale, false)
			if err == nil {
				metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultClaimed).Inc()
				return slot, nil
			}
			if errors.Is(err, errClaimConflict) {
				metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultConflict).Inc()
				continue
			}
			metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultError).Inc()
			failures++
			lastErr = err
			break
		}
	}

	if lastErr != nil {
		f.logger.Printf("assign for client %d gave up after %d failures: %v", clientID, failures, lastErr)
	}
	metrics.PoolExhaustedTotal.Inc()
	return nil, NewBusinessError("POOL_EXHAUSTED", "No slot could be assigned", ErrPoolExhausted)
}

// claim runs the compare-and-set and its history entry in one transaction.
// With markReuse set, the entry records whether the slot had been assigned before.
func (f *SlotAllocatorFlowImpl) claim(ctx context.Context, slotID, clientID uint, sale models.SlotSale, markReuse bool) (*models.Slot, error) {
	var slot *models.Slot
	err := f.store.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := f.store.Slots().TryClaim(txCtx, slotID, clientID, sale)
		if err != nil {
			return err
		}
		if !ok {
			return errClaimConflict
		}
		metadata := sale.Snapshot(clientID)
		if markReuse {
			reused, err := f.audit.HasBeenAssigned(txCtx, slotID)
			if err != nil {
				return err
			}
			metadata["reassigned"] = reused
		}
		if err := f.audit.Record(txCtx, slotID, models.SlotHistoryActionAssigned, metadata); err != nil {
			return err
		}
		slot, err = f.store.Slots().ByID(txCtx, slotID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

func (f *SlotAllocatorFlowImpl) AssignMany(ctx context.Context, clientID uint, quantity int, sale models.SlotSale) ([]*models.Slot, error) {
	if quantity < 1 || quantity > f.policy.MaxBatchSize {
		return nil, NewBusinessErrorf("INVALID_QUANTITY", "Quantity must be between 1 and %d", ErrInvalidQuantity, f.policy.MaxBatchSize)
	}
	if clientID == 0 {
		return nil, NewBusinessError("CLIENT_ID_REQUIRED", "Client ID is required", ErrClientIDRequired)
	}
	if err := validateSale(sale); err != nil {
		return nil, err
	}
	sale = withSaleDefaults(sale)

	claimed := make([]*models.Slot, 0, quantity)
	for i := 0; i < quantity; i++ {
		slot, err := f.assignOne(ctx, clientID, sale)
		if err != nil {
			f.rollbackBatch(ctx, clientID, claimed)
			if IsPoolExhausted(err) {
				return nil, NewBusinessErrorf("POOL_EXHAUSTED", "Only %d of %d slots could be assigned", ErrPoolExhausted, len(claimed), quantity)
			}
			return nil, err
		}
		claimed = append(claimed, slot)
	}

	return claimed, nil
}

// rollbackBatch releases the slots a failed batch claimed. It ignores
// cancellation of ctx so a cancelled request still leaves no partial batch.
func (f *SlotAllocatorFlowImpl) rollbackBatch(ctx context.Context, clientID uint, claimed []*models.Slot) {
	if len(claimed) == 0 {
		return
	}
	metrics.BatchRollbacksTotal.Inc()
	f.logger.Printf("rolling back batch for client %d: releasing %d slots", clientID, len(claimed))

	ctx = context.WithoutCancel(ctx)
	for _, slot := range claimed {
		if _, err := f.releaseSlot(ctx, slot.ID, clientID, ReleaseReasonBatchRollback); err != nil {
			f.logger.Printf("batch rollback failed to release slot %d of client %d: %v", slot.ID, clientID, err)
		}
	}
}

// releaseSlot returns one assigned slot of clientID to the pool with a new password
func (f *SlotAllocatorFlowImpl) releaseSlot(ctx context.Context, slotID, clientID uint, reason string) (bool, error) {
	password, err := f.policy.GeneratePassword()
	if err != nil {
		return false, err
	}

	released := false
	err = f.store.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := f.store.Slots().Release(txCtx, slotID, clientID, password)
		if err != nil || !ok {
			return err
		}
		released = true
		return f.audit.Record(txCtx, slotID, models.SlotHistoryActionReleased, models.HistoryMetadata{
			"client_id": clientID,
			"reason":    reason,
		})
	})
	if err != nil {
		return false, err
	}
	if released {
		metrics.SlotsReleasedTotal.WithLabelValues(reason).Inc()
	}
	return released, nil
}

func (f *SlotAllocatorFlowImpl) AssignSlot(ctx context.Context, slotID, clientID uint, sale models.SlotSale) (*models.Slot, error) {
	if clientID == 0 {
		return nil, NewBusinessError("CLIENT_ID_REQUIRED", "Client ID is required", ErrClientIDRequired)
	}
	if err := validateSale(sale); err != nil {
		return nil, err
	}

	existing, err := f.store.Slots().ByID(ctx, slotID)
	if err != nil {
		return nil, NewBusinessError("SLOT_LOOKUP_FAILED", "Failed to load slot", err)
	}
	if existing == nil {
		return nil, NewBusinessError("SLOT_NOT_FOUND", "Slot not found", ErrSlotNotFound)
	}

	slot, err := f.claim(ctx, slotID, clientID, withSaleDefaults(sale), true)
	if err != nil {
		if errors.Is(err, errClaimConflict) {
			metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultConflict).Inc()
			return nil, NewBusinessError("SLOT_NOT_AVAILABLE", "Slot is not available", ErrSlotNotAvailable)
		}
		metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultError).Inc()
		return nil, NewBusinessError("SLOT_ASSIGN_FAILED", "Failed to assign slot", err)
	}
	metrics.SlotClaimsTotal.WithLabelValues(metrics.ClaimResultClaimed).Inc()
	return slot, nil
}

func (f *SlotAllocatorFlowImpl) Release(ctx context.Context, clientID uint) (int, error) {
	if clientID == 0 {
		return 0, NewBusinessError("CLIENT_ID_REQUIRED", "Client ID is required", ErrClientIDRequired)
	}

	slots, err := f.store.Slots().ListByClient(ctx, clientID)
	if err != nil {
		return 0, NewBusinessError("SLOT_RELEASE_FAILED", "Failed to list client slots", err)
	}

	released := 0
	for _, slot := range slots {
		ok, err := f.releaseSlot(ctx, slot.ID, clientID, ReleaseReasonClient)
		if err != nil {
			return released, NewBusinessErrorf("SLOT_RELEASE_FAILED", "Failed to release slot %d", err, slot.ID)
		}
		if ok {
			released++
		}
	}

	return released, nil
}

func (f *SlotAllocatorFlowImpl) RegeneratePassword(ctx context.Context, slotID uint) (*models.Slot, error) {
	password, err := f.policy.GeneratePassword()
	if err != nil {
		return nil, NewBusinessError("PASSWORD_GENERATION_FAILED", "Failed to generate password", err)
	}

	slot, err := f.setPassword(ctx, slotID, password, models.SlotHistoryActionPasswordRegenerated, models.HistoryMetadata{
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	metrics.PasswordsRegeneratedTotal.Inc()
	return slot, nil
}

func (f *SlotAllocatorFlowImpl) SetPasswordManually(ctx context.Context, slotID uint, password string) (*models.Slot, error) {
	if err := f.policy.ValidatePassword(password); err != nil {
		return nil, NewBusinessErrorf("INVALID_PASSWORD", "Password must be exactly %d digits", err, f.policy.PasswordDigits)
	}

	return f.setPassword(ctx, slotID, password, models.SlotHistoryActionUpdated, models.HistoryMetadata{
		"password": password,
		"source":   "manual",
	})
}

func (f *SlotAllocatorFlowImpl) setPassword(ctx context.Context, slotID uint, password string, action models.SlotHistoryAction, metadata models.HistoryMetadata) (*models.Slot, error) {
	var slot *models.Slot
	err := f.store.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := f.store.Slots().ByIDForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrSlotNotFound
		}
		if err := f.store.Slots().SetPassword(txCtx, slotID, password); err != nil {
			return err
		}
		if err := f.audit.Record(txCtx, slotID, action, metadata); err != nil {
			return err
		}
		slot, err = f.store.Slots().ByID(txCtx, slotID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, NewBusinessError("SLOT_NOT_FOUND", "Slot not found", ErrSlotNotFound)
		}
		return nil, NewBusinessError("SLOT_PASSWORD_UPDATE_FAILED", "Failed to update slot password", err)
	}
	return slot, nil
}

func (f *SlotAllocatorFlowImpl) UpdateSlot(ctx context.Context, slotID uint, patch models.SlotPatch) (*models.Slot, error) {
	if patch.IsEmpty() {
		return nil, NewBusinessError("EMPTY_PATCH", "At least one field must be provided for update", ErrEmptyPatch)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, NewBusinessErrorf("INVALID_SLOT_STATUS", "Unknown slot status %q", ErrInvalidSlotStatus, string(*patch.Status))
	}
	if patch.PlanType != nil && !patch.PlanType.Valid() {
		return nil, NewBusinessErrorf("INVALID_PLAN_TYPE", "Unknown plan type %q", ErrInvalidPlanType, string(*patch.PlanType))
	}
	if patch.Password != nil {
		if err := f.policy.ValidatePassword(*patch.Password); err != nil {
			return nil, NewBusinessErrorf("INVALID_PASSWORD", "Password must be exactly %d digits", err, f.policy.PasswordDigits)
		}
	}

	var updated *models.Slot
	released := false
	err := f.store.WithTransaction(ctx, func(txCtx context.Context) error {
		slot, err := f.store.Slots().ByIDForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return ErrSlotNotFound
		}

		mode := repository.PatchKeepOwner
		if patch.Status != nil {
			next := *patch.Status
			if next == models.SlotStatusAssigned && slot.Status != models.SlotStatusAssigned {
				return ErrStatusTransitionNotAllowed
			}
			if next != models.SlotStatusAssigned {
				if slot.ClientID != nil {
					mode = repository.PatchRelease
				}
				if patch.Password == nil {
					password, err := f.policy.GeneratePassword()
					if err != nil {
						return err
					}
					patch.Password = &password
				}
			}
		}

		if err := f.store.Slots().ApplyPatch(txCtx, slotID, patch, mode); err != nil {
			return err
		}

		metadata := patch.Snapshot()
		if mode == repository.PatchRelease {
			metadata["previous_client_id"] = *slot.ClientID
			metadata["reason"] = ReleaseReasonStatusUpdate
		}
		if err := f.audit.Record(txCtx, slotID, models.SlotHistoryActionUpdated, metadata); err != nil {
			return err
		}
		released = mode == repository.PatchRelease

		updated, err = f.store.Slots().ByID(txCtx, slotID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotNotFound):
			return nil, NewBusinessError("SLOT_NOT_FOUND", "Slot not found", ErrSlotNotFound)
		case errors.Is(err, ErrStatusTransitionNotAllowed):
			return nil, NewBusinessError("STATUS_TRANSITION_NOT_ALLOWED", "Slots become assigned only by claiming them", ErrStatusTransitionNotAllowed)
		}
		return nil, NewBusinessError("SLOT_UPDATE_FAILED", "Failed to update slot", err)
	}
	if released {
		metrics.SlotsReleasedTotal.WithLabelValues(ReleaseReasonStatusUpdate).Inc()
	}

	return updated, nil
}

func (f *SlotAllocatorFlowImpl) EnsureCapacity(ctx context.Context, minFresh int) ([]*models.Account, error) {
	if minFresh <= 0 {
		return nil, nil
	}

	release, err := f.locker.Acquire(ctx)
	if err != nil {
		if IsGrowthLockBusy(err) {
			return nil, NewBusinessError("POOL_GROWTH_LOCK_BUSY", "Another instance is growing the pool", err)
		}
		return nil, NewBusinessError("POOL_GROWTH_LOCK_FAILED", "Failed to acquire growth lock", err)
	}
	defer release()

	start := time.Now()
	defer func() { metrics.GrowthDuration.Observe(time.Since(start).Seconds()) }()

	var created []*models.Account
	for {
		fresh, err := f.store.Slots().CountAvailable(ctx, true)
		if err != nil {
			return created, NewBusinessError("POOL_GROWTH_FAILED", "Failed to count fresh slots", err)
		}
		if fresh >= int64(minFresh) {
			break
		}

		if f.policy.MaxAccounts > 0 {
			total, err := f.store.Accounts().Count(ctx, models.AccountFilter{})
			if err != nil {
				return created, NewBusinessError("POOL_GROWTH_FAILED", "Failed to count accounts", err)
			}
			if total >= int64(f.policy.MaxAccounts) {
				return created, NewBusinessErrorf("POOL_GROWTH_LIMIT_REACHED", "Pool is capped at %d accounts", ErrPoolGrowthLimitReached, f.policy.MaxAccounts)
			}
		}

		account, err := f.store.Accounts().CreateNext(ctx, f.policy.BuildAccount)
		if err != nil {
			return created, NewBusinessError("POOL_GROWTH_FAILED", "Failed to create account", err)
		}
		metrics.AccountsCreatedTotal.Inc()
		f.logger.Printf("pool grew: account %d (%s) with %d slots", account.SequenceIndex, account.Email, len(account.Slots))
		created = append(created, account)
	}

	if len(created) > 0 {
		if _, err := f.ComputeAvailability(ctx); err != nil {
			f.logger.Printf("failed to refresh availability after growth: %v", err)
		}
	}
	return created, nil
}

func (f *SlotAllocatorFlowImpl) ComputeAvailability(ctx context.Context) (Availability, error) {
	fresh, err := f.store.Slots().CountAvailable(ctx, true)
	if err != nil {
		return Availability{}, NewBusinessError("AVAILABILITY_FAILED", "Failed to count fresh slots", err)
	}
	total, err := f.store.Slots().CountAvailable(ctx, false)
	if err != nil {
		return Availability{}, NewBusinessError("AVAILABILITY_FAILED", "Failed to count available slots", err)
	}
	metrics.SetAvailability(fresh, total)
	return Availability{FreshAvailable: fresh, TotalAvailable: total}, nil
}

func (f *SlotAllocatorFlowImpl) RemoveAccount(ctx context.Context, accountID uint) error {
	deleted, err := f.store.Accounts().Delete(ctx, accountID)
	if err != nil {
		return NewBusinessError("ACCOUNT_DELETE_FAILED", "Failed to delete account", err)
	}
	if !deleted {
		return NewBusinessError("ACCOUNT_NOT_FOUND", "Account not found", ErrAccountNotFound)
	}
	f.logger.Printf("account %d removed with its slots", accountID)
	return nil
}

func validateSale(sale models.SlotSale) error {
	if sale.PlanType != nil && !sale.PlanType.Valid() {
		return NewBusinessError("INVALID_PLAN_TYPE", fmt.Sprintf("Unknown plan type %q", string(*sale.PlanType)), ErrInvalidPlanType)
	}
	return nil
}

func withSaleDefaults(sale models.SlotSale) models.SlotSale {
	if sale.SoldAt == nil {
		sale.SoldAt = utils.UTCNowPtr()
	}
	return sale
}
