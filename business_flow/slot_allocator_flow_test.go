package businessflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/tv-slot-pool/config"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/repository"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyOf(t *testing.T, p *testPool, slotID uint) []models.HistoryMetadata {
	t.Helper()
	entries, err := p.store.History().ListBySlot(context.Background(), slotID)
	require.NoError(t, err)
	out := make([]models.HistoryMetadata, 0, len(entries))
	for _, e := range entries {
		m, err := models.DecodeHistoryMetadata(e.Metadata)
		require.NoError(t, err)
		m["_action"] = string(e.Action)
		out = append(out, m)
	}
	return out
}

func TestAssignOneGrowsEmptyPool(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	plan := models.PlanTypePremium
	slot, err := p.allocator.AssignOne(ctx, 42, models.SlotSale{PlanType: &plan, SoldBy: utils.ToPtr("alice")})
	require.NoError(t, err)
	require.NotNil(t, slot)

	assert.Equal(t, models.SlotStatusAssigned, slot.Status)
	require.NotNil(t, slot.ClientID)
	assert.Equal(t, uint(42), *slot.ClientID)
	assert.Equal(t, 1, slot.SlotNumber)
	assert.Equal(t, "tv1", slot.Username)
	assert.NotNil(t, slot.SoldAt, "sold_at defaults to now")
	require.NotNil(t, slot.PlanType)
	assert.Equal(t, models.PlanTypePremium, *slot.PlanType)

	accounts, err := p.store.Accounts().Count(ctx, models.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), accounts)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "assigned", history[0]["_action"])
	assert.Equal(t, float64(42), history[0]["client_id"])
	assert.Equal(t, "premium", history[0]["plan_type"])
	assert.Equal(t, "alice", history[0]["sold_by"])
}

func TestAssignOneValidation(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.AssignOne(ctx, 0, models.SlotSale{})
	assert.True(t, IsClientIDRequired(err))

	bad := models.PlanType("gold")
	_, err = p.allocator.AssignOne(ctx, 1, models.SlotSale{PlanType: &bad})
	assert.True(t, IsInvalidPlanType(err))
}

func TestAssignOneNoDoubleClaimUnderConcurrency(t *testing.T) {
	const accounts = 8
	const slots = accounts * 8

	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.MaxAccounts = accounts
	})
	ctx := context.Background()

	created, err := p.allocator.EnsureCapacity(ctx, slots)
	require.NoError(t, err)
	require.Len(t, created, accounts)

	var wg sync.WaitGroup
	results := make([]*models.Slot, slots)
	errs := make([]error, slots)
	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.allocator.AssignOne(ctx, uint(i+1), models.SlotSale{})
		}(i)
	}
	wg.Wait()

	seen := make(map[uint]uint, slots)
	for i := 0; i < slots; i++ {
		require.NoError(t, errs[i], "caller %d", i+1)
		owner, dup := seen[results[i].ID]
		require.False(t, dup, "slot %d claimed by clients %d and %d", results[i].ID, owner, i+1)
		seen[results[i].ID] = uint(i + 1)
	}

	for slotID, client := range seen {
		stored, err := p.store.Slots().ByID(ctx, slotID)
		require.NoError(t, err)
		require.NotNil(t, stored.ClientID)
		assert.Equal(t, client, *stored.ClientID)

		history := historyOf(t, p, slotID)
		require.Len(t, history, 1, "exactly one claim per slot")
	}

	_, err = p.allocator.AssignOne(ctx, 999, models.SlotSale{})
	assert.True(t, IsPoolExhausted(err))

	total, err := p.store.Accounts().Count(ctx, models.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(accounts), total)
}

// lockstepSlots makes the first n candidate selections wait for each other,
// so every caller works from the same stale candidate list.
type lockstepSlots struct {
	repository.SlotRepository
	calls atomic.Int32
	n     int32
	ready sync.WaitGroup
}

func newLockstepSlots(slots repository.SlotRepository, n int) *lockstepSlots {
	l := &lockstepSlots{SlotRepository: slots, n: int32(n)}
	l.ready.Add(n)
	return l
}

func (l *lockstepSlots) SelectCandidates(ctx context.Context, limit int, freshOnly bool) ([]*models.Slot, error) {
	if l.calls.Add(1) <= l.n {
		l.ready.Done()
		l.ready.Wait()
	}
	return l.SlotRepository.SelectCandidates(ctx, limit, freshOnly)
}

type lockstepStore struct {
	repository.Store
	slots *lockstepSlots
}

func (s *lockstepStore) Slots() repository.SlotRepository {
	return s.slots
}

func TestAssignOneSurvivesStaleCandidates(t *testing.T) {
	const accounts = 8
	const callers = 32

	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.MaxAccounts = accounts
	})
	ctx := context.Background()
	require.Equal(t, 5, p.policy.ClaimRetries)

	_, err := p.allocator.EnsureCapacity(ctx, accounts*8)
	require.NoError(t, err)

	store := &lockstepStore{Store: p.store, slots: newLockstepSlots(p.store.Slots(), callers)}
	allocator := NewSlotAllocatorFlow(store, p.policy, NewLocalGrowthLocker(), utils.DiscardLogger())

	var wg sync.WaitGroup
	results := make([]*models.Slot, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = allocator.AssignOne(ctx, uint(i+1), models.SlotSale{})
		}(i)
	}
	wg.Wait()

	seen := make(map[uint]bool, callers)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i+1)
		require.False(t, seen[results[i].ID], "slot %d claimed twice", results[i].ID)
		seen[results[i].ID] = true
	}

	fresh, err := p.store.Slots().CountAvailable(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(accounts*8-callers), fresh)
}

func TestAssignOneConcurrentGrowthCreatesDistinctAccounts(t *testing.T) {
	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.ClaimRetries = 64
	})
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.allocator.AssignOne(ctx, uint(i+1), models.SlotSale{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	accounts, err := p.store.Accounts().ByFilter(ctx, models.AccountFilter{}, "", 0, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(accounts), 3)
	for i, a := range accounts {
		assert.Equal(t, int64(i+1), a.SequenceIndex)
		assert.Equal(t, p.policy.Scheme.Email(a.SequenceIndex), a.Email)
	}
}

func TestFreshAndTotalAvailabilityAfterRelease(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.EnsureCapacity(ctx, 8)
	require.NoError(t, err)

	before, err := p.allocator.ComputeAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, Availability{FreshAvailable: 8, TotalAvailable: 8}, before)

	first, err := p.allocator.AssignOne(ctx, 7, models.SlotSale{})
	require.NoError(t, err)

	released, err := p.allocator.Release(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	after, err := p.allocator.ComputeAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), after.FreshAvailable)
	assert.Equal(t, int64(8), after.TotalAvailable)

	// released slots are not handed out again automatically
	next, err := p.allocator.AssignOne(ctx, 8, models.SlotSale{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, 2, next.SlotNumber)
}

func TestReleaseClearsSaleAndRotatesPassword(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 3, models.SlotSale{
		SoldBy:    utils.ToPtr("bob"),
		ExpiresAt: utils.ToPtr(time.Now().Add(30 * 24 * time.Hour)),
		Notes:     utils.ToPtr("vip"),
	})
	require.NoError(t, err)

	_, err = p.allocator.Release(ctx, 3)
	require.NoError(t, err)

	stored, err := p.store.Slots().ByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAvailable, stored.Status)
	assert.Nil(t, stored.ClientID)
	assert.Nil(t, stored.SoldBy)
	assert.Nil(t, stored.SoldAt)
	assert.Nil(t, stored.ExpiresAt)
	assert.Nil(t, stored.Notes)
	assert.Regexp(t, fourDigits, stored.Password)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "released", history[0]["_action"])
	assert.Equal(t, ReleaseReasonClient, history[0]["reason"])
	assert.Equal(t, "assigned", history[1]["_action"])
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.AssignMany(ctx, 5, 2, models.SlotSale{})
	require.NoError(t, err)

	released, err := p.allocator.Release(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	historyBefore, err := p.store.History().ListBySlots(ctx, []uint{1, 2})
	require.NoError(t, err)
	availBefore, err := p.allocator.ComputeAvailability(ctx)
	require.NoError(t, err)

	released, err = p.allocator.Release(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, released)

	historyAfter, err := p.store.History().ListBySlots(ctx, []uint{1, 2})
	require.NoError(t, err)
	availAfter, err := p.allocator.ComputeAvailability(ctx)
	require.NoError(t, err)

	assert.Len(t, historyAfter, len(historyBefore))
	assert.Equal(t, availBefore, availAfter)

	_, err = p.allocator.Release(ctx, 0)
	assert.True(t, IsClientIDRequired(err))
}

func TestAssignManyRollsBackPartialBatch(t *testing.T) {
	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.MaxAccounts = 1
	})
	ctx := context.Background()

	first, err := p.allocator.AssignMany(ctx, 1, 5, models.SlotSale{})
	require.NoError(t, err)
	require.Len(t, first, 5)

	_, err = p.allocator.AssignMany(ctx, 2, 5, models.SlotSale{})
	require.Error(t, err)
	assert.True(t, IsPoolExhausted(err))

	owned, err := p.store.Slots().ListByClient(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, owned)

	rolledBack := []uint{6, 7, 8}
	for _, id := range rolledBack {
		slot, err := p.store.Slots().ByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.SlotStatusAvailable, slot.Status)
		assert.Nil(t, slot.ClientID)

		history := historyOf(t, p, id)
		require.Len(t, history, 2)
		assert.Equal(t, "released", history[0]["_action"])
		assert.Equal(t, ReleaseReasonBatchRollback, history[0]["reason"])
		assert.Equal(t, float64(2), history[0]["client_id"])
	}

	ownedFirst, err := p.store.Slots().ListByClient(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, ownedFirst, 5, "other clients are untouched")

	avail, err := p.allocator.ComputeAvailability(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), avail.FreshAvailable)
	assert.Equal(t, int64(3), avail.TotalAvailable)
}

func TestAssignManyRollsBackOnCancelledContext(t *testing.T) {
	p := newTestPool(t, nil)
	_, err := p.allocator.EnsureCapacity(context.Background(), 8)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.allocator.AssignMany(ctx, 9, 3, models.SlotSale{})
	require.ErrorIs(t, err, context.Canceled)

	owned, err := p.store.Slots().ListByClient(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestAssignManyQuantity(t *testing.T) {
	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.MaxBatchSize = 10
	})
	ctx := context.Background()

	for _, q := range []int{0, -1, 11} {
		_, err := p.allocator.AssignMany(ctx, 1, q, models.SlotSale{})
		assert.True(t, IsInvalidQuantity(err), "quantity %d", q)
	}

	slots, err := p.allocator.AssignMany(ctx, 1, 10, models.SlotSale{})
	require.NoError(t, err)
	assert.Len(t, slots, 10)

	accounts, err := p.store.Accounts().Count(ctx, models.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), accounts)
}

func TestAssignSlotPicksReleasedSlot(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 1, models.SlotSale{})
	require.NoError(t, err)

	_, err = p.allocator.AssignSlot(ctx, slot.ID, 2, models.SlotSale{})
	assert.True(t, IsSlotNotAvailable(err))

	_, err = p.allocator.Release(ctx, 1)
	require.NoError(t, err)

	picked, err := p.allocator.AssignSlot(ctx, slot.ID, 2, models.SlotSale{})
	require.NoError(t, err)
	require.NotNil(t, picked.ClientID)
	assert.Equal(t, uint(2), *picked.ClientID)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 3)
	assert.Equal(t, "assigned", history[0]["_action"])
	assert.Equal(t, true, history[0]["reassigned"])
	_, marked := history[2]["reassigned"]
	assert.False(t, marked)

	fresh, err := p.allocator.AssignSlot(ctx, slot.ID+1, 3, models.SlotSale{})
	require.NoError(t, err)
	assert.Equal(t, false, historyOf(t, p, fresh.ID)[0]["reassigned"])

	_, err = p.allocator.AssignSlot(ctx, 9999, 2, models.SlotSale{})
	assert.True(t, IsSlotNotFound(err))
}

func TestRegeneratePasswordRecordsHistory(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.EnsureCapacity(ctx, 1)
	require.NoError(t, err)

	slot, err := p.allocator.RegeneratePassword(ctx, 1)
	require.NoError(t, err)
	assert.Regexp(t, fourDigits, slot.Password)

	history := historyOf(t, p, 1)
	require.Len(t, history, 1)
	assert.Equal(t, "password_regenerated", history[0]["_action"])
	assert.Equal(t, slot.Password, history[0]["password"])

	_, err = p.allocator.RegeneratePassword(ctx, 404)
	assert.True(t, IsSlotNotFound(err))
}

func TestSetPasswordManually(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := WithActor(context.Background(), "admin@example.com")

	_, err := p.allocator.EnsureCapacity(ctx, 1)
	require.NoError(t, err)

	_, err = p.allocator.SetPasswordManually(ctx, 1, "12a4")
	assert.True(t, IsInvalidPassword(err))

	slot, err := p.allocator.SetPasswordManually(ctx, 1, "0007")
	require.NoError(t, err)
	assert.Equal(t, "0007", slot.Password)

	history := historyOf(t, p, 1)
	require.Len(t, history, 1)
	assert.Equal(t, "updated", history[0]["_action"])
	assert.Equal(t, "manual", history[0]["source"])
	assert.Equal(t, "admin@example.com", history[0]["actor"])
}

func TestUpdateSlotDemotionKeepsPasswordFormat(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 11, models.SlotSale{})
	require.NoError(t, err)

	inactive := models.SlotStatusInactive
	updated, err := p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{Status: &inactive})
	require.NoError(t, err)

	assert.Equal(t, models.SlotStatusInactive, updated.Status)
	assert.Nil(t, updated.ClientID)
	assert.Regexp(t, fourDigits, updated.Password)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "updated", history[0]["_action"])
	assert.Equal(t, "inactive", history[0]["status"])
	assert.Equal(t, float64(11), history[0]["previous_client_id"])
	assert.Regexp(t, fourDigits, history[0]["password"])

	owned, err := p.store.Slots().ListByClient(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, owned)

	available := models.SlotStatusAvailable
	updated, err = p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{Status: &available, Password: utils.ToPtr("4321")})
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAvailable, updated.Status)
	assert.Equal(t, "4321", updated.Password)
}

func TestUpdateSlotToAvailableReleasesSlot(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 21, models.SlotSale{
		SoldBy:    utils.ToPtr("bob"),
		ExpiresAt: utils.ToPtr(time.Now().Add(24 * time.Hour)),
		Notes:     utils.ToPtr("vip client"),
	})
	require.NoError(t, err)
	require.NotNil(t, slot.SoldAt)

	available := models.SlotStatusAvailable
	updated, err := p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{
		Status:   &available,
		PlanType: utils.ToPtr(models.PlanType("essential")),
	})
	require.NoError(t, err)

	assert.Equal(t, models.SlotStatusAvailable, updated.Status)
	assert.Nil(t, updated.ClientID)
	assert.Nil(t, updated.SoldBy)
	assert.Nil(t, updated.SoldAt)
	assert.Nil(t, updated.ExpiresAt)
	assert.Nil(t, updated.Notes)
	require.NotNil(t, updated.PlanType)
	assert.Equal(t, models.PlanType("essential"), *updated.PlanType)
	assert.Regexp(t, fourDigits, updated.Password)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "updated", history[0]["_action"])
	assert.Equal(t, "available", history[0]["status"])
	assert.Equal(t, ReleaseReasonStatusUpdate, history[0]["reason"])
	assert.Equal(t, float64(21), history[0]["previous_client_id"])

	total, err := p.store.Slots().CountAvailable(ctx, false)
	require.NoError(t, err)
	fresh, err := p.store.Slots().CountAvailable(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, fresh+1, total)
}

func TestUpdateSlotInactiveThenAvailableDropsSale(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 8, models.SlotSale{
		SoldBy:    utils.ToPtr("carol"),
		ExpiresAt: utils.ToPtr(time.Now().Add(48 * time.Hour)),
		Notes:     utils.ToPtr("old client"),
	})
	require.NoError(t, err)

	inactive := models.SlotStatusInactive
	demoted, err := p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{Status: &inactive})
	require.NoError(t, err)
	assert.Nil(t, demoted.ClientID)
	assert.Nil(t, demoted.SoldBy)
	assert.Nil(t, demoted.Notes)

	available := models.SlotStatusAvailable
	restored, err := p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{Status: &available})
	require.NoError(t, err)

	assert.True(t, restored.IsFree())
	assert.Nil(t, restored.SoldBy)
	assert.Nil(t, restored.SoldAt)
	assert.Nil(t, restored.ExpiresAt)
	assert.Nil(t, restored.Notes)
	assert.Regexp(t, fourDigits, restored.Password)

	history := historyOf(t, p, slot.ID)
	require.Len(t, history, 3)
	assert.Equal(t, "updated", history[0]["_action"])
	assert.NotContains(t, history[0], "previous_client_id")
	assert.Equal(t, "updated", history[1]["_action"])
	assert.Equal(t, float64(8), history[1]["previous_client_id"])
}

// unloadedLockSlots returns locked rows without their account, as a
// SELECT ... FOR UPDATE without preload does.
type unloadedLockSlots struct {
	repository.SlotRepository
}

func (u unloadedLockSlots) ByIDForUpdate(ctx context.Context, id uint) (*models.Slot, error) {
	slot, err := u.SlotRepository.ByIDForUpdate(ctx, id)
	if slot != nil {
		slot.Account = nil
	}
	return slot, err
}

type unloadedLockStore struct {
	repository.Store
}

func (s unloadedLockStore) Slots() repository.SlotRepository {
	return unloadedLockSlots{SlotRepository: s.Store.Slots()}
}

func TestPasswordChangesReturnStoredSlot(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.EnsureCapacity(ctx, 1)
	require.NoError(t, err)
	before, err := p.store.Slots().ByID(ctx, 1)
	require.NoError(t, err)

	allocator := NewSlotAllocatorFlow(unloadedLockStore{Store: p.store}, p.policy, NewLocalGrowthLocker(), utils.DiscardLogger())

	regenerated, err := allocator.RegeneratePassword(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, regenerated.Account)
	assert.Equal(t, "1a8@tv.test", regenerated.Account.Email)
	assert.True(t, regenerated.UpdatedAt.After(before.UpdatedAt))

	manual, err := allocator.SetPasswordManually(ctx, 1, "5555")
	require.NoError(t, err)
	require.NotNil(t, manual.Account)
	assert.Equal(t, "5555", manual.Password)
}

func TestUpdateSlotKeepsOwnerWhenStatusUnchanged(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	slot, err := p.allocator.AssignOne(ctx, 4, models.SlotSale{})
	require.NoError(t, err)

	assigned := models.SlotStatusAssigned
	updated, err := p.allocator.UpdateSlot(ctx, slot.ID, models.SlotPatch{
		Status: &assigned,
		Notes:  utils.ToPtr("renewed"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ClientID)
	assert.Equal(t, uint(4), *updated.ClientID)
	assert.Equal(t, slot.Password, updated.Password)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "renewed", *updated.Notes)
}

func TestUpdateSlotErrors(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	_, err := p.allocator.EnsureCapacity(ctx, 1)
	require.NoError(t, err)

	assigned := models.SlotStatusAssigned
	bogus := models.SlotStatus("deleted")
	gold := models.PlanType("gold")

	tests := []struct {
		name   string
		slotID uint
		patch  models.SlotPatch
		check  func(error) bool
	}{
		{"empty patch", 1, models.SlotPatch{}, IsEmptyPatch},
		{"unknown status", 1, models.SlotPatch{Status: &bogus}, IsInvalidSlotStatus},
		{"unknown plan", 1, models.SlotPatch{PlanType: &gold}, IsInvalidPlanType},
		{"bad password", 1, models.SlotPatch{Password: utils.ToPtr("99999")}, IsInvalidPassword},
		{"assign by update", 1, models.SlotPatch{Status: &assigned}, IsStatusTransitionNotAllowed},
		{"missing slot", 500, models.SlotPatch{Notes: utils.ToPtr("x")}, IsSlotNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.allocator.UpdateSlot(ctx, tt.slotID, tt.patch)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	history := historyOf(t, p, 1)
	assert.Empty(t, history, "rejected updates leave no history")
}

func TestEnsureCapacity(t *testing.T) {
	p := newTestPool(t, func(cfg *config.PoolConfig) {
		cfg.MaxAccounts = 2
	})
	ctx := context.Background()

	created, err := p.allocator.EnsureCapacity(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, created)

	created, err = p.allocator.EnsureCapacity(ctx, 9)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "1a8@tv.test", created[0].Email)
	assert.Equal(t, "9a16@tv.test", created[1].Email)

	created, err = p.allocator.EnsureCapacity(ctx, 16)
	require.NoError(t, err)
	assert.Empty(t, created, "already satisfied")

	_, err = p.allocator.EnsureCapacity(ctx, 17)
	assert.True(t, IsPoolGrowthLimitReached(err))
}

func TestEnsureCapacityWaitsForGrowthLock(t *testing.T) {
	p := newTestPool(t, nil)
	locker := NewLocalGrowthLocker()
	p.allocator = NewSlotAllocatorFlow(p.store, p.policy, locker, nil)

	release, err := locker.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.allocator.EnsureCapacity(ctx, 1)
	assert.True(t, IsGrowthLockBusy(err))

	release()
	created, err := p.allocator.EnsureCapacity(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestRemoveAccount(t *testing.T) {
	p := newTestPool(t, nil)
	ctx := context.Background()

	created, err := p.allocator.EnsureCapacity(ctx, 8)
	require.NoError(t, err)
	require.Len(t, created, 1)

	_, err = p.allocator.AssignOne(ctx, 1, models.SlotSale{})
	require.NoError(t, err)

	require.NoError(t, p.allocator.RemoveAccount(ctx, created[0].ID))

	slots, err := p.store.Slots().Count(ctx, models.SlotFilter{})
	require.NoError(t, err)
	assert.Zero(t, slots)

	err = p.allocator.RemoveAccount(ctx, created[0].ID)
	assert.True(t, IsAccountNotFound(err))
}
