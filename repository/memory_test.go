package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAccount(n int64) (*models.Account, error) {
	start := (n-1)*4 + 1
	account := &models.Account{
		UUID:          uuid.New(),
		SequenceIndex: n,
		Email:         fmt.Sprintf("%da%d@mem.test", start, n*4),
		Capacity:      4,
	}
	for k := 1; k <= 4; k++ {
		account.Slots = append(account.Slots, models.Slot{
			UUID:       uuid.New(),
			SlotNumber: k,
			Username:   fmt.Sprintf("u%d", start+int64(k)-1),
			Password:   "1111",
			Status:     models.SlotStatusAvailable,
		})
	}
	return account, nil
}

func seedMemory(t *testing.T, accounts int) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for i := 0; i < accounts; i++ {
		_, err := s.Accounts().CreateNext(context.Background(), buildAccount)
		require.NoError(t, err)
	}
	return s
}

func TestMemoryCreateNextAssignsSequence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Accounts().CreateNext(ctx, buildAccount)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	accounts, err := s.Accounts().ByFilter(ctx, models.AccountFilter{}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 10)
	for i, a := range accounts {
		assert.Equal(t, int64(i+1), a.SequenceIndex)
	}

	current, err := s.Counters().Current(ctx, models.SequenceAccountIndex)
	require.NoError(t, err)
	assert.Equal(t, int64(10), current)

	slots, err := s.Slots().Count(ctx, models.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(40), slots)
}

func TestMemoryCreateNextRollsBackCounter(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	_, err := s.Accounts().CreateNext(ctx, func(n int64) (*models.Account, error) {
		a, _ := buildAccount(n)
		a.Slots[1].Username = a.Slots[0].Username
		return a, nil
	})
	require.Error(t, err)

	current, err := s.Counters().Current(ctx, models.SequenceAccountIndex)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)

	boom := errors.New("boom")
	_, err = s.Accounts().CreateNext(ctx, func(int64) (*models.Account, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	n, err := s.Accounts().Count(ctx, models.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryTryClaimIsCompareAndSet(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan uint, 20)
	for c := uint(1); c <= 20; c++ {
		wg.Add(1)
		go func(c uint) {
			defer wg.Done()
			ok, err := s.Slots().TryClaim(ctx, 1, c, models.SlotSale{})
			assert.NoError(t, err)
			if ok {
				wins <- c
			}
		}(c)
	}
	wg.Wait()
	close(wins)

	var winners []uint
	for c := range wins {
		winners = append(winners, c)
	}
	require.Len(t, winners, 1)

	slot, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAssigned, slot.Status)
	assert.Equal(t, winners[0], *slot.ClientID)

	ok, err := s.Slots().TryClaim(ctx, 999, 1, models.SlotSale{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryReleaseRequiresOwner(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	notes := "n"
	ok, err := s.Slots().TryClaim(ctx, 2, 7, models.SlotSale{Notes: &notes})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Slots().Release(ctx, 2, 8, "2222")
	require.NoError(t, err)
	assert.False(t, ok, "not the owner")

	ok, err = s.Slots().Release(ctx, 2, 7, "2222")
	require.NoError(t, err)
	assert.True(t, ok)

	slot, err := s.Slots().ByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAvailable, slot.Status)
	assert.Nil(t, slot.ClientID)
	assert.Nil(t, slot.Notes)
	assert.Equal(t, "2222", slot.Password)

	ok, err = s.Slots().Release(ctx, 2, 7, "3333")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFreshAndTotalCandidates(t *testing.T) {
	s := seedMemory(t, 2)
	ctx := context.Background()

	ok, err := s.Slots().TryClaim(ctx, 1, 1, models.SlotSale{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 1, Action: models.SlotHistoryActionAssigned}))
	ok, err = s.Slots().Release(ctx, 1, 1, "0001")
	require.NoError(t, err)
	require.True(t, ok)

	fresh, err := s.Slots().CountAvailable(ctx, true)
	require.NoError(t, err)
	total, err := s.Slots().CountAvailable(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fresh)
	assert.Equal(t, int64(8), total)

	candidates, err := s.Slots().SelectCandidates(ctx, 3, true)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{candidates[0].SlotNumber, candidates[1].SlotNumber, candidates[2].SlotNumber})

	candidates, err = s.Slots().SelectCandidates(ctx, 0, false)
	require.NoError(t, err)
	require.Len(t, candidates, 8)
	assert.Equal(t, uint(1), candidates[0].ID)
}

func TestMemoryTransactionRollback(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		ok, err := s.Slots().TryClaim(txCtx, 1, 5, models.SlotSale{})
		require.NoError(t, err)
		require.True(t, ok)

		// nested calls join the outer transaction
		if err := s.WithTransaction(txCtx, func(inner context.Context) error {
			return s.History().Save(inner, &models.SlotHistory{SlotID: 1, Action: models.SlotHistoryActionAssigned})
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	slot, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusAvailable, slot.Status)
	assert.Nil(t, slot.ClientID)

	assigned, err := s.History().ExistsAction(ctx, 1, models.SlotHistoryActionAssigned)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestMemoryTransactionRecoversPanic(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		_, _ = s.Slots().TryClaim(txCtx, 1, 5, models.SlotSale{})
		panic("unexpected")
	})
	require.Error(t, err)

	slot, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, slot.IsFree())

	// the store is still usable
	_, err = s.Accounts().CreateNext(ctx, buildAccount)
	assert.NoError(t, err)
}

func TestMemoryHistoryNewestFirst(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	for _, action := range []models.SlotHistoryAction{
		models.SlotHistoryActionAssigned,
		models.SlotHistoryActionReleased,
		models.SlotHistoryActionPasswordRegenerated,
	} {
		require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 3, Action: action}))
	}
	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 4, Action: models.SlotHistoryActionUpdated}))

	rows, err := s.History().ListBySlot(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.SlotHistoryActionPasswordRegenerated, rows[0].Action)
	assert.Equal(t, models.SlotHistoryActionAssigned, rows[2].Action)

	err = s.History().Save(ctx, &models.SlotHistory{SlotID: 99, Action: models.SlotHistoryActionUpdated})
	assert.Error(t, err)
}

func TestMemoryDeleteCascades(t *testing.T) {
	s := seedMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 1, Action: models.SlotHistoryActionUpdated}))
	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 5, Action: models.SlotHistoryActionUpdated}))

	deleted, err := s.Accounts().Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	slots, err := s.Slots().Count(ctx, models.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), slots)

	rows, err := s.History().ListBySlots(ctx, []uint{1, 5})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(5), rows[0].SlotID)

	deleted, err = s.Accounts().Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryRollbackRestoresDeletedAccount(t *testing.T) {
	s := seedMemory(t, 2)
	ctx := context.Background()

	ok, err := s.Slots().TryClaim(ctx, 2, 7, models.SlotSale{})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 2, Action: models.SlotHistoryActionAssigned}))
	require.NoError(t, s.History().Save(ctx, &models.SlotHistory{SlotID: 6, Action: models.SlotHistoryActionUpdated}))

	boom := errors.New("boom")
	err = s.WithTransaction(ctx, func(txCtx context.Context) error {
		deleted, err := s.Accounts().Delete(txCtx, 1)
		require.NoError(t, err)
		require.True(t, deleted)

		require.NoError(t, s.Slots().SetPassword(txCtx, 6, "9999"))
		require.NoError(t, s.History().Save(txCtx, &models.SlotHistory{SlotID: 7, Action: models.SlotHistoryActionAssigned}))
		_, err = s.Accounts().CreateNext(txCtx, buildAccount)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	accounts, err := s.Accounts().Count(ctx, models.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), accounts)

	slot, err := s.Slots().ByID(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, slot)
	require.NotNil(t, slot.ClientID)
	assert.Equal(t, uint(7), *slot.ClientID)

	slot, err = s.Slots().ByID(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "1111", slot.Password)

	rows, err := s.History().ListBySlots(ctx, []uint{2, 6, 7})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	fresh, err := s.Slots().CountAvailable(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fresh, "slot 2 is owned; slot 7 stays fresh")

	current, err := s.Counters().Current(ctx, models.SequenceAccountIndex)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)

	next, err := s.Accounts().CreateNext(ctx, buildAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.SequenceIndex)
	assert.Equal(t, uint(3), next.ID)
}

func TestMemoryInventoryAndPaging(t *testing.T) {
	s := seedMemory(t, 2)
	ctx := context.Background()

	ok, err := s.Slots().TryClaim(ctx, 6, 3, models.SlotSale{})
	require.NoError(t, err)
	require.True(t, ok)
	suspended := models.SlotStatusSuspended
	require.NoError(t, s.Slots().ApplyPatch(ctx, 7, models.SlotPatch{Status: &suspended}, PatchKeepOwner))

	inv, err := s.Accounts().Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, inv, 2)
	assert.Equal(t, int64(4), inv[0].Available)
	assert.Equal(t, int64(2), inv[1].Available)
	assert.Equal(t, int64(1), inv[1].Assigned)
	assert.Equal(t, int64(1), inv[1].Suspended)

	ids, err := s.Slots().ListIDsAfter(ctx, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 5, 6}, ids)

	ids, err = s.Slots().ListIDsAfter(ctx, 8, 3)
	require.NoError(t, err)
	assert.Empty(t, ids)

	page, err := s.Slots().ByFilter(ctx, models.SlotFilter{}, "", 3, 6)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint(7), page[0].ID)
	require.NotNil(t, page[0].Account)
	assert.Equal(t, int64(2), page[0].Account.SequenceIndex)

	owned, err := s.Slots().ListByClient(ctx, 3)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.NotNil(t, owned[0].Account)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	slot, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	slot.Password = "9999"

	again, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "1111", again.Password)

	missing, err := s.Slots().ByID(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryApplyPatchModes(t *testing.T) {
	s := seedMemory(t, 1)
	ctx := context.Background()

	notes := "vip"
	for _, id := range []uint{1, 2} {
		ok, err := s.Slots().TryClaim(ctx, id, 9, models.SlotSale{SoldBy: utils.ToPtr("bob"), Notes: &notes})
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, s.Slots().ApplyPatch(ctx, 1, models.SlotPatch{Notes: utils.ToPtr("edited")}, PatchKeepOwner))
	slot, err := s.Slots().ByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, slot.ClientID)
	assert.Equal(t, uint(9), *slot.ClientID)
	require.NotNil(t, slot.SoldBy)
	assert.Equal(t, "bob", *slot.SoldBy)
	assert.Equal(t, "edited", *slot.Notes)

	available := models.SlotStatusAvailable
	require.NoError(t, s.Slots().ApplyPatch(ctx, 2, models.SlotPatch{Status: &available, Notes: utils.ToPtr("kept")}, PatchRelease))
	slot, err = s.Slots().ByID(ctx, 2)
	require.NoError(t, err)
	assert.True(t, slot.IsFree())
	assert.Nil(t, slot.SoldBy)
	assert.Nil(t, slot.SoldAt)
	require.NotNil(t, slot.Notes)
	assert.Equal(t, "kept", *slot.Notes)
}
