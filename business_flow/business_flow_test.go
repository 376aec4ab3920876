package businessflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amirphl/tv-slot-pool/app/dto"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSlotDTO(t *testing.T) {
	soldAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("IRST", 12600))
	plan := models.PlanTypeEssential
	slot := models.Slot{
		ID:         3,
		UUID:       uuid.New(),
		AccountID:  1,
		Account:    &models.Account{Email: "1a8@tv.test", SequenceIndex: 1},
		SlotNumber: 3,
		Username:   "tv3",
		Password:   "0042",
		Status:     models.SlotStatusAssigned,
		ClientID:   utils.ToPtr(uint(9)),
		PlanType:   &plan,
		SoldAt:     &soldAt,
	}

	out := ToSlotDTO(slot)
	assert.Equal(t, "assigned", out.Status)
	assert.Equal(t, "1a8@tv.test", out.AccountEmail)
	assert.Equal(t, int64(1), out.AccountSequence)
	require.NotNil(t, out.PlanType)
	assert.Equal(t, "essential", *out.PlanType)
	require.NotNil(t, out.SoldAt)
	assert.Equal(t, "2025-03-01T06:30:00Z", *out.SoldAt)
	assert.Nil(t, out.ExpiresAt)
	assert.Nil(t, out.ProfileLabel)
}

func TestToSlotHistoryDTOToleratesBadMetadata(t *testing.T) {
	out := ToSlotHistoryDTO(models.SlotHistory{ID: 1, SlotID: 2, Action: models.SlotHistoryActionUpdated, Metadata: json.RawMessage(`not json`)})
	assert.Equal(t, "updated", out.Action)
	assert.Empty(t, out.Metadata)
}

func TestToSlotPatch(t *testing.T) {
	patch := ToSlotPatch(dto.UpdateSlotRequest{
		Status:   utils.ToPtr("suspended"),
		PlanType: utils.ToPtr("premium"),
		Password: utils.ToPtr("1234"),
	})
	require.NotNil(t, patch.Status)
	assert.Equal(t, models.SlotStatusSuspended, *patch.Status)
	require.NotNil(t, patch.PlanType)
	assert.Equal(t, models.PlanTypePremium, *patch.PlanType)
	assert.False(t, patch.IsEmpty())

	assert.True(t, ToSlotPatch(dto.UpdateSlotRequest{}).IsEmpty())
}

func TestToSlotSale(t *testing.T) {
	sale := ToSlotSale(dto.SaleAttributes{PlanType: utils.ToPtr("essential"), SoldBy: utils.ToPtr("desk")})
	require.NotNil(t, sale.PlanType)
	assert.Equal(t, models.PlanTypeEssential, *sale.PlanType)
	assert.Equal(t, "desk", *sale.SoldBy)
	assert.Nil(t, sale.SoldAt)
}

func TestBusinessErrorWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewBusinessErrorf("POOL_EXHAUSTED", "Only %d of %d slots could be assigned", ErrPoolExhausted, 1, 2))

	assert.True(t, IsPoolExhausted(err))
	assert.False(t, IsSlotNotFound(err))

	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "POOL_EXHAUSTED", be.Code)
	assert.Equal(t, "Only 1 of 2 slots could be assigned", be.Message)
	assert.Contains(t, err.Error(), ErrPoolExhausted.Error())

	assert.False(t, errors.Is(NewBusinessError("X", "x", nil), errClaimConflict))
}
