// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/tv-slot-pool/app/dto"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/repository"
)

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ToSlotDTO converts a slot model for responses. The account is used when preloaded.
func ToSlotDTO(slot models.Slot) dto.SlotDTO {
	out := dto.SlotDTO{
		ID:         slot.ID,
		UUID:       slot.UUID.String(),
		AccountID:  slot.AccountID,
		SlotNumber: slot.SlotNumber,
		Username:   slot.Username,
		Password:   slot.Password,
		Status:     slot.Status.String(),
		ClientID:   slot.ClientID,
		SoldBy:     slot.SoldBy,
		SoldAt:     formatTime(slot.SoldAt),
		StartsAt:   formatTime(slot.StartsAt),
		ExpiresAt:  formatTime(slot.ExpiresAt),
		Notes:      slot.Notes,
		UpdatedAt:  slot.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if slot.PlanType != nil {
		plan := string(*slot.PlanType)
		out.PlanType = &plan
	}
	if slot.Account != nil {
		out.AccountEmail = slot.Account.Email
		out.AccountSequence = slot.Account.SequenceIndex
	}
	return out
}

func ToSlotDTOs(slots []*models.Slot) []dto.SlotDTO {
	out := make([]dto.SlotDTO, 0, len(slots))
	for _, s := range slots {
		out = append(out, ToSlotDTO(*s))
	}
	return out
}

// ToSlotHistoryDTO converts a history entry; undecodable metadata is returned empty
func ToSlotHistoryDTO(entry models.SlotHistory) dto.SlotHistoryDTO {
	metadata, err := models.DecodeHistoryMetadata(entry.Metadata)
	if err != nil {
		metadata = models.HistoryMetadata{}
	}
	return dto.SlotHistoryDTO{
		ID:        entry.ID,
		SlotID:    entry.SlotID,
		Action:    string(entry.Action),
		Metadata:  metadata,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func ToSlotHistoryDTOs(entries []*models.SlotHistory) []dto.SlotHistoryDTO {
	out := make([]dto.SlotHistoryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToSlotHistoryDTO(*e))
	}
	return out
}

func ToAccountDTO(account models.Account) dto.AccountDTO {
	return dto.AccountDTO{
		ID:            account.ID,
		UUID:          account.UUID.String(),
		SequenceIndex: account.SequenceIndex,
		Email:         account.Email,
		Capacity:      account.Capacity,
		CreatedAt:     account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToAccountInventoryDTO(inv repository.AccountInventory) dto.AccountInventoryDTO {
	return dto.AccountInventoryDTO{
		AccountID:     inv.AccountID,
		SequenceIndex: inv.SequenceIndex,
		Email:         inv.Email,
		Capacity:      inv.Capacity,
		Available:     inv.Available,
		Fresh:         inv.Fresh,
		Assigned:      inv.Assigned,
		Inactive:      inv.Inactive,
		Suspended:     inv.Suspended,
	}
}

func ToAvailabilityDTO(a Availability) dto.AvailabilityDTO {
	return dto.AvailabilityDTO{
		FreshAvailable: a.FreshAvailable,
		TotalAvailable: a.TotalAvailable,
	}
}

// ToSlotSale maps request sale attributes to the model
func ToSlotSale(attrs dto.SaleAttributes) models.SlotSale {
	sale := models.SlotSale{
		SoldBy:    attrs.SoldBy,
		SoldAt:    attrs.SoldAt,
		StartsAt:  attrs.StartsAt,
		ExpiresAt: attrs.ExpiresAt,
		Notes:     attrs.Notes,
	}
	if attrs.PlanType != nil {
		plan := models.PlanType(*attrs.PlanType)
		sale.PlanType = &plan
	}
	return sale
}

// ToSlotPatch maps an update request to the model patch
func ToSlotPatch(req dto.UpdateSlotRequest) models.SlotPatch {
	patch := models.SlotPatch{
		SoldBy:    req.SoldBy,
		SoldAt:    req.SoldAt,
		StartsAt:  req.StartsAt,
		ExpiresAt: req.ExpiresAt,
		Notes:     req.Notes,
		Password:  req.Password,
	}
	if req.Status != nil {
		status := models.SlotStatus(*req.Status)
		patch.Status = &status
	}
	if req.PlanType != nil {
		plan := models.PlanType(*req.PlanType)
		patch.PlanType = &plan
	}
	return patch
}
