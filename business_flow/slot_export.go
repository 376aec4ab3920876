package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/xuri/excelize/v2"
)

const (
	exportAccountsSheet = "Accounts"
	exportSlotsSheet    = "Slots"
)

// ExportInventory renders accounts and slots into an xlsx workbook
func (f *SlotQueryFlowImpl) ExportInventory(ctx context.Context) (string, []byte, error) {
	accounts, err := f.store.Accounts().Inventory(ctx)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load accounts", err)
	}
	slots, err := f.store.Slots().ByFilter(ctx, models.SlotFilter{}, "", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load slots", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), exportAccountsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workbook", err)
	}
	if _, err := xl.NewSheet(exportSlotsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to prepare workbook", err)
	}

	accountHeader := []any{"Sequence", "Email", "Capacity", "Available", "Fresh", "Assigned", "Inactive", "Suspended"}
	if err := xl.SetSheetRow(exportAccountsSheet, "A1", &accountHeader); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write header", err)
	}
	for i, a := range accounts {
		row := []any{a.SequenceIndex, a.Email, a.Capacity, a.Available, a.Fresh, a.Assigned, a.Inactive, a.Suspended}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(exportAccountsSheet, cell, &row); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write account row", err)
		}
	}

	slotHeader := []any{"Account Email", "Slot", "Username", "Password", "Status", "Client ID", "Plan", "Sold By", "Sold At", "Starts At", "Expires At", "Notes"}
	if err := xl.SetSheetRow(exportSlotsSheet, "A1", &slotHeader); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write header", err)
	}
	for i, s := range slots {
		email := ""
		if s.Account != nil {
			email = s.Account.Email
		}
		row := []any{
			email,
			s.SlotNumber,
			s.Username,
			s.Password,
			s.Status.String(),
			optionalUint(s.ClientID),
			optionalPlan(s.PlanType),
			optionalString(s.SoldBy),
			optionalTime(s.SoldAt),
			optionalTime(s.StartsAt),
			optionalTime(s.ExpiresAt),
			optionalString(s.Notes),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(exportSlotsSheet, cell, &row); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write slot row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("slot_pool_inventory_%s.xlsx", utils.UTCNowFormat("20060102_150405"))
	return filename, buf.Bytes(), nil
}

func optionalUint(v *uint) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func optionalPlan(v *models.PlanType) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
