package businessflow

import (
	"context"
	"sort"

	"github.com/amirphl/tv-slot-pool/app/dto"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/repository"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	defaultSlotPageSize = 50
	maxSlotPageSize     = 500
)

// SlotQueryFlow builds read-only views of the pool. It never mutates or grows it.
type SlotQueryFlow interface {
	AssignmentsForClient(ctx context.Context, clientID uint, includeHistory bool) (*dto.ClientSlotsResponse, error)
	NextEmailPreview(ctx context.Context) (*dto.NextEmailPreviewDTO, error)
	Availability(ctx context.Context) (*dto.AvailabilityDTO, error)
	ListAccounts(ctx context.Context) ([]dto.AccountInventoryDTO, error)
	ListSlots(ctx context.Context, req *dto.ListSlotsRequest) (*dto.ListSlotsResponse, error)
	SlotHistory(ctx context.Context, slotID uint) ([]dto.SlotHistoryDTO, error)
	ExportInventory(ctx context.Context) (string, []byte, error)
}

type SlotQueryFlowImpl struct {
	store     repository.Store
	policy    PoolPolicy
	audit     *SlotAuditRecorder
	allocator SlotAllocatorFlow
	lang      language.Tag
}

func NewSlotQueryFlow(store repository.Store, policy PoolPolicy, allocator SlotAllocatorFlow) SlotQueryFlow {
	return &SlotQueryFlowImpl{
		store:     store,
		policy:    policy,
		audit:     NewSlotAuditRecorder(store.History()),
		allocator: allocator,
		lang:      language.Und,
	}
}

// AssignmentsForClient returns the client's slots ranked 1..n by (email, slot number)
func (f *SlotQueryFlowImpl) AssignmentsForClient(ctx context.Context, clientID uint, includeHistory bool) (*dto.ClientSlotsResponse, error) {
	if clientID == 0 {
		return nil, NewBusinessError("CLIENT_ID_REQUIRED", "Client ID is required", ErrClientIDRequired)
	}

	slots, err := f.store.Slots().ListByClient(ctx, clientID)
	if err != nil {
		return nil, NewBusinessError("CLIENT_SLOTS_FAILED", "Failed to list client slots", err)
	}

	f.sortByProfile(slots)

	var history map[uint][]*models.SlotHistory
	if includeHistory && len(slots) > 0 {
		ids := make([]uint, 0, len(slots))
		for _, s := range slots {
			ids = append(ids, s.ID)
		}
		history, err = f.audit.HistoryBySlots(ctx, ids)
		if err != nil {
			return nil, NewBusinessError("CLIENT_SLOTS_FAILED", "Failed to load slot history", err)
		}
	}

	resp := &dto.ClientSlotsResponse{ClientID: clientID, Slots: make([]dto.SlotDTO, 0, len(slots))}
	for i, s := range slots {
		item := ToSlotDTO(*s)
		label := i + 1
		item.ProfileLabel = &label
		if includeHistory {
			item.History = ToSlotHistoryDTOs(history[s.ID])
		}
		resp.Slots = append(resp.Slots, item)
	}
	return resp, nil
}

// sortByProfile orders slots by account email (case-insensitive collation) then slot number
func (f *SlotQueryFlowImpl) sortByProfile(slots []*models.Slot) {
	col := collate.New(f.lang, collate.IgnoreCase)
	email := func(s *models.Slot) string {
		if s.Account == nil {
			return ""
		}
		return s.Account.Email
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if c := col.CompareString(email(slots[i]), email(slots[j])); c != 0 {
			return c < 0
		}
		return slots[i].SlotNumber < slots[j].SlotNumber
	})
}

// NextEmailPreview reports the email the next grown account will get
func (f *SlotQueryFlowImpl) NextEmailPreview(ctx context.Context) (*dto.NextEmailPreviewDTO, error) {
	current, err := f.store.Counters().Current(ctx, models.SequenceAccountIndex)
	if err != nil {
		return nil, NewBusinessError("NEXT_EMAIL_FAILED", "Failed to read account sequence", err)
	}
	total, err := f.store.Slots().CountAvailable(ctx, false)
	if err != nil {
		return nil, NewBusinessError("NEXT_EMAIL_FAILED", "Failed to count available slots", err)
	}

	next := current + 1
	return &dto.NextEmailPreviewDTO{
		SequenceIndex:  next,
		Email:          f.policy.Scheme.Email(next),
		TotalAvailable: total,
	}, nil
}

func (f *SlotQueryFlowImpl) Availability(ctx context.Context) (*dto.AvailabilityDTO, error) {
	a, err := f.allocator.ComputeAvailability(ctx)
	if err != nil {
		return nil, err
	}
	out := ToAvailabilityDTO(a)
	return &out, nil
}

func (f *SlotQueryFlowImpl) ListAccounts(ctx context.Context) ([]dto.AccountInventoryDTO, error) {
	rows, err := f.store.Accounts().Inventory(ctx)
	if err != nil {
		return nil, NewBusinessError("ACCOUNT_LIST_FAILED", "Failed to list accounts", err)
	}
	out := make([]dto.AccountInventoryDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToAccountInventoryDTO(*r))
	}
	return out, nil
}

func (f *SlotQueryFlowImpl) ListSlots(ctx context.Context, req *dto.ListSlotsRequest) (*dto.ListSlotsResponse, error) {
	if req == nil {
		req = &dto.ListSlotsRequest{}
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be positive", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = defaultSlotPageSize
	}
	if pageSize < 1 || pageSize > maxSlotPageSize {
		return nil, NewBusinessErrorf("INVALID_PAGE_SIZE", "Page size must be between 1 and %d", ErrInvalidPageSize, maxSlotPageSize)
	}

	filter := models.SlotFilter{ClientID: req.ClientID, AccountID: req.AccountID}
	if req.Status != nil {
		status := models.SlotStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("INVALID_SLOT_STATUS", "Unknown slot status %q", ErrInvalidSlotStatus, *req.Status)
		}
		filter.Status = &status
	}
	if req.PlanType != nil {
		plan := models.PlanType(*req.PlanType)
		if !plan.Valid() {
			return nil, NewBusinessErrorf("INVALID_PLAN_TYPE", "Unknown plan type %q", ErrInvalidPlanType, *req.PlanType)
		}
		filter.PlanType = &plan
	}

	total, err := f.store.Slots().Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("SLOT_LIST_FAILED", "Failed to count slots", err)
	}
	slots, err := f.store.Slots().ByFilter(ctx, filter, "", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("SLOT_LIST_FAILED", "Failed to list slots", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.ListSlotsResponse{
		Items: ToSlotDTOs(slots),
		Pagination: dto.PaginationInfo{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (f *SlotQueryFlowImpl) SlotHistory(ctx context.Context, slotID uint) ([]dto.SlotHistoryDTO, error) {
	slot, err := f.store.Slots().ByID(ctx, slotID)
	if err != nil {
		return nil, NewBusinessError("SLOT_HISTORY_FAILED", "Failed to load slot", err)
	}
	if slot == nil {
		return nil, NewBusinessError("SLOT_NOT_FOUND", "Slot not found", ErrSlotNotFound)
	}
	entries, err := f.audit.History(ctx, slotID)
	if err != nil {
		return nil, NewBusinessError("SLOT_HISTORY_FAILED", "Failed to load slot history", err)
	}
	return ToSlotHistoryDTOs(entries), nil
}
