package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/tv-slot-pool/app/dto"
	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SlotAdminHandlerInterface defines the administrative pool endpoints
type SlotAdminHandlerInterface interface {
	AssignSlots(c fiber.Ctx) error
	ReleaseSlots(c fiber.Ctx) error
	AssignSpecificSlot(c fiber.Ctx) error
	UpdateSlot(c fiber.Ctx) error
	RegeneratePassword(c fiber.Ctx) error
	SetPassword(c fiber.Ctx) error
	EnsureCapacity(c fiber.Ctx) error
	RemoveAccount(c fiber.Ctx) error
	ExportInventory(c fiber.Ctx) error
}

// SlotAdminHandler serves the administrative pool endpoints
type SlotAdminHandler struct {
	allocator businessflow.SlotAllocatorFlow
	query     businessflow.SlotQueryFlow
	validator *validator.Validate
}

func NewSlotAdminHandler(allocator businessflow.SlotAllocatorFlow, query businessflow.SlotQueryFlow) SlotAdminHandlerInterface {
	return &SlotAdminHandler{
		allocator: allocator,
		query:     query,
		validator: validator.New(),
	}
}

func (h *SlotAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *SlotAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

func (h *SlotAdminHandler) flowError(c fiber.Ctx, err error, fallbackCode, fallbackMessage string) error {
	status, code, message := slotErrorStatus(err, fallbackCode, fallbackMessage)
	log.Println(fallbackMessage+":", err)
	return h.ErrorResponse(c, status, message, code, nil)
}

// AssignSlots claims quantity fresh slots for a client, growing the pool if needed.
// A batch is all or nothing.
func (h *SlotAdminHandler) AssignSlots(c fiber.Ctx) error {
	clientID, ok := parseIDParam(c, "client_id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid client ID", "INVALID_CLIENT_ID", nil)
	}

	var req dto.AssignSlotsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/clients/:client_id/slots")
	defer cancel()
	slots, err := h.allocator.AssignMany(ctx, clientID, req.Quantity, businessflow.ToSlotSale(req.SaleAttributes))
	if err != nil {
		return h.flowError(c, err, "ASSIGN_SLOTS_FAILED", "Failed to assign slots")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Slots assigned", dto.AssignSlotsResponse{
		ClientID: clientID,
		Slots:    businessflow.ToSlotDTOs(slots),
	})
}

// ReleaseSlots returns every slot held by a client to the pool
func (h *SlotAdminHandler) ReleaseSlots(c fiber.Ctx) error {
	clientID, ok := parseIDParam(c, "client_id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid client ID", "INVALID_CLIENT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/clients/:client_id/slots")
	defer cancel()
	released, err := h.allocator.Release(ctx, clientID)
	if err != nil {
		return h.flowError(c, err, "RELEASE_SLOTS_FAILED", "Failed to release slots")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slots released", dto.ReleaseSlotsResponse{
		ClientID: clientID,
		Released: released,
	})
}

// AssignSpecificSlot hands a chosen available slot to a client
func (h *SlotAdminHandler) AssignSpecificSlot(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	var req dto.AssignSpecificSlotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/slots/:id/assign")
	defer cancel()
	slot, err := h.allocator.AssignSlot(ctx, slotID, req.ClientID, businessflow.ToSlotSale(req.SaleAttributes))
	if err != nil {
		return h.flowError(c, err, "ASSIGN_SLOT_FAILED", "Failed to assign slot")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slot assigned", businessflow.ToSlotDTO(*slot))
}

// UpdateSlot applies a partial update to a slot
func (h *SlotAdminHandler) UpdateSlot(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	var req dto.UpdateSlotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/slots/:id")
	defer cancel()
	slot, err := h.allocator.UpdateSlot(ctx, slotID, businessflow.ToSlotPatch(req))
	if err != nil {
		return h.flowError(c, err, "UPDATE_SLOT_FAILED", "Failed to update slot")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slot updated", businessflow.ToSlotDTO(*slot))
}

// RegeneratePassword gives a slot a new random four digit password
func (h *SlotAdminHandler) RegeneratePassword(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/slots/:id/password/regenerate")
	defer cancel()
	slot, err := h.allocator.RegeneratePassword(ctx, slotID)
	if err != nil {
		return h.flowError(c, err, "REGENERATE_PASSWORD_FAILED", "Failed to regenerate password")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Password regenerated", businessflow.ToSlotDTO(*slot))
}

// SetPassword sets a slot password by hand
func (h *SlotAdminHandler) SetPassword(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	var req dto.SetSlotPasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/slots/:id/password")
	defer cancel()
	slot, err := h.allocator.SetPasswordManually(ctx, slotID, req.Password)
	if err != nil {
		return h.flowError(c, err, "SET_PASSWORD_FAILED", "Failed to set password")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Password updated", businessflow.ToSlotDTO(*slot))
}

// EnsureCapacity grows the pool until at least min_fresh fresh slots exist
func (h *SlotAdminHandler) EnsureCapacity(c fiber.Ctx) error {
	var req dto.EnsureCapacityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/pool/ensure-capacity", utils.LongRequestTimeout)
	defer cancel()
	created, err := h.allocator.EnsureCapacity(ctx, req.MinFresh)
	if err != nil {
		return h.flowError(c, err, "ENSURE_CAPACITY_FAILED", "Failed to grow the pool")
	}

	avail, err := h.allocator.ComputeAvailability(ctx)
	if err != nil {
		return h.flowError(c, err, "AVAILABILITY_FAILED", "Failed to compute availability")
	}

	resp := dto.EnsureCapacityResponse{
		Created:      make([]dto.AccountDTO, 0, len(created)),
		Availability: businessflow.ToAvailabilityDTO(avail),
	}
	for _, account := range created {
		resp.Created = append(resp.Created, businessflow.ToAccountDTO(*account))
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Pool capacity ensured", resp)
}

// RemoveAccount deletes an account together with its slots and their history
func (h *SlotAdminHandler) RemoveAccount(c fiber.Ctx) error {
	accountID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid account ID", "INVALID_ACCOUNT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/accounts/:id")
	defer cancel()
	if err := h.allocator.RemoveAccount(ctx, accountID); err != nil {
		return h.flowError(c, err, "REMOVE_ACCOUNT_FAILED", "Failed to remove account")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Account removed", nil)
}

// ExportInventory downloads accounts and slots as an Excel workbook
func (h *SlotAdminHandler) ExportInventory(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/pool/export", utils.LongRequestTimeout)
	defer cancel()
	filename, data, err := h.query.ExportInventory(ctx)
	if err != nil {
		return h.flowError(c, err, "EXPORT_FAILED", "Failed to export inventory")
	}

	c.Set("Content-Type", utils.XLSXContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

func (h *SlotAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.RequestTimeout)
}

func (h *SlotAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	return requestContext(c, endpoint, timeout)
}
