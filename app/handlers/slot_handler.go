package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/tv-slot-pool/app/dto"
	"github.com/amirphl/tv-slot-pool/app/middleware"
	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SlotHandlerInterface defines the read endpoints and notes edits available to operators
type SlotHandlerInterface interface {
	ClientSlots(c fiber.Ctx) error
	ListSlots(c fiber.Ctx) error
	SlotHistory(c fiber.Ctx) error
	ListAccounts(c fiber.Ctx) error
	Availability(c fiber.Ctx) error
	NextEmail(c fiber.Ctx) error
	UpdateNotes(c fiber.Ctx) error
}

// SlotHandler serves operator slot endpoints
type SlotHandler struct {
	allocator businessflow.SlotAllocatorFlow
	query     businessflow.SlotQueryFlow
	validator *validator.Validate
}

func NewSlotHandler(allocator businessflow.SlotAllocatorFlow, query businessflow.SlotQueryFlow) SlotHandlerInterface {
	return &SlotHandler{
		allocator: allocator,
		query:     query,
		validator: validator.New(),
	}
}

func (h *SlotHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

func (h *SlotHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *SlotHandler) flowError(c fiber.Ctx, err error, fallbackCode, fallbackMessage string) error {
	status, code, message := slotErrorStatus(err, fallbackCode, fallbackMessage)
	if status >= fiber.StatusInternalServerError {
		log.Println(fallbackMessage+":", err)
	}
	return h.ErrorResponse(c, status, message, code, nil)
}

// ClientSlots lists the client's active slots with profile labels.
// Pass include_history=true to embed each slot's audit trail.
func (h *SlotHandler) ClientSlots(c fiber.Ctx) error {
	clientID, ok := parseIDParam(c, "client_id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid client ID", "INVALID_CLIENT_ID", nil)
	}

	includeHistory, _ := strconv.ParseBool(c.Query("include_history", "false"))
	ctx, cancel := h.createRequestContext(c, "/api/v1/clients/:client_id/slots")
	defer cancel()
	resp, err := h.query.AssignmentsForClient(ctx, clientID, includeHistory)
	if err != nil {
		return h.flowError(c, err, "LIST_CLIENT_SLOTS_FAILED", "Failed to list client slots")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Client slots retrieved", resp)
}

// ListSlots pages through slots filtered by status, plan, client or account
func (h *SlotHandler) ListSlots(c fiber.Ctx) error {
	var req dto.ListSlotsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/slots")
	defer cancel()
	resp, err := h.query.ListSlots(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "LIST_SLOTS_FAILED", "Failed to list slots")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slots retrieved", resp)
}

// SlotHistory returns the audit trail of one slot, newest first
func (h *SlotHandler) SlotHistory(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/slots/:id/history")
	defer cancel()
	history, err := h.query.SlotHistory(ctx, slotID)
	if err != nil {
		return h.flowError(c, err, "SLOT_HISTORY_FAILED", "Failed to load slot history")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slot history retrieved", history)
}

// ListAccounts returns every account with its per-status slot counts
func (h *SlotHandler) ListAccounts(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/accounts")
	defer cancel()
	accounts, err := h.query.ListAccounts(ctx)
	if err != nil {
		return h.flowError(c, err, "LIST_ACCOUNTS_FAILED", "Failed to list accounts")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Accounts retrieved", accounts)
}

// Availability reports fresh and total available slot counts
func (h *SlotHandler) Availability(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/pool/availability")
	defer cancel()
	avail, err := h.query.Availability(ctx)
	if err != nil {
		return h.flowError(c, err, "AVAILABILITY_FAILED", "Failed to compute availability")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Availability retrieved", avail)
}

// NextEmail predicts the email of the next account the pool would create
func (h *SlotHandler) NextEmail(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/pool/next-email")
	defer cancel()
	preview, err := h.query.NextEmailPreview(ctx)
	if err != nil {
		return h.flowError(c, err, "NEXT_EMAIL_FAILED", "Failed to preview next account email")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Next account email", preview)
}

// UpdateNotes replaces the notes of a slot
func (h *SlotHandler) UpdateNotes(c fiber.Ctx) error {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid slot ID", "INVALID_SLOT_ID", nil)
	}

	var req dto.UpdateSlotNotesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/slots/:id/notes")
	defer cancel()
	slot, err := h.allocator.UpdateSlot(ctx, slotID, models.SlotPatch{Notes: req.Notes})
	if err != nil {
		return h.flowError(c, err, "UPDATE_NOTES_FAILED", "Failed to update slot notes")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Slot notes updated", businessflow.ToSlotDTO(*slot))
}

func (h *SlotHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return requestContext(c, endpoint, utils.RequestTimeout)
}

// requestContext builds the flow context for a request. The actor set by the
// auth middleware is attached so history entries name who acted.
func requestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	if actor, ok := middleware.GetActorFromContext(c); ok {
		ctx = businessflow.WithActor(ctx, actor)
	}
	return ctx, cancel
}
