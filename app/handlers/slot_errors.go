package handlers

import (
	"context"
	"errors"
	"strconv"

	businessflow "github.com/amirphl/tv-slot-pool/business_flow"
	"github.com/gofiber/fiber/v3"
)

// slotErrorStatus maps a flow error to its HTTP status, error code and message.
// Unknown errors become 500s with the caller's fallback code.
func slotErrorStatus(err error, fallbackCode, fallbackMessage string) (int, string, string) {
	status := fiber.StatusInternalServerError
	switch {
	case businessflow.IsInvalidQuantity(err),
		businessflow.IsInvalidPassword(err),
		businessflow.IsEmptyPatch(err),
		businessflow.IsInvalidSlotStatus(err),
		businessflow.IsInvalidPlanType(err),
		businessflow.IsClientIDRequired(err),
		businessflow.IsInvalidPage(err),
		businessflow.IsInvalidPageSize(err):
		status = fiber.StatusBadRequest
	case businessflow.IsSlotNotFound(err), businessflow.IsAccountNotFound(err):
		status = fiber.StatusNotFound
	case businessflow.IsSlotNotAvailable(err), businessflow.IsStatusTransitionNotAllowed(err):
		status = fiber.StatusConflict
	case businessflow.IsPoolExhausted(err),
		businessflow.IsPoolGrowthLimitReached(err),
		businessflow.IsGrowthLockBusy(err):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}

	if status == fiber.StatusInternalServerError {
		return status, fallbackCode, fallbackMessage
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		return status, be.Code, be.Message
	}
	return status, fallbackCode, err.Error()
}

func parseIDParam(c fiber.Ctx, name string) (uint, bool) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
