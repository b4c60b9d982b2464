// services/errors.go
package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Sentinel errors returned by the core services. Handlers translate them to
// HTTP statuses; everything else surfaces as a generic 500.
var (
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("expired")
	ErrAlreadyRedeemed   = errors.New("already redeemed")
	ErrDuplicateCode     = errors.New("duplicate code")
	ErrBidTooLow         = errors.New("bid too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidState      = errors.New("invalid state")
	ErrItemClaimed       = errors.New("item already claimed")
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrExpired):
		return fiber.StatusGone
	case errors.Is(err, ErrAlreadyRedeemed), errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrInvalidState), errors.Is(err, ErrItemClaimed):
		return fiber.StatusConflict
	case errors.Is(err, ErrBidTooLow):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	default:
		return fiber.StatusInternalServerError
	}
}

// errorReply renders a service error for the gateway. Unexpected errors get a
// generic retry-later body so store hiccups never leak internals to chat.
func errorReply(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "something went wrong, try again later"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
