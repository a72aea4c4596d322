package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

type fieldErrorBody struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// respondError is the single place where application errors become HTTP
// responses.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	_ = c.Error(err)
	var (
		conflict   *domainbooking.SlotConflictError
		terminal   *domainbooking.TerminalStateError
		validation *domainbooking.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": "slots already booked", "conflictingSlots": conflict.Slots})
	case errors.As(err, &terminal):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "booking is already " + string(terminal.Status),
			"status":        terminal.Status,
			"paymentStatus": terminal.PaymentStatus,
		})
	case errors.As(err, &validation):
		fields := make([]fieldErrorBody, 0)
		for _, f := range validation.Fields() {
			fields = append(fields, fieldErrorBody{Field: f.Field, Reason: f.Reason})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
	case errors.Is(err, domainbooking.ErrInvalidTransition),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domaincourts.ErrCourtInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domaincourts.ErrCourtNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainvouchers.ErrVoucherNotFound),
		errors.Is(err, domainvouchers.ErrVoucherInactive),
		errors.Is(err, domainvouchers.ErrMinimumPurchase),
		errors.Is(err, domainvouchers.ErrInvalidReference),
		errors.Is(err, pricing.ErrNegativeComponent),
		errors.Is(err, pricing.ErrDiscountExceedsTotal),
		errors.Is(err, pricing.ErrTotalMismatch),
		errors.Is(err, pricing.ErrNoSlots),
		errors.Is(err, domainbooking.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
