package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"courtbook/internal/app/commands"
	"courtbook/internal/app/dto"
	bookingapp "courtbook/internal/app/handlers/booking"
	"courtbook/internal/app/queries"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	CourtID   int64    `json:"courtId"`
	Date      string   `json:"date"`
	TimeSlots []string `json:"timeSlots"`
	// ProtectionFee opts into booking protection when positive; the fee itself
	// is the configured constant.
	ProtectionFee     *int64 `json:"protectionFee"`
	BookingProtection *bool  `json:"bookingProtection"`
	Discount          *int64 `json:"discountFromFrontend"`
	ServiceFee        *int64 `json:"serviceFeeFromFrontend"`
	PaymentMethod     string `json:"paymentMethod"`
	VoucherCode       string `json:"voucherCode"`
	VoucherID         *int64 `json:"voucherId"`
}

func (r createBookingRequest) protection() bool {
	if r.BookingProtection != nil {
		return *r.BookingProtection
	}
	return r.ProtectionFee != nil && *r.ProtectionFee > 0
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		UserID:        user.UserID,
		CourtID:       req.CourtID,
		Date:          req.Date,
		TimeSlots:     req.TimeSlots,
		Protection:    req.protection(),
		Discount:      req.Discount,
		ServiceFee:    req.ServiceFee,
		PaymentMethod: req.PaymentMethod,
		Voucher:       voucherRef(req.VoucherID, req.VoucherCode),
		RequestKey:    c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type updateStatusRequest struct {
	Status            string `json:"status"`
	PaymentStatus     string `json:"paymentStatus"`
	PaymentMethod     string `json:"paymentMethod"`
	TotalAmount       *int64 `json:"totalAmount"`
	ServiceFee        *int64 `json:"serviceFee"`
	BookingProtection *bool  `json:"bookingProtection"`
	ProtectionCost    *int64 `json:"protectionCost"`
	DiscountApplied   *int64 `json:"discountApplied"`
	VoucherCode       string `json:"voucherCode"`
	VoucherID         *int64 `json:"voucherId"`
}

// adjustment turns the optional pricing fields into one pricing change. An
// explicit total cannot be combined with component fields.
func (r updateStatusRequest) adjustment() (pricing.Adjustment, bool) {
	components := pricing.Components{
		ServiceFee:     r.ServiceFee,
		Protection:     r.BookingProtection,
		ProtectionCost: r.ProtectionCost,
		Discount:       r.DiscountApplied,
	}
	if r.TotalAmount != nil {
		if !components.Empty() {
			return nil, false
		}
		return pricing.FullTotal{Amount: *r.TotalAmount}, true
	}
	if components.Empty() {
		return nil, true
	}
	return components, true
}

func (h BookingHandler) UpdateStatus(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	adjustment, ok := req.adjustment()
	if !ok {
		badRequest(c, "totalAmount cannot be combined with serviceFee, bookingProtection, protectionCost or discountApplied")
		return
	}
	cmd := bookingapp.UpdateBookingStatusCommand{
		InvoiceNumber: c.Param("invoice"),
		Actor:         user.Actor(),
		UserID:        user.UserID,
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		Adjustment:    adjustment,
		Voucher:       voucherRef(req.VoucherID, req.VoucherCode),
	}
	result, err := commands.Dispatch[bookingapp.UpdateBookingStatusCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{InvoiceNumber: c.Param("invoice"), UserID: user.UserID, Admin: user.IsAdmin()}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.ListUserBookingsQuery{UserID: user.UserID}
	result, err := queries.Ask[bookingapp.ListUserBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func voucherRef(id *int64, code string) domainvouchers.Reference {
	ref := domainvouchers.Reference{Code: code}
	if id != nil {
		vid := domainvouchers.VoucherID(*id)
		ref.ID = &vid
	}
	return ref
}

var _ BookingHTTP = BookingHandler{}
