package dto

import (
	"time"

	"courtbook/internal/domain/availability"
	domainbooking "courtbook/internal/domain/booking"
)

type Booking struct {
	ID             int64      `json:"id"`
	InvoiceNumber  string     `json:"invoiceNumber"`
	UserID         int64      `json:"userId"`
	CourtID        int64      `json:"courtId"`
	ArenaID        int64      `json:"arenaId"`
	VoucherID      *int64     `json:"voucherId,omitempty"`
	Date           string     `json:"date"`
	StartTime      string     `json:"startTime"`
	EndTime        string     `json:"endTime"`
	TimeSlots      []string   `json:"timeSlots"`
	ExpiryTime     *time.Time `json:"expiryTime,omitempty"`
	TotalPrice     int64      `json:"totalPrice"`
	ServiceFee     int64      `json:"serviceFee"`
	ProtectionFee  int64      `json:"protectionFee"`
	DiscountAmount int64      `json:"discountAmount"`
	FinalTotal     int64      `json:"finalTotal"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"paymentStatus"`
	PaymentMethod  string     `json:"paymentMethod,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

type CreateBookingResult struct {
	BookingID     int64     `json:"bookingId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	TotalPrice    int64     `json:"totalPrice"`
	ExpiryTime    time.Time `json:"expiryTime"`
}

type DaySlot struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Price  int64  `json:"price"`
}

type SweepResult struct {
	Expired  int      `json:"expired"`
	Invoices []string `json:"invoices"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:             int64(b.ID),
		InvoiceNumber:  b.InvoiceNumber,
		UserID:         b.UserID,
		CourtID:        int64(b.CourtID),
		ArenaID:        b.ArenaID,
		Date:           domainbooking.FormatDate(b.Date),
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		TimeSlots:      append([]string{}, b.Slots...),
		TotalPrice:     b.Price.TotalPrice,
		ServiceFee:     b.Price.ServiceFee,
		ProtectionFee:  b.Price.ProtectionFee,
		DiscountAmount: b.Price.DiscountAmount,
		FinalTotal:     b.Price.FinalTotal,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		PaymentMethod:  b.PaymentMethod,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.VoucherID != nil {
		id := int64(*b.VoucherID)
		out.VoucherID = &id
	}
	if b.ExpiryTime != nil {
		t := *b.ExpiryTime
		out.ExpiryTime = &t
	}
	return out
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

func MapDaySlots(slots []availability.DaySlot) []DaySlot {
	out := make([]DaySlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, DaySlot{Time: s.Time, Status: string(s.Status), Price: s.Price})
	}
	return out
}
