package postgres

import (
	"time"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

type bookingRow struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	InvoiceNumber  string     `gorm:"size:64;uniqueIndex;not null"`
	UserID         int64      `gorm:"index;not null"`
	CourtID        int64      `gorm:"index:idx_bookings_court_date;not null"`
	ArenaID        int64      `gorm:"not null"`
	VoucherID      *int64     `gorm:"index"`
	Date           string     `gorm:"size:10;index:idx_bookings_court_date;not null"`
	StartTime      string     `gorm:"size:5;not null"`
	EndTime        string     `gorm:"size:5;not null"`
	Slots          []string   `gorm:"type:text;serializer:json;not null"`
	ExpiryTime     *time.Time `gorm:"index:idx_bookings_pending_expiry"`
	TotalPrice     int64      `gorm:"not null"`
	ServiceFee     int64      `gorm:"not null"`
	ProtectionFee  int64      `gorm:"not null"`
	DiscountAmount int64      `gorm:"not null"`
	FinalTotal     int64      `gorm:"not null"`
	Status         string     `gorm:"size:32;index:idx_bookings_pending_expiry;not null"`
	PaymentStatus  string     `gorm:"size:16;not null"`
	PaymentMethod  string     `gorm:"size:64"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
	Version        int64      `gorm:"not null"`
}

func (bookingRow) TableName() string { return "bookings" }

type slotClaimRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	CourtID       int64  `gorm:"not null"`
	SlotDate      string `gorm:"size:10;not null"`
	SlotStart     string `gorm:"size:5;not null"`
	InvoiceNumber string `gorm:"size:64;index;not null"`
	Active        bool   `gorm:"not null"`
}

func (slotClaimRow) TableName() string { return "booking_slots" }

type courtRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement:false"`
	ArenaID    int64  `gorm:"not null"`
	Name       string `gorm:"size:128"`
	HourlyRate int64  `gorm:"not null"`
	Active     bool   `gorm:"not null"`
	OpenHour   int
	CloseHour  int
}

func (courtRow) TableName() string { return "courts" }

type voucherRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Code        string `gorm:"size:64;index"`
	Type        string `gorm:"size:16;not null"`
	Value       int64  `gorm:"not null"`
	MinPurchase int64
	MaxDiscount int64
	Active      bool `gorm:"not null"`
}

func (voucherRow) TableName() string { return "vouchers" }

func newBookingRow(b *domainbooking.Booking) bookingRow {
	row := bookingRow{
		ID:             int64(b.ID),
		InvoiceNumber:  b.InvoiceNumber,
		UserID:         b.UserID,
		CourtID:        int64(b.CourtID),
		ArenaID:        b.ArenaID,
		Date:           domainbooking.FormatDate(b.Date),
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Slots:          b.Slots,
		ExpiryTime:     b.ExpiryTime,
		TotalPrice:     b.Price.TotalPrice,
		ServiceFee:     b.Price.ServiceFee,
		ProtectionFee:  b.Price.ProtectionFee,
		DiscountAmount: b.Price.DiscountAmount,
		FinalTotal:     b.Price.FinalTotal,
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		PaymentMethod:  b.PaymentMethod,
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
		Version:        b.Version,
	}
	if b.VoucherID != nil {
		id := int64(*b.VoucherID)
		row.VoucherID = &id
	}
	return row
}

func (r bookingRow) toAggregate() *domainbooking.Booking {
	date, _ := time.Parse(domainbooking.DateLayout, r.Date)
	b := &domainbooking.Booking{
		ID:            domainbooking.BookingID(r.ID),
		InvoiceNumber: r.InvoiceNumber,
		UserID:        r.UserID,
		CourtID:       domaincourts.CourtID(r.CourtID),
		ArenaID:       r.ArenaID,
		Date:          date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Slots:         append([]string(nil), r.Slots...),
		Price: pricing.Breakdown{
			TotalPrice:     r.TotalPrice,
			ServiceFee:     r.ServiceFee,
			ProtectionFee:  r.ProtectionFee,
			DiscountAmount: r.DiscountAmount,
			FinalTotal:     r.FinalTotal,
		},
		Status:        domainbooking.Status(r.Status),
		PaymentStatus: domainbooking.PaymentStatus(r.PaymentStatus),
		PaymentMethod: r.PaymentMethod,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Version:       r.Version,
	}
	if r.ExpiryTime != nil {
		t := r.ExpiryTime.UTC()
		b.ExpiryTime = &t
	}
	if r.VoucherID != nil {
		id := domainvouchers.VoucherID(*r.VoucherID)
		b.VoucherID = &id
	}
	return b
}
