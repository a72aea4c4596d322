package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
)

const claimSavepoint = "slot_claims"

// BookingRepository keeps bookings and their slot claims in Postgres. Live
// claims are locked FOR UPDATE before insertion and the partial unique index
// catches the claim that races past the lock.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	slots, err := domainbooking.ParseSlots(b.Slots)
	if err != nil {
		return err
	}
	starts := domainbooking.StartTimes(slots)
	day := domainbooking.FormatDate(b.Date)
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		taken, err := lockedClaims(tx, b.CourtID, day, starts)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return &domainbooking.SlotConflictError{Slots: taken}
		}
		claims := make([]slotClaimRow, 0, len(starts))
		for _, start := range starts {
			claims = append(claims, slotClaimRow{
				CourtID:       int64(b.CourtID),
				SlotDate:      day,
				SlotStart:     start,
				InvoiceNumber: b.InvoiceNumber,
				Active:        b.Status.ClaimsSlots(),
			})
		}
		if err := tx.SavePoint(claimSavepoint).Error; err != nil {
			return err
		}
		if err := tx.Create(&claims).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			if err := tx.RollbackTo(claimSavepoint).Error; err != nil {
				return err
			}
			taken, lookupErr := lockedClaims(tx, b.CourtID, day, starts)
			if lookupErr != nil || len(taken) == 0 {
				taken = append([]string(nil), starts...)
			}
			return &domainbooking.SlotConflictError{Slots: taken}
		}
		row := newBookingRow(b)
		row.ID = 0
		row.Version = 1
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		b.ID = domainbooking.BookingID(row.ID)
		b.Version = row.Version
		return nil
	})
}

func lockedClaims(tx *gorm.DB, courtID domaincourts.CourtID, day string, starts []string) ([]string, error) {
	var rows []slotClaimRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("court_id = ? AND slot_date = ? AND active AND slot_start IN ?", int64(courtID), day, starts).
		Order("slot_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.SlotStart)
	}
	return out, nil
}

func (r *BookingRepository) ByInvoice(ctx context.Context, invoice string) (*domainbooking.Booking, error) {
	var row bookingRow
	if err := conn(ctx, r.db).Where("invoice_number = ?", invoice).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	return inTx(ctx, r.db, func(tx *gorm.DB) error {
		row := newBookingRow(b)
		res := tx.Model(&bookingRow{}).
			Where("id = ? AND version = ?", row.ID, b.Version).
			Updates(map[string]any{
				"voucher_id":      row.VoucherID,
				"expiry_time":     row.ExpiryTime,
				"total_price":     row.TotalPrice,
				"service_fee":     row.ServiceFee,
				"protection_fee":  row.ProtectionFee,
				"discount_amount": row.DiscountAmount,
				"final_total":     row.FinalTotal,
				"status":          row.Status,
				"payment_status":  row.PaymentStatus,
				"payment_method":  row.PaymentMethod,
				"updated_at":      row.UpdatedAt,
				"version":         b.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domainbooking.ErrConcurrentUpdate
		}
		b.Version++
		if !b.Status.ClaimsSlots() {
			return release(tx, []string{b.InvoiceNumber})
		}
		return nil
	})
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := conn(ctx, r.db).Where("user_id = ?", userID).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAggregates(rows), nil
}

func (r *BookingRepository) ActiveSlots(ctx context.Context, courtID domaincourts.CourtID, date time.Time) ([]string, error) {
	var starts []string
	err := conn(ctx, r.db).Model(&slotClaimRow{}).
		Where("court_id = ? AND slot_date = ? AND active", int64(courtID), domainbooking.FormatDate(date)).
		Order("slot_start ASC").
		Pluck("slot_start", &starts).Error
	return starts, err
}

// ExpireStale locks stale pending rows, skipping rows another sweeper holds,
// and flips them in a single UPDATE.
func (r *BookingRepository) ExpireStale(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	now = now.UTC()
	var rows []bookingRow
	err := inTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND expiry_time < ?", string(domainbooking.StatusPending), now).
			Order("id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(rows))
		invoices := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			invoices = append(invoices, row.InvoiceNumber)
		}
		if err := tx.Model(&bookingRow{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":         string(domainbooking.StatusExpired),
				"payment_status": string(domainbooking.PaymentUnpaid),
				"expiry_time":    nil,
				"updated_at":     now,
				"version":        gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}
		return release(tx, invoices)
	})
	if err != nil {
		return nil, err
	}
	out := toAggregates(rows)
	for _, b := range out {
		b.Status = domainbooking.StatusExpired
		b.PaymentStatus = domainbooking.PaymentUnpaid
		b.ExpiryTime = nil
		b.UpdatedAt = now
		b.Version++
	}
	return out, nil
}

func release(tx *gorm.DB, invoices []string) error {
	return tx.Model(&slotClaimRow{}).
		Where("invoice_number IN ? AND active", invoices).
		Update("active", false).Error
}

func toAggregates(rows []bookingRow) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAggregate())
	}
	return out
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
