package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "courtbook/internal/domain/booking"
	domaincourts "courtbook/internal/domain/courts"
	"courtbook/internal/domain/pricing"
	domainvouchers "courtbook/internal/domain/vouchers"
)

const (
	bookingsCollection = "bookings"
	claimsCollection   = "booking_slots"
	countersCollection = "counters"
)

// BookingRepository stores bookings in one collection and their slot claims
// in another. A partial unique index over active claims makes a second claim
// on the same (court, date, start) fail inside the creating transaction.
type BookingRepository struct {
	bookings *mongo.Collection
	claims   *mongo.Collection
	counters *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{
		bookings: db.Collection(bookingsCollection),
		claims:   db.Collection(claimsCollection),
		counters: db.Collection(countersCollection),
	}
}

func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "invoice_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiry_time", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "expired_by", Value: 1}}, Options: options.Index().SetSparse(true)},
	}); err != nil {
		return fmt.Errorf("booking indexes: %w", err)
	}
	_, err := r.claims.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "court_id", Value: 1}, {Key: "date", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}).
				SetName("active_slot_unique"),
		},
		{Keys: bson.D{{Key: "invoice_number", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("claim indexes: %w", err)
	}
	return nil
}

func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	slots, err := domainbooking.ParseSlots(b.Slots)
	if err != nil {
		return err
	}
	id, err := r.nextID()
	if err != nil {
		return err
	}
	day := domainbooking.FormatDate(b.Date)
	claims := make([]any, 0, len(slots))
	starts := domainbooking.StartTimes(slots)
	for _, start := range starts {
		claims = append(claims, claimDocument{
			CourtID:       int64(b.CourtID),
			Date:          day,
			Start:         start,
			InvoiceNumber: b.InvoiceNumber,
			Active:        b.Status.ClaimsSlots(),
		})
	}
	if _, err := r.claims.InsertMany(ctx, claims); err != nil {
		if isClaimCollision(err) {
			return r.conflictFor(b.CourtID, day, starts)
		}
		return err
	}
	b.ID = domainbooking.BookingID(id)
	b.Version = 1
	if _, err := r.bookings.InsertOne(ctx, newBookingDocument(b)); err != nil {
		return err
	}
	return nil
}

func (r *BookingRepository) ByInvoice(ctx context.Context, invoice string) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.bookings.FindOne(ctx, bson.M{"invoice_number": invoice}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	res, err := r.bookings.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	if !b.Status.ClaimsSlots() {
		return r.release(ctx, []string{b.InvoiceNumber})
	}
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]*domainbooking.Booking, error) {
	cur, err := r.bookings.Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodeBookings(ctx, cur)
}

func (r *BookingRepository) ActiveSlots(ctx context.Context, courtID domaincourts.CourtID, date time.Time) ([]string, error) {
	filter := bson.M{"court_id": int64(courtID), "date": domainbooking.FormatDate(date), "active": true}
	cur, err := r.claims.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []claimDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Start)
	}
	return out, nil
}

// ExpireStale flips every stale pending booking in one UpdateMany and frees
// their claims. The update stamps a per-sweep token and only bookings carrying
// it are returned, so a concurrent sweep never hands back the same booking.
// Run it inside a unit of work so the steps commit together.
func (r *BookingRepository) ExpireStale(ctx context.Context, now time.Time) ([]*domainbooking.Booking, error) {
	stale := bson.M{"status": string(domainbooking.StatusPending), "expiry_time": bson.M{"$lt": now.UTC()}}
	cur, err := r.bookings.Find(ctx, stale, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var refs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &refs); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	filter, update, claimed := expireStaleOps(ids, now, uuid.NewString())
	res, err := r.bookings.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if res.ModifiedCount == 0 {
		return nil, nil
	}
	cur, err = r.bookings.Find(ctx, claimed, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	expired, err := decodeBookings(ctx, cur)
	if err != nil {
		return nil, err
	}
	mine := make([]string, 0, len(expired))
	for _, b := range expired {
		mine = append(mine, b.InvoiceNumber)
	}
	if err := r.release(ctx, mine); err != nil {
		return nil, err
	}
	return expired, nil
}

// expireStaleOps builds the bulk expiry of ids stamped with sweep and the
// filter matching exactly the bookings that update moved.
func expireStaleOps(ids []int64, now time.Time, sweep string) (filter, update, claimed bson.M) {
	filter = bson.M{"_id": bson.M{"$in": ids}, "status": string(domainbooking.StatusPending)}
	update = bson.M{
		"$set": bson.M{
			"status":         string(domainbooking.StatusExpired),
			"payment_status": string(domainbooking.PaymentUnpaid),
			"updated_at":     now.UTC(),
			"expiry_time":    nil,
			"expired_by":     sweep,
		},
		"$inc": bson.M{"version": 1},
	}
	return filter, update, bson.M{"expired_by": sweep}
}

func (r *BookingRepository) release(ctx context.Context, invoices []string) error {
	_, err := r.claims.UpdateMany(ctx,
		bson.M{"invoice_number": bson.M{"$in": invoices}, "active": true},
		bson.M{"$set": bson.M{"active": false}},
	)
	return err
}

func (r *BookingRepository) nextID() (int64, error) {
	ctx, cancel := detached()
	defer cancel()
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": bookingsCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocate booking id: %w", err)
	}
	return doc.Seq, nil
}

// conflictFor names the requested starts already claimed. A competing claim
// that is not committed yet is invisible here, so every requested start is
// reported in that case.
func (r *BookingRepository) conflictFor(courtID domaincourts.CourtID, day string, starts []string) error {
	ctx, cancel := detached()
	defer cancel()
	filter := bson.M{"court_id": int64(courtID), "date": day, "start": bson.M{"$in": starts}, "active": true}
	cur, err := r.claims.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err == nil {
		var docs []claimDocument
		if err = cur.All(ctx, &docs); err == nil && len(docs) > 0 {
			taken := make([]string, 0, len(docs))
			for _, d := range docs {
				taken = append(taken, d.Start)
			}
			return &domainbooking.SlotConflictError{Slots: taken}
		}
	}
	return &domainbooking.SlotConflictError{Slots: append([]string(nil), starts...)}
}

func isClaimCollision(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var labeled mongo.ServerError
	return errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError")
}

func decodeBookings(ctx context.Context, cur *mongo.Cursor) ([]*domainbooking.Booking, error) {
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type claimDocument struct {
	CourtID       int64  `bson:"court_id"`
	Date          string `bson:"date"`
	Start         string `bson:"start"`
	InvoiceNumber string `bson:"invoice_number"`
	Active        bool   `bson:"active"`
}

type priceDocument struct {
	TotalPrice     int64 `bson:"total_price"`
	ServiceFee     int64 `bson:"service_fee"`
	ProtectionFee  int64 `bson:"protection_fee"`
	DiscountAmount int64 `bson:"discount_amount"`
	FinalTotal     int64 `bson:"final_total"`
}

type bookingDocument struct {
	ID            int64         `bson:"_id"`
	InvoiceNumber string        `bson:"invoice_number"`
	UserID        int64         `bson:"user_id"`
	CourtID       int64         `bson:"court_id"`
	ArenaID       int64         `bson:"arena_id"`
	VoucherID     *int64        `bson:"voucher_id"`
	Date          string        `bson:"date"`
	StartTime     string        `bson:"start_time"`
	EndTime       string        `bson:"end_time"`
	Slots         []string      `bson:"slots"`
	ExpiryTime    *time.Time    `bson:"expiry_time"`
	Price         priceDocument `bson:"price"`
	Status        string        `bson:"status"`
	PaymentStatus string        `bson:"payment_status"`
	PaymentMethod string        `bson:"payment_method"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
	Version       int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:            int64(b.ID),
		InvoiceNumber: b.InvoiceNumber,
		UserID:        b.UserID,
		CourtID:       int64(b.CourtID),
		ArenaID:       b.ArenaID,
		Date:          domainbooking.FormatDate(b.Date),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Slots:         b.Slots,
		ExpiryTime:    b.ExpiryTime,
		Price: priceDocument{
			TotalPrice:     b.Price.TotalPrice,
			ServiceFee:     b.Price.ServiceFee,
			ProtectionFee:  b.Price.ProtectionFee,
			DiscountAmount: b.Price.DiscountAmount,
			FinalTotal:     b.Price.FinalTotal,
		},
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentMethod: b.PaymentMethod,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
		Version:       b.Version,
	}
	if b.VoucherID != nil {
		id := int64(*b.VoucherID)
		doc.VoucherID = &id
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	date, _ := time.Parse(domainbooking.DateLayout, d.Date)
	b := &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		InvoiceNumber: d.InvoiceNumber,
		UserID:        d.UserID,
		CourtID:       domaincourts.CourtID(d.CourtID),
		ArenaID:       d.ArenaID,
		Date:          date,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		Slots:         d.Slots,
		Price: pricing.Breakdown{
			TotalPrice:     d.Price.TotalPrice,
			ServiceFee:     d.Price.ServiceFee,
			ProtectionFee:  d.Price.ProtectionFee,
			DiscountAmount: d.Price.DiscountAmount,
			FinalTotal:     d.Price.FinalTotal,
		},
		Status:        domainbooking.Status(d.Status),
		PaymentStatus: domainbooking.PaymentStatus(d.PaymentStatus),
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
	if d.ExpiryTime != nil {
		t := d.ExpiryTime.UTC()
		b.ExpiryTime = &t
	}
	if d.VoucherID != nil {
		id := domainvouchers.VoucherID(*d.VoucherID)
		b.VoucherID = &id
	}
	return b
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
