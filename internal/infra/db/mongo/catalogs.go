package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
)

// CourtCatalog reads the courts collection. The catalog is owned elsewhere;
// PutCourt exists for fixtures.
type CourtCatalog struct {
	col *mongo.Collection
}

func NewCourtCatalog(db *mongo.Database) *CourtCatalog {
	return &CourtCatalog{col: db.Collection("courts")}
}

func (c *CourtCatalog) ByID(ctx context.Context, id domaincourts.CourtID) (*domaincourts.Court, error) {
	var doc courtDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincourts.ErrCourtNotFound
		}
		return nil, err
	}
	court := doc.toDomain()
	return &court, nil
}

func (c *CourtCatalog) PutCourt(ctx context.Context, court domaincourts.Court) error {
	doc := courtDocument{
		ID:         int64(court.ID),
		ArenaID:    court.ArenaID,
		Name:       court.Name,
		HourlyRate: court.HourlyRate,
		Active:     court.Active,
		OpenHour:   court.OpenHour,
		CloseHour:  court.CloseHour,
	}
	_, err := c.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type courtDocument struct {
	ID         int64  `bson:"_id"`
	ArenaID    int64  `bson:"arena_id"`
	Name       string `bson:"name"`
	HourlyRate int64  `bson:"hourly_rate"`
	Active     bool   `bson:"active"`
	OpenHour   int    `bson:"open_hour"`
	CloseHour  int    `bson:"close_hour"`
}

func (d courtDocument) toDomain() domaincourts.Court {
	return domaincourts.Court{
		ID:         domaincourts.CourtID(d.ID),
		ArenaID:    d.ArenaID,
		Name:       d.Name,
		HourlyRate: d.HourlyRate,
		Active:     d.Active,
		OpenHour:   d.OpenHour,
		CloseHour:  d.CloseHour,
	}
}

type VoucherCatalog struct {
	col *mongo.Collection
}

func NewVoucherCatalog(db *mongo.Database) *VoucherCatalog {
	return &VoucherCatalog{col: db.Collection("vouchers")}
}

func (c *VoucherCatalog) EnsureIndexes(ctx context.Context) error {
	_, err := c.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return err
}

func (c *VoucherCatalog) ByID(ctx context.Context, id domainvouchers.VoucherID) (*domainvouchers.Voucher, error) {
	return c.findOne(ctx, bson.M{"_id": int64(id)})
}

func (c *VoucherCatalog) ByCode(ctx context.Context, code string) (*domainvouchers.Voucher, error) {
	return c.findOne(ctx, bson.M{"code": domainvouchers.NormalizeCode(code)})
}

func (c *VoucherCatalog) findOne(ctx context.Context, filter bson.M) (*domainvouchers.Voucher, error) {
	var doc voucherDocument
	if err := c.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainvouchers.ErrVoucherNotFound
		}
		return nil, err
	}
	v := doc.toDomain()
	return &v, nil
}

func (c *VoucherCatalog) PutVoucher(ctx context.Context, v domainvouchers.Voucher) error {
	doc := voucherDocument{
		ID:          int64(v.ID),
		Code:        domainvouchers.NormalizeCode(v.Code),
		Type:        string(v.Type),
		Value:       v.Value,
		MinPurchase: v.MinPurchase,
		MaxDiscount: v.MaxDiscount,
		Active:      v.Active,
	}
	_, err := c.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type voucherDocument struct {
	ID          int64  `bson:"_id"`
	Code        string `bson:"code,omitempty"`
	Type        string `bson:"type"`
	Value       int64  `bson:"value"`
	MinPurchase int64  `bson:"min_purchase"`
	MaxDiscount int64  `bson:"max_discount"`
	Active      bool   `bson:"active"`
}

func (d voucherDocument) toDomain() domainvouchers.Voucher {
	return domainvouchers.Voucher{
		ID:          domainvouchers.VoucherID(d.ID),
		Code:        d.Code,
		Type:        domainvouchers.DiscountType(d.Type),
		Value:       d.Value,
		MinPurchase: d.MinPurchase,
		MaxDiscount: d.MaxDiscount,
		Active:      d.Active,
	}
}

// Catalogs pairs the two catalogs so fixtures can seed both.
type Catalogs struct {
	*CourtCatalog
	*VoucherCatalog
}

var (
	_ domaincourts.Catalog   = (*CourtCatalog)(nil)
	_ domainvouchers.Catalog = (*VoucherCatalog)(nil)
)
