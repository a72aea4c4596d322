package fixtures

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	domaincourts "courtbook/internal/domain/courts"
	domainvouchers "courtbook/internal/domain/vouchers"
	"courtbook/internal/infra/storage/memory"
)

const sample = `{
  "courts": [
    {"id": 1, "arena_id": 10, "name": "Court A", "hourly_rate": 50000, "open_hour": 8, "close_hour": 22},
    {"id": 4, "arena_id": 20, "name": "Closed", "hourly_rate": 75000, "active": false}
  ],
  "vouchers": [
    {"id": 2, "code": "flat15k", "type": "fixed", "value": 15000, "min_purchase": 100000}
  ]
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	catalogs := memory.Catalogs{CourtCatalog: memory.NewCourtCatalog(), VoucherCatalog: memory.NewVoucherCatalog()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	if err := Load(ctx, path, catalogs, logger); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	court, err := catalogs.CourtCatalog.ByID(ctx, 1)
	if err != nil {
		t.Fatalf("court 1: %v", err)
	}
	if !court.Active || court.HourlyRate != 50_000 || court.ArenaID != 10 {
		t.Errorf("court 1 = %+v", court)
	}
	closed, _ := catalogs.CourtCatalog.ByID(ctx, 4)
	if closed == nil || closed.Active {
		t.Errorf("court 4 = %+v, want inactive", closed)
	}

	v, err := catalogs.VoucherCatalog.ByCode(ctx, "FLAT15K")
	if err != nil {
		t.Fatalf("voucher: %v", err)
	}
	if v.Type != domainvouchers.DiscountFixed || v.Value != 15_000 || !v.Active {
		t.Errorf("voucher = %+v", v)
	}
	if _, err := catalogs.CourtCatalog.ByID(ctx, 99); !errors.Is(err, domaincourts.ErrCourtNotFound) {
		t.Errorf("unknown court error = %v", err)
	}
}

func TestLoadMissingFileIsSkipped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalogs := memory.Catalogs{CourtCatalog: memory.NewCourtCatalog(), VoucherCatalog: memory.NewVoucherCatalog()}
	if err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"), catalogs, logger); err != nil {
		t.Errorf("Load() missing file error = %v", err)
	}
	if err := Load(context.Background(), "", catalogs, logger); err != nil {
		t.Errorf("Load() empty path error = %v", err)
	}
}

func TestReadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(path, []byte(`{"courts": [`), 0o600)
	if _, err := Read(path); err == nil {
		t.Error("Read() accepted malformed JSON")
	}
}
