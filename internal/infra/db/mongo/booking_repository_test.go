package mongo

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	domainbooking "courtbook/internal/domain/booking"
)

func TestExpireStaleOpsScopeToOwnSweep(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	ids := []int64{4, 9}

	tests := []struct {
		name  string
		sweep string
	}{
		{name: "first sweep", sweep: "sweep-a"},
		{name: "concurrent sweep", sweep: "sweep-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, update, claimed := expireStaleOps(ids, now, tt.sweep)

			wantFilter := bson.M{"_id": bson.M{"$in": ids}, "status": string(domainbooking.StatusPending)}
			if !reflect.DeepEqual(filter, wantFilter) {
				t.Errorf("filter = %v, want %v", filter, wantFilter)
			}
			set, ok := update["$set"].(bson.M)
			if !ok {
				t.Fatalf("update has no $set: %v", update)
			}
			if set["expired_by"] != tt.sweep {
				t.Errorf("expired_by = %v, want %q", set["expired_by"], tt.sweep)
			}
			if set["status"] != string(domainbooking.StatusExpired) || set["payment_status"] != string(domainbooking.PaymentUnpaid) {
				t.Errorf("$set = %v", set)
			}
			if at, _ := set["updated_at"].(time.Time); !at.Equal(now) || at.Location() != time.UTC {
				t.Errorf("updated_at = %v, want %v", set["updated_at"], now.UTC())
			}
			if want := (bson.M{"expired_by": tt.sweep}); !reflect.DeepEqual(claimed, want) {
				t.Errorf("claimed = %v, want %v", claimed, want)
			}
		})
	}
}
