package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type inboxRow struct {
	EventID    string    `gorm:"primaryKey;size:128"`
	Consumer   string    `gorm:"primaryKey;size:64"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (inboxRow) TableName() string { return "app_inbox" }

type InboxStore struct {
	db       *gorm.DB
	consumer string
}

func NewInboxStore(db *gorm.DB, consumer string) *InboxStore {
	return &InboxStore{db: db, consumer: consumer}
}

func (s *InboxStore) Processed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := conn(ctx, s.db).Model(&inboxRow{}).
		Where("event_id = ? AND consumer = ?", eventID, s.consumer).
		Count(&n).Error
	return n > 0, err
}

// MarkProcessed inserts with ON CONFLICT DO NOTHING so a duplicate does not
// abort the surrounding transaction.
func (s *InboxStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	row := inboxRow{EventID: eventID, Consumer: s.consumer, ReceivedAt: time.Now().UTC()}
	res := conn(ctx, s.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
