package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "courtbook/internal/app/outbox"
	infraoutbox "courtbook/internal/infra/outbox"
)

type outboxRow struct {
	ID          string            `gorm:"primaryKey;size:64"`
	Name        string            `gorm:"size:128;not null"`
	Payload     []byte            `gorm:"not null"`
	OccurredAt  time.Time         `gorm:"not null"`
	Aggregate   string            `gorm:"size:128"`
	Headers     map[string]string `gorm:"type:jsonb;serializer:json"`
	State       string            `gorm:"size:16;index:idx_outbox_due;not null"`
	Attempts    int               `gorm:"not null"`
	NextAttempt time.Time         `gorm:"column:next_attempt_at;index:idx_outbox_due;not null"`
	ClaimedBy   string            `gorm:"size:64"`
	LastError   string            `gorm:"type:text"`
	SentAt      *time.Time        `gorm:"index"`
	CreatedAt   time.Time         `gorm:"not null"`
}

func (outboxRow) TableName() string { return "app_outbox" }

// OutboxStore writes outbox rows inside the unit's transaction and serves
// the relay with SKIP LOCKED claims.
type OutboxStore struct {
	db    *gorm.DB
	Lease time.Duration
}

func NewOutboxStore(db *gorm.DB) *OutboxStore {
	return &OutboxStore{db: db, Lease: time.Minute}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	now := time.Now().UTC()
	row := outboxRow{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return conn(ctx, s.db).Create(&row).Error
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	lease := s.Lease
	if lease <= 0 {
		lease = time.Minute
	}
	var rows []outboxRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state IN ? AND next_attempt_at <= ?", []string{infraoutbox.StateNew, infraoutbox.StateFailed, infraoutbox.StateClaimed}, now).
			Order("next_attempt_at ASC").
			Limit(1).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Model(&outboxRow{}).Where("id = ?", rows[0].ID).Updates(map[string]any{
			"state":           infraoutbox.StateClaimed,
			"claimed_by":      workerID,
			"next_attempt_at": now.Add(lease),
		}).Error
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	row := rows[0]
	return &infraoutbox.Message{
		ID:          row.ID,
		Name:        row.Name,
		Payload:     row.Payload,
		OccurredAt:  row.OccurredAt,
		Aggregate:   row.Aggregate,
		Headers:     row.Headers,
		Attempts:    row.Attempts,
		NextAttempt: row.NextAttempt,
	}, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   infraoutbox.StateSent,
		"sent_at": now,
	}).Error
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           infraoutbox.StateFailed,
		"next_attempt_at": next.UTC(),
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
}

var (
	_ appoutbox.Outbox  = (*OutboxStore)(nil)
	_ infraoutbox.Store = (*OutboxStore)(nil)
)
