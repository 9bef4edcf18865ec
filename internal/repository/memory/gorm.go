package memory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xpanvictor/quil-bridge/pkg/utils"
)

type SummaryEntity struct {
	ID        uuid.UUID `gorm:"primaryKey;type:char(36);not null"`
	SessionID string    `gorm:"column:session_id;type:varchar(191);uniqueIndex;not null"`
	Summary   string    `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`
}

func (SummaryEntity) TableName() string { return "session_memories" }

func (se *SummaryEntity) ToDomain() *Summary {
	return &Summary{
		SessionID: se.SessionID,
		Summary:   se.Summary,
		UpdatedAt: se.UpdatedAt,
	}
}

type gormStore struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (g *gormStore) Load(ctx context.Context, sessionID string) (*Summary, error) {
	var se SummaryEntity
	err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("updated_at desc").
		First(&se).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.XError{Reason: "loading memory", Meta: err}.ToError()
	}
	return se.ToDomain(), nil
}

// Save upserts on session_id.
func (g *gormStore) Save(ctx context.Context, sessionID, summary string) error {
	se := SummaryEntity{
		ID:        uuid.New(),
		SessionID: sessionID,
		Summary:   summary,
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
	}).Create(&se).Error
	if err != nil {
		return utils.XError{Reason: "storing memory", Meta: err}.ToError()
	}
	return nil
}
