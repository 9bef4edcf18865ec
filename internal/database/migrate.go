package database

import (
	"gorm.io/gorm"

	"github.com/xpanvictor/quil-bridge/internal/repository/memory"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&memory.SummaryEntity{},
	)
}
