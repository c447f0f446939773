package db

import (
	"clurb/internal/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Document{},
		&domain.Membership{},
		&domain.Invitation{},
		&domain.ReadingProgress{},
		&domain.Annotation{},
		&domain.ChatMessage{},
		&domain.ActivityEvent{},
		&domain.Friendship{},
		&domain.AgentChat{},
		&domain.AgentMessage{},
	}
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}

	log.Info("Database schema migrated successfully")
	return nil
}
