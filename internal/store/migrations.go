package store

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies all schema migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&User{},
					&Chapter{},
					&Topic{},
					&ChatSession{},
					&ChatMessage{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"users", "chapters", "topics", "chat_sessions", "chat_messages",
				)
			},
		},
		{
			ID: "002_llm_request_events",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&LLMRequestEvent{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("llm_request_events")
			},
		},
	})

	return m.Migrate()
}
