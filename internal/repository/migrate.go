package repository

import (
	"gorm.io/gorm"

	"neural-chat-server/internal/model"
)

// AutoMigrate 创建或更新所有数据表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Message{},
		&model.Memory{},
	)
}
