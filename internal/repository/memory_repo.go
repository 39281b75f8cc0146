package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neural-chat-server/internal/model"
)

// MemoryRepository 用户记忆档案数据访问层
type MemoryRepository struct {
	db *gorm.DB
}

// NewMemoryRepository 创建 MemoryRepository 实例
func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// GetByUserID 获取用户的记忆档案
// 返回:
//   - *model.Memory: 档案对象，不存在返回 nil
//   - error: 数据库错误
func (r *MemoryRepository) GetByUserID(ctx context.Context, userID string) (*model.Memory, error) {
	var memory model.Memory
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&memory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &memory, nil
}

// Upsert 创建或整体替换用户的记忆档案
// user_id 冲突时覆盖全部内容字段，包括置空的字段
func (r *MemoryRepository) Upsert(ctx context.Context, memory *model.Memory) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"role_text",
			"knowledge_text",
			"trait_text",
			"document_filename",
			"structured_data",
			"updated_at",
		}),
	}).Create(memory).Error
}
