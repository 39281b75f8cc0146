package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"neural-chat-server/internal/model"
	"neural-chat-server/internal/repository"
	"neural-chat-server/pkg/util"
)

// MemoryStore 记忆档案存储
type MemoryStore interface {
	Get(ctx context.Context, ownerID string) (*model.Memory, error)
	Save(ctx context.Context, ownerID string, fields *MemoryFields) (*model.Memory, error)
}

// MemoryFields 一次保存的完整字段集合
// 未提供的字段会被清空，不做部分合并
type MemoryFields struct {
	RoleText         string          `json:"wyd"`
	KnowledgeText    string          `json:"know"`
	TraitText        string          `json:"trait"`
	DocumentFilename *string         `json:"pdf_filename"`
	StructuredData   json.RawMessage `json:"structured_data"`
}

// MemoryService 记忆档案服务
type MemoryService struct {
	memoryRepo *repository.MemoryRepository
}

// NewMemoryService 创建 MemoryService 实例
func NewMemoryService(memoryRepo *repository.MemoryRepository) *MemoryService {
	return &MemoryService{memoryRepo: memoryRepo}
}

// Get 获取用户的记忆档案
// 还没有档案时返回零值档案，而不是错误
func (s *MemoryService) Get(ctx context.Context, ownerID string) (*model.Memory, error) {
	memory, err := s.memoryRepo.GetByUserID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if memory == nil {
		return &model.Memory{UserID: ownerID}, nil
	}
	return memory, nil
}

// Save 创建或整体替换用户的记忆档案
// 参数:
//   - ctx: 上下文
//   - ownerID: 当前用户ID
//   - fields: 完整字段集合，文本字段会去除首尾空白
//
// 返回:
//   - *model.Memory: 保存后的档案
//   - error: structured_data 不是合法 JSON 时返回 ValidationError
func (s *MemoryService) Save(ctx context.Context, ownerID string, fields *MemoryFields) (*model.Memory, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &ValidationError{Fields: []string{"userId"}}
	}
	if fields == nil {
		fields = &MemoryFields{}
	}

	memory := &model.Memory{
		UserID:        ownerID,
		RoleText:      strings.TrimSpace(fields.RoleText),
		KnowledgeText: strings.TrimSpace(fields.KnowledgeText),
		TraitText:     strings.TrimSpace(fields.TraitText),
	}

	if fields.DocumentFilename != nil {
		if name := strings.TrimSpace(*fields.DocumentFilename); name != "" {
			memory.DocumentFilename = util.StringPtr(name)
		}
	}

	if raw := strings.TrimSpace(string(fields.StructuredData)); raw != "" && raw != "null" {
		if !json.Valid([]byte(raw)) {
			return nil, &ValidationError{Fields: []string{"structured_data"}}
		}
		memory.StructuredData = datatypes.JSON(raw)
	}

	if err := s.memoryRepo.Upsert(ctx, memory); err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return s.Get(ctx, ownerID)
}
