package model

import (
	"time"

	"gorm.io/datatypes"
)

// Memory 用户记忆档案
// 对应数据库表 memories，每个用户最多一条
// JSON 字段名与保存接口的请求体一致，读到的档案可以原样提交回去
type Memory struct {
	ID     int64  `gorm:"primaryKey" json:"-"`
	UserID string `gorm:"size:36;uniqueIndex;not null" json:"user_id"`

	// RoleText 用户的职业/身份描述
	RoleText string `gorm:"type:mediumtext" json:"wyd"`

	// KnowledgeText 需要 AI 知道的重要信息
	KnowledgeText string `gorm:"type:mediumtext" json:"know"`

	// TraitText 希望 AI 采用的性格特征
	TraitText string `gorm:"type:mediumtext" json:"trait"`

	// DocumentFilename 上传文档的文件名，可为 NULL
	DocumentFilename *string `gorm:"size:255" json:"pdf_filename"`

	// StructuredData 文档提取出的结构化数据
	// 只做序列化/反序列化，不解析其中的字段
	StructuredData datatypes.JSON `json:"structured_data"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Memory) TableName() string {
	return "memories"
}

// HasStructuredData 判断是否存在结构化数据（JSON null 视为不存在）
func (m *Memory) HasStructuredData() bool {
	if m == nil || len(m.StructuredData) == 0 {
		return false
	}
	return string(m.StructuredData) != "null"
}
