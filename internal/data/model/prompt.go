package model

// AIPrompt 功能提示词配置表（只读）
type AIPrompt struct {
	ID             string  `gorm:"primaryKey;type:varchar(128)"` // 父功能名或 feature_variant
	Cost           *int64  // NULL/0 使用默认价格
	SystemPrompt   string  `gorm:"type:text;not null"`
	NegativePrompt *string `gorm:"type:text"`
	ModelID        *string `gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (AIPrompt) TableName() string {
	return "ai_prompts"
}
