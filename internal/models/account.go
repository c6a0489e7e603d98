package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LLMProvider 推理服务提供方
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai" // OpenAI 兼容接口（chat/completions）
	LLMProviderGemini LLMProvider = "gemini" // Google Gemini
)

// Account 交易账户，每个账户绑定独立的推理服务配置
type Account struct {
	ID             string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Name           string          `gorm:"type:varchar(100);not null" json:"name"`                 // 账户名称
	Cash           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cash"`                // 现金余额
	InitialCapital decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"initial_capital"`     // 初始资金
	Version        int64           `gorm:"not null;default:0" json:"-"`                            // 乐观锁版本号，仅结算路径修改

	// 推理服务配置
	Provider           LLMProvider `gorm:"type:varchar(20);not null;default:'openai'" json:"provider"`
	BaseURL            string      `gorm:"type:varchar(255)" json:"base_url"`   // API基础URL
	APIKey             string      `gorm:"type:varchar(255)" json:"-"`          // API密钥，不返回给前端
	Model              string      `gorm:"type:varchar(100)" json:"model"`      // 模型名称
	CustomInstructions string      `gorm:"type:text" json:"custom_instructions"` // 自定义指令，原样拼入提示词

	// 交易配置
	Symbols          datatypes.JSONSlice[string] `gorm:"type:json" json:"symbols"`                  // 关注的交易对
	EnableIndicators bool                        `gorm:"not null;default:true" json:"enable_indicators"` // 是否附带技术指标
	EnableNews       bool                        `gorm:"not null;default:false" json:"enable_news"`      // 是否附带新闻
	IntervalMinutes  int                         `gorm:"not null;default:30" json:"interval_minutes"`    // 决策周期（分钟）

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// ValidateLLMConfig 校验推理服务配置是否完整
func (a *Account) ValidateLLMConfig() []string {
	var missing []string
	if strings.TrimSpace(a.Model) == "" {
		missing = append(missing, "model")
	}
	if strings.TrimSpace(a.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if a.Provider == LLMProviderOpenAI && strings.TrimSpace(a.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	return missing
}
