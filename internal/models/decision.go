package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DecisionState 决策周期的终态
type DecisionState string

const (
	DecisionStateCommitted DecisionState = "committed" // 正常完成（含 hold）
	DecisionStateRejected  DecisionState = "rejected"  // 订单校验被拒
	DecisionStateFailed    DecisionState = "failed"    // 周期失败（超时/配置缺失等）
)

// DecisionAction 决策动作
type DecisionAction string

const (
	DecisionActionBuy  DecisionAction = "buy"
	DecisionActionSell DecisionAction = "sell"
	DecisionActionHold DecisionAction = "hold"
)

// Decision 决策审计记录，每个周期无论成败恰好写入一条
type Decision struct {
	ID               string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	AccountID        string          `gorm:"type:varchar(26);not null;index" json:"account_id"`
	Cycle            int             `gorm:"not null;index" json:"cycle"`                    // 账户内周期序号
	State            DecisionState   `gorm:"type:varchar(20);not null" json:"state"`         // 终态
	Action           DecisionAction  `gorm:"type:varchar(10);not null" json:"action"`        // buy/sell/hold
	Symbol           string          `gorm:"type:varchar(20)" json:"symbol"`                 // 非 hold 时的交易对
	Quantity         decimal.Decimal `gorm:"type:decimal(20,8)" json:"quantity"`             // 非 hold 时的数量
	Reasoning        string          `gorm:"type:text" json:"reasoning"`                     // 模型给出的理由，解析失败时保留原始输出
	ContextSnapshot  datatypes.JSON  `gorm:"type:json" json:"context_snapshot"`              // 输入上下文快照
	OrderID          *string         `gorm:"type:varchar(26);index" json:"order_id"`         // 关联订单，hold 或失败为空
	Model            string          `gorm:"type:varchar(100)" json:"model"`                 // 使用的模型
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	ExecutedAt       time.Time       `gorm:"not null;index" json:"executed_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Decision) TableName() string {
	return "decisions"
}
