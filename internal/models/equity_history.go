package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityHistory 账户净值历史，每个周期结束后记录一条
type EquityHistory struct {
	ID            string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	AccountID     string          `gorm:"type:varchar(26);not null;index" json:"account_id"`
	Cycle         int             `gorm:"not null" json:"cycle"`
	Cash          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"cash"`           // 现金
	PositionValue decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"position_value"` // 按最新价计算的持仓市值
	Equity        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"equity"`         // 总净值
	ReturnPercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"return_percent"`          // 相对初始资金收益率
	RecordedAt    time.Time       `gorm:"not null;index" json:"recorded_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (EquityHistory) TableName() string {
	return "equity_histories"
}
