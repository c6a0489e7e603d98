package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position 持仓，(account_id, symbol) 唯一，仅由结算层修改
type Position struct {
	ID        string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	AccountID string          `gorm:"type:varchar(26);not null;uniqueIndex:idx_account_symbol" json:"account_id"`
	Symbol    string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_account_symbol" json:"symbol"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"` // 持仓数量，非负
	AvgCost   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"avg_cost"` // 加权平均成本，仅买入时更新
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Position) TableName() string {
	return "positions"
}

// MarketValue 以指定价格计算持仓市值
func (p *Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}
