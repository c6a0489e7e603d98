package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade 成交记录，每个已成交订单恰好一条，创建后不可变
type Trade struct {
	ID         string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	OrderID    string          `gorm:"type:varchar(26);not null;uniqueIndex" json:"order_id"`
	AccountID  string          `gorm:"type:varchar(26);not null;index" json:"account_id"`
	Symbol     string          `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Side       OrderSide       `gorm:"type:varchar(10);not null" json:"side"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`      // 成交价格
	Quantity   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`   // 成交数量
	Commission decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"commission"` // 手续费
	ExecutedAt time.Time       `gorm:"not null;index" json:"executed_at"`             // 执行时间
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Trade) TableName() string {
	return "trades"
}
