package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus 订单状态。结算在单个事务内完成，失败时挂起的订单
// 随事务整体回滚，因此没有单独的“结算失败”终态。
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"  // 待成交
	OrderStatusFilled   OrderStatus = "filled"   // 已成交
	OrderStatusRejected OrderStatus = "rejected" // 校验拒绝
)

// Order 订单，由执行器创建，终态由结算层或拒绝路径写入
type Order struct {
	ID        string          `gorm:"primaryKey;type:varchar(26)" json:"id"`
	AccountID string          `gorm:"type:varchar(26);not null;index" json:"account_id"`
	Symbol    string          `gorm:"type:varchar(20);not null;index" json:"symbol"`
	Side      OrderSide       `gorm:"type:varchar(10);not null" json:"side"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`              // 请求数量
	Price     decimal.Decimal `gorm:"type:decimal(20,8)" json:"price"`                          // 成交价（拒绝单为校验时价格）
	Status    OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Reason    string          `gorm:"type:text" json:"reason"` // 下单理由，拒绝单为拒绝原因
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (*Order) TableName() string {
	return "orders"
}
