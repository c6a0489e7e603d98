package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{
		Repository: orz.NewRepository[models.Order, string](db),
	}
}

type OrderRepo struct {
	orz.Repository[models.Order, string]
}

// FindRecentByAccountID 获取指定账户最近的订单
func (r OrderRepo) FindRecentByAccountID(ctx context.Context, accountID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// CountPendingByAccountID 统计指定账户处于 pending 状态的订单数
func (r OrderRepo) CountPendingByAccountID(ctx context.Context, accountID string) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ? AND status = ?", accountID, models.OrderStatusPending).
		Count(&count).Error
	return count, err
}

// UpdateStatus 更新订单状态，终态订单不允许再变更
func (r OrderRepo) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, reason string) error {
	db := r.GetDB(ctx)
	updates := map[string]interface{}{
		"status": status,
	}
	if reason != "" {
		updates["reason"] = reason
	}
	return db.Table(r.GetTableName()).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(updates).Error
}

// DeleteByAccountID 删除指定账户的所有订单（账户级联删除）
func (r OrderRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.Order{}).Error
}
