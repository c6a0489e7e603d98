package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewTradeRepo(db *gorm.DB) *TradeRepo {
	return &TradeRepo{
		Repository: orz.NewRepository[models.Trade, string](db),
	}
}

type TradeRepo struct {
	orz.Repository[models.Trade, string]
}

// FindRecentByAccountID 获取指定账户最近的成交记录
func (r TradeRepo) FindRecentByAccountID(ctx context.Context, accountID string, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&trades).Error
	return trades, err
}

// DeleteByAccountID 删除指定账户的所有成交记录（账户级联删除）
func (r TradeRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.Trade{}).Error
}
