package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewEquityHistoryRepo(db *gorm.DB) *EquityHistoryRepo {
	return &EquityHistoryRepo{
		Repository: orz.NewRepository[models.EquityHistory, string](db),
	}
}

type EquityHistoryRepo struct {
	orz.Repository[models.EquityHistory, string]
}

// FindByAccountIDOrderByRecordedAt 获取指定账户的净值历史（按时间排序）
func (r EquityHistoryRepo) FindByAccountIDOrderByRecordedAt(ctx context.Context, accountID string) ([]models.EquityHistory, error) {
	var histories []models.EquityHistory
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("recorded_at ASC").
		Find(&histories).Error
	return histories, err
}

// DeleteByAccountID 删除指定账户的净值历史（账户级联删除）
func (r EquityHistoryRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.EquityHistory{}).Error
}
