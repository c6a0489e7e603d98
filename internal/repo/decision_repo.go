package repo

import (
	"context"
	"errors"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewDecisionRepo(db *gorm.DB) *DecisionRepo {
	return &DecisionRepo{
		Repository: orz.NewRepository[models.Decision, string](db),
	}
}

type DecisionRepo struct {
	orz.Repository[models.Decision, string]
}

// FindRecentByAccountID 获取指定账户最近的决策记录
func (r DecisionRepo) FindRecentByAccountID(ctx context.Context, accountID string, limit int) ([]models.Decision, error) {
	var decisions []models.Decision
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&decisions).Error
	return decisions, err
}

// FindLatestCycle 获取指定账户最近一次决策的周期序号，无记录时返回 0
func (r DecisionRepo) FindLatestCycle(ctx context.Context, accountID string) (int, error) {
	var decision models.Decision
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("cycle DESC").
		First(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decision.Cycle, nil
}

// CountByAccountID 统计指定账户的决策总数
func (r DecisionRepo) CountByAccountID(ctx context.Context, accountID string) (int64, error) {
	var count int64
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

// DeleteByAccountID 删除指定账户的所有决策记录（账户级联删除）
func (r DecisionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.Decision{}).Error
}
