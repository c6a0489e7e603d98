package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewDecisionQARepo(db *gorm.DB) *DecisionQARepo {
	return &DecisionQARepo{
		Repository: orz.NewRepository[models.DecisionQA, string](db),
	}
}

type DecisionQARepo struct {
	orz.Repository[models.DecisionQA, string]
}

// FindByAccountID 获取指定账户的问答历史（最新在前）
func (r DecisionQARepo) FindByAccountID(ctx context.Context, accountID string) ([]models.DecisionQA, error) {
	var entries []models.DecisionQA
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// DeleteByAccountID 删除指定账户的所有问答记录（账户级联删除）
func (r DecisionQARepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.DecisionQA{}).Error
}
