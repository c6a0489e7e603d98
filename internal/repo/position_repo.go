package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewPositionRepo(db *gorm.DB) *PositionRepo {
	return &PositionRepo{
		Repository: orz.NewRepository[models.Position, string](db),
	}
}

type PositionRepo struct {
	orz.Repository[models.Position, string]
}

// FindByAccountID 获取指定账户的所有持仓
func (r PositionRepo) FindByAccountID(ctx context.Context, accountID string) ([]models.Position, error) {
	var positions []models.Position
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Where("account_id = ?", accountID).
		Order("symbol ASC").
		Find(&positions).Error
	return positions, err
}

// FindByAccountAndSymbol 获取指定账户某个交易对的持仓
func (r PositionRepo) FindByAccountAndSymbol(ctx context.Context, accountID, symbol string) (m models.Position, err error) {
	db := r.GetDB(ctx)
	err = db.Table(r.GetTableName()).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&m).Error
	return m, err
}

// DeleteByAccountID 删除指定账户的所有持仓（账户级联删除）
func (r PositionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	db := r.GetDB(ctx)
	return db.Where("account_id = ?", accountID).Delete(&models.Position{}).Error
}
