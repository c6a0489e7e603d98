package repo

import (
	"context"

	"github.com/dushixiang/flux/internal/models"
	"github.com/go-orz/orz"
	"gorm.io/gorm"
)

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{
		Repository: orz.NewRepository[models.Account, string](db),
	}
}

type AccountRepo struct {
	orz.Repository[models.Account, string]
}

// FindAllOrderByCreatedAt 获取所有账户（按创建时间排序）
func (r AccountRepo) FindAllOrderByCreatedAt(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	db := r.GetDB(ctx)
	err := db.Table(r.GetTableName()).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// ExistsByName 判断账户名称是否已被其他账户使用
func (r AccountRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var count int64
	db := r.GetDB(ctx)
	query := db.Table(r.GetTableName()).Where("name = ?", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// UpdateCashWithVersion 以乐观锁方式更新现金余额，返回是否命中当前版本
func (r AccountRepo) UpdateCashWithVersion(ctx context.Context, id string, version int64, updates map[string]interface{}) (bool, error) {
	db := r.GetDB(ctx)
	updates["version"] = version + 1
	result := db.Table(r.GetTableName()).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
