// internal/service/order/infrastructure/gorm_product_repository.go
package infrastructure

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"chomp/internal/service/order/domain"
)

// GormProductRepository 是目录存储的 GORM 实现。
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// GetByIDs 批量加载，缺失的 ID 不在结果里，由调用方对账出
// NotFoundError（批量报告所有缺失项）。
func (r *GormProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", strIDs).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	out := make([]domain.Product, 0, len(models))
	for i := range models {
		out = append(out, toDomainProduct(&models[i]))
	}
	return out, nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.db.WithContext(ctx).Create(toProductModel(product)).Error; err != nil {
		return errors.Wrapf(err, "create product %s", product.ID)
	}
	return nil
}

func (r *GormProductRepository) Save(ctx context.Context, product *domain.Product) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", product.ID.String()).
		Updates(map[string]interface{}{
			"name":        product.Name,
			"price_cents": product.PriceCents,
			"stock":       product.Stock,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "save product %s", product.ID)
	}
	if res.RowsAffected == 0 {
		return domain.NewProductsNotFound([]uuid.UUID{product.ID})
	}
	return nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&ProductModel{}).Error; err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	return nil
}
