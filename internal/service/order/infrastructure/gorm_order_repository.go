// internal/service/order/infrastructure/gorm_order_repository.go
package infrastructure

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"chomp/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewOrderNotFound(id)
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return toDomainOrder(&model), nil
}

// Save 以版本号 CAS 更新订单头，并整体替换行项目。
// 同一订单上的确认、改单与结算可能并发，版本不匹配即 ErrOptimisticLock。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND version = ?", order.ID.String(), order.Version).
			Updates(map[string]interface{}{
				"payment_type": string(order.PaymentType),
				"status":       string(order.Status),
				"version":      order.Version + 1,
				"updated_at":   order.UpdatedAt,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "save order %s", order.ID)
		}
		if res.RowsAffected == 0 {
			return domain.ErrOptimisticLock
		}

		if err := tx.Where("order_id = ?", order.ID.String()).Delete(&OrderItemModel{}).Error; err != nil {
			return errors.Wrapf(err, "clear items of order %s", order.ID)
		}
		model := toOrderModel(order)
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return errors.Wrapf(err, "replace items of order %s", order.ID)
			}
		}
		order.Version++
		return nil
	})
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id.String()).Delete(&OrderItemModel{}).Error; err != nil {
			return errors.Wrapf(err, "delete items of order %s", id)
		}
		if err := tx.Where("id = ?", id.String()).Delete(&OrderModel{}).Error; err != nil {
			return errors.Wrapf(err, "delete order %s", id)
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("customer_id = ?", customerID.String()).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of customer %s", customerID)
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, nil
}

// CancelAllForCustomer 是单条集合更新，不做 fetch-then-loop，
// 避免并发下的部分生效。
func (r *GormOrderRepository) CancelAllForCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("customer_id = ? AND status IN ?", customerID.String(),
			[]string{string(domain.StatusPending), string(domain.StatusConfirmed)}).
		Updates(map[string]interface{}{
			"status":     string(domain.StatusCancelled),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "cancel orders for customer %s", customerID)
	}
	return res.RowsAffected, nil
}

func (r *GormOrderRepository) FindConfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status = ? AND updated_at < ?", string(domain.StatusConfirmed), cutoff).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find confirmed orders past deadline")
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, nil
}

// CompleteAndDecrementStock 在单个事务里做两件事：订单状态的
// Confirmed→Completed CAS，和每个行项目的条件库存扣减。
// 条件扣减（stock = stock - n，仅当 stock >= n）保证库存永不为负；
// 任何一条未命中都整体回滚，不允许部分扣减。
func (r *GormOrderRepository) CompleteAndDecrementStock(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var settled *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model OrderModel
		err := tx.Preload("Items").Where("id = ?", orderID.String()).First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewOrderNotFound(orderID)
			}
			return errors.Wrapf(err, "load order %s for settlement", orderID)
		}

		// 状态 CAS 先行：重复投递（订单已 Completed/Cancelled）在这里
		// 幂等退出，不会再碰库存。
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", orderID.String(), string(domain.StatusConfirmed)).
			Updates(map[string]interface{}{
				"status":     string(domain.StatusCompleted),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "complete order %s", orderID)
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadySettled
		}

		for _, item := range model.Items {
			res := tx.Model(&ProductModel{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				Update("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return errors.Wrapf(res.Error, "decrement stock of product %s", item.ProductID)
			}
			if res.RowsAffected == 0 {
				// 迟到发现的库存冲突：整体回滚，库存保持原状
				return domain.ErrInsufficientStock
			}
		}

		var reloaded OrderModel
		if err := tx.Preload("Items").Where("id = ?", orderID.String()).First(&reloaded).Error; err != nil {
			return errors.Wrapf(err, "reload order %s", orderID)
		}
		settled = toDomainOrder(&reloaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// CancelIfConfirmed 执行 Confirmed→Cancelled 的 CAS。没有命中时
// （订单不存在或已在其他状态）返回 applied=false，调用方按幂等处理。
func (r *GormOrderRepository) CancelIfConfirmed(ctx context.Context, orderID uuid.UUID) (*domain.Order, bool, error) {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", orderID.String(), string(domain.StatusConfirmed)).
		Updates(map[string]interface{}{
			"status":     string(domain.StatusCancelled),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, false, errors.Wrapf(res.Error, "cancel order %s", orderID)
	}
	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, res.RowsAffected > 0, nil
}
