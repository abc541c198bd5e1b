// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 位于领域层，由基础设施层实现。
type OrderRepository interface {
	// Create 持久化一个新订单及其行项目。
	Create(ctx context.Context, order *Order) error

	// FindByID 加载订单及行项目；不存在时返回 *NotFoundError。
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// Save 以乐观锁保存聚合（行项目整体替换）。版本不匹配时返回
	// ErrOptimisticLock。
	Save(ctx context.Context, order *Order) error

	// Delete 删除订单及其行项目（组合关系）。
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByCustomer 返回该客户的全部订单（含行项目），按创建时间倒序。
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)

	// CancelAllForCustomer 用单条集合更新把该客户所有非终态订单置为
	// Cancelled，返回受影响行数。禁止 fetch-then-loop-then-save。
	CancelAllForCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)

	// FindConfirmedBefore 返回 Confirmed 且 UpdatedAt 早于 cutoff 的
	// 订单，供对账扫描取消卡单。
	FindConfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)

	// CompleteAndDecrementStock 在一个事务里完成结算：
	//   (a) 订单 Confirmed → Completed 的 CAS；
	//   (b) 每个行项目一条条件扣减
	//       UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?，
	//       任何一条没命中则整体回滚。
	// CAS 未命中返回 ErrAlreadySettled（重复投递的幂等出口），
	// 扣减未命中返回 ErrInsufficientStock，库存保持原状。
	CompleteAndDecrementStock(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// CancelIfConfirmed 执行 Confirmed → Cancelled 的 CAS，返回是否
	// 实际生效。已取消/已完成的订单返回 false, nil（重复投递幂等）。
	CancelIfConfirmed(ctx context.Context, orderID uuid.UUID) (*Order, bool, error)
}

// ProductRepository 是目录的查询/维护接口。核心流程只用 GetByIDs
// 读价与读库存；写操作供装载目录数据使用。
type ProductRepository interface {
	// GetByIDs 批量加载商品，缺失的 ID 不报错，由调用方对账。
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	Create(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}
