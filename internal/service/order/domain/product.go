// internal/service/order/domain/product.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product 是目录里的商品。Stock 只会被结算消费者在支付成功时扣减，
// 下单和改单只读库存做可用性校验。
// 系统级不变式：Stock 永远 >= 0。
type Product struct {
	ID         uuid.UUID
	Name       string // 目录内唯一
	PriceCents int64  // > 0
	Stock      int    // >= 0
	CreatedAt  time.Time
}
