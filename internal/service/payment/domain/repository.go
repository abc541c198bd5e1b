// internal/service/payment/domain/repository.go
package domain

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository 持久化支付记录。
// Create 在订单已有支付记录时返回 ErrDuplicatePayment。
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
}
