// internal/service/payment/domain/payment.go
package domain

import (
	"time"

	"github.com/google/uuid"

	"chomp/internal/contracts"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Payment 是一笔订单结算记录。一个订单最多一条（order_id 唯一索引），
// 这是支付侧幂等的最终护栏。
type Payment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	CustomerID    uuid.UUID
	AmountCents   int64
	Method        contracts.PaymentType
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayment(orderID, customerID uuid.UUID, amountCents int64, method contracts.PaymentType) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:          uuid.New(),
		OrderID:     orderID,
		CustomerID:  customerID,
		AmountCents: amountCents,
		Method:      method,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Payment) Complete() {
	p.Status = StatusCompleted
	p.UpdatedAt = time.Now().UTC()
}

func (p *Payment) Fail(reason string) {
	p.Status = StatusFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now().UTC()
}
