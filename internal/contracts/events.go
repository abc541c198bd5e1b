// internal/contracts/events.go
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// 事件按类型名落在独立 topic 上，类型名就是兼容性版本。
// 分区 key 使用聚合 ID（订单事件用 OrderID，用户事件用 UserID），
// 保证同一聚合的事件对单个消费组有序。
const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderUpdated     = "order.updated"
	TopicOrderConfirmed   = "order.confirmed"
	TopicOrderCancelled   = "order.cancelled"
	TopicPaymentSucceeded = "payment.succeeded"
	TopicPaymentFailed    = "payment.failed"
	TopicUserDeleted      = "user.deleted"
)

// PaymentType 是下单时选择的支付方式。
type PaymentType string

const (
	PaymentWalletBalance  PaymentType = "WALLET_BALANCE"
	PaymentCashOnDelivery PaymentType = "CASH_ON_DELIVERY"
	PaymentExternalWallet PaymentType = "EXTERNAL_WALLET"
	PaymentBankTransfer   PaymentType = "BANK_TRANSFER"
)

// Valid 判断支付方式是否是已知的四种之一。
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentWalletBalance, PaymentCashOnDelivery, PaymentExternalWallet, PaymentBankTransfer:
		return true
	}
	return false
}

// OrderItem 是事件里携带的行项目快照。UnitPriceCents 是下单/改单时刻
// 的价格快照，金额一律使用分，避免浮点误差。
type OrderItem struct {
	OrderItemID    uuid.UUID `json:"orderItemId"`
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

// 事件载荷刻意冗余：消费方不需要回查订单服务就能完成处理，
// 订单服务不可用时 saga 依然可以推进。

type OrderPlacedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	CustomerID      uuid.UUID   `json:"customerId"`
	TotalPriceCents int64       `json:"totalPriceCents"`
	CreatedAt       time.Time   `json:"createdAt"`
	Items           []OrderItem `json:"items"`
}

type OrderUpdatedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	CustomerID      uuid.UUID   `json:"customerId"`
	PaymentType     PaymentType `json:"paymentType"`
	TotalPriceCents int64       `json:"totalPriceCents"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Items           []OrderItem `json:"items"`
}

// OrderConfirmedEvent 是交给支付侧的唯一交接物，必须携带支付侧
// 需要的全部信息。
type OrderConfirmedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	CustomerID      uuid.UUID   `json:"customerId"`
	PaymentType     PaymentType `json:"paymentType"`
	TotalPriceCents int64       `json:"totalPriceCents"`
	CompletedAt     time.Time   `json:"completedAt"`
}

type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	CustomerID  uuid.UUID `json:"customerId"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type PaymentSucceededEvent struct {
	PaymentID   uuid.UUID `json:"paymentId"`
	OrderID     uuid.UUID `json:"orderId"`
	CustomerID  uuid.UUID `json:"customerId"`
	AmountCents int64     `json:"amountCents"`
	PaidAt      time.Time `json:"paidAt"`
}

type PaymentFailedEvent struct {
	PaymentID  uuid.UUID `json:"paymentId"`
	OrderID    uuid.UUID `json:"orderId"`
	CustomerID uuid.UUID `json:"customerId"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failedAt"`
}

type UserDeletedEvent struct {
	UserID    uuid.UUID `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ContactNo string    `json:"contactNo"`
	DeletedAt time.Time `json:"deletedAt"`
}
