// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/google/uuid"

	"chomp/internal/contracts"
)

// Order 是订单聚合的根实体。TotalPrice 永远是派生值，不落库。
// Version 是乐观并发令牌：同一订单上的确认、改单和结算可能竞争，
// 所有写入都以版本号做 CAS。
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	PaymentType contracts.PaymentType
	Status      Status
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []OrderItem
}

// OrderItem 是订单拥有的行项目。UnitPriceCents 是下单或最近一次
// 改单时从目录快照的价格，目录调价不回溯。
// 不变式：同一订单内每个 ProductID 至多一个行项目。
type OrderItem struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
}

// ItemSpec 是各操作的输入行（纯数据，不带传输层痕迹）。
type ItemSpec struct {
	ProductID uuid.UUID
	Quantity  int
}

// NewOrder 创建一个 Pending 态订单。行项目由调用方（应用层）按
// 当前目录价快照后传入，这里只做聚合不变式检查。
func NewOrder(customerID uuid.UUID, paymentType contracts.PaymentType, items []OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, NewValidationError("item quantity must be greater than 0")
		}
		if seen[it.ProductID] {
			return nil, NewValidationError("duplicate product %s in order items", it.ProductID)
		}
		seen[it.ProductID] = true
	}
	now := time.Now().UTC()
	return &Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		PaymentType: paymentType,
		Status:      StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}, nil
}

// TotalPriceCents 派生订单总价：Σ(Quantity × UnitPrice)。
func (o *Order) TotalPriceCents() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.UnitPriceCents
	}
	return total
}

// Editable 报告订单是否还允许修改行项目。只有 Pending 可编辑。
func (o *Order) Editable() bool {
	return o.Status == StatusPending
}

// Confirm 执行 Pending → Confirmed。纯状态流转，没有库存副作用。
func (o *Order) Confirm() error {
	if o.Status != StatusPending {
		return NewConflictError("order is already " + string(o.Status) + ", only pending orders can be confirmed")
	}
	o.Status = StatusConfirmed
	o.touch()
	return nil
}

// Complete 执行 Confirmed → Completed，由结算消费者在支付成功后调用。
func (o *Order) Complete() error {
	if o.Status != StatusConfirmed {
		return ErrAlreadySettled
	}
	o.Status = StatusCompleted
	o.touch()
	return nil
}

// Cancel 将订单置为 Cancelled。终态订单不可再取消。
func (o *Order) Cancel() error {
	if o.Status.Terminal() {
		return NewConflictError("order is already " + string(o.Status))
	}
	o.Status = StatusCancelled
	o.touch()
	return nil
}

// ItemByProduct 返回指定商品对应的行项目，不存在时返回 nil。
func (o *Order) ItemByProduct(productID uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// RemoveItem 按 ProductID 删除行项目，返回是否删除了。
func (o *Order) RemoveItem(productID uuid.UUID) bool {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
