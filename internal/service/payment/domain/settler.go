// internal/service/payment/domain/settler.go
package domain

import (
	"context"

	"github.com/google/uuid"

	"chomp/internal/contracts"
)

// SettleRequest 是交给具体支付方式的扣款指令。
type SettleRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	AmountCents int64
}

// Outcome 是一次结算的业务结果。业务性失败（余额不足、超限额）走
// Failed，基础设施故障走 Settler 的 error 返回值，两者路径不同。
type Outcome struct {
	Succeeded bool
	Reason    string
}

func Succeeded() Outcome           { return Outcome{Succeeded: true} }
func Failed(reason string) Outcome { return Outcome{Reason: reason} }

// Settler 是一种支付方式的结算实现。
type Settler interface {
	Method() contracts.PaymentType
	Settle(ctx context.Context, req SettleRequest) (Outcome, error)
}

// Registry 按支付方式路由到对应 Settler。未知的支付方式是协议级
// 错误（大概率是事件格式漂移），必须显式失败而不能默默放行。
type Registry struct {
	settlers map[contracts.PaymentType]Settler
}

func NewRegistry(settlers ...Settler) *Registry {
	m := make(map[contracts.PaymentType]Settler, len(settlers))
	for _, s := range settlers {
		m[s.Method()] = s
	}
	return &Registry{settlers: m}
}

func (r *Registry) Resolve(method contracts.PaymentType) (Settler, error) {
	s, ok := r.settlers[method]
	if !ok {
		return nil, NewFatalError("no settler registered for payment type %q", method)
	}
	return s, nil
}
