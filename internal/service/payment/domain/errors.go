// internal/service/payment/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicatePayment 表示该订单已经存在一条支付记录（order_id
	// 唯一索引命中），本次投递是重复。
	ErrDuplicatePayment = errors.New("payment already exists for this order")
	// ErrPaymentNotFound 表示按订单查不到支付记录。
	ErrPaymentNotFound = errors.New("payment not found")
)

// FatalError 表示不可重试的处理失败（未知支付方式、损坏的事件），
// 重试只会得到同样的结果，消息应直接进入死信。
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

func (e *FatalError) Unretryable() bool { return true }

func NewFatalError(format string, args ...any) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}
