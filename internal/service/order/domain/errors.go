// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// 错误分类：
//
//	ValidationError —— 请求本身不合法，永不重试
//	NotFoundError   —— 订单/商品不存在，原样返回调用方
//	ConflictError   —— 非法状态流转或库存不足，原样返回调用方
//	FatalError      —— 未知支付方式、数据损坏，记录后进入死信
//
// 仓储层的并发冲突用哨兵错误表示。
var (
	// ErrOptimisticLock 表示订单在本次读-改-写之间被其他事务修改。
	ErrOptimisticLock = errors.New("order has been modified by another transaction")
	// ErrInsufficientStock 表示结算时的条件扣减没有命中（库存不够）。
	ErrInsufficientStock = errors.New("insufficient stock at settlement")
	// ErrAlreadySettled 表示订单已不在 Confirmed 态，结算是重复投递。
	ErrAlreadySettled = errors.New("order already settled")
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError 聚合了一批缺失的资源 ID：批量校验时一次性报告，
// 而不是在第一个缺失项上失败。
type NotFoundError struct {
	Resource string
	IDs      []uuid.UUID
}

func (e *NotFoundError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, strings.Join(ids, ", "))
}

func NewOrderNotFound(id uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: "order", IDs: []uuid.UUID{id}}
}

func NewProductsNotFound(ids []uuid.UUID) *NotFoundError {
	return &NotFoundError{Resource: "products", IDs: ids}
}

// ConflictError 携带逐项明细（例如每个库存不足的商品一行）。
type ConflictError struct {
	Msg     string
	Details []string
}

func (e *ConflictError) Error() string {
	if len(e.Details) == 0 {
		return e.Msg
	}
	return e.Msg + ": " + strings.Join(e.Details, "; ")
}

func NewConflictError(msg string, details ...string) *ConflictError {
	return &ConflictError{Msg: msg, Details: details}
}

type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

// Unretryable 让消息处理链路把这类错误直接送进死信而不是重试。
func (e *FatalError) Unretryable() bool { return true }

func NewFatalError(format string, args ...any) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}
