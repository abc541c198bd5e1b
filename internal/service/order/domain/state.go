// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态。
// 全序：Pending → Confirmed → {Completed | Cancelled}。
type Status string

const (
	StatusPending   Status = "PENDING"   // 可编辑，唯一允许修改行项目的状态
	StatusConfirmed Status = "CONFIRMED" // 已确认，等待支付结果的过渡态
	StatusCompleted Status = "COMPLETED" // 终态：支付成功且库存已扣减
	StatusCancelled Status = "CANCELLED" // 终态：删除/支付失败/用户注销/支付超时
)

// Terminal 报告状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
