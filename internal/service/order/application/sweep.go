// internal/service/order/application/sweep.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/metrics"
	"chomp/internal/service/order/domain"
)

const sweepBatchSize = 100

// Reconciler 兜底清理卡在 Confirmed 超过支付期限的订单。支付结果
// 丢失（支付服务宕机、DLT）时订单不会永远悬着，由这里判定超时取消。
type Reconciler struct {
	orders   domain.OrderRepository
	settle   *SettlementService
	deadline time.Duration
	tracer   trace.Tracer
}

func NewReconciler(orders domain.OrderRepository, settle *SettlementService, deadline time.Duration, tracer trace.Tracer) *Reconciler {
	return &Reconciler{orders: orders, settle: settle, deadline: deadline, tracer: tracer}
}

// Sweep 分批扫描超时的 Confirmed 订单并逐单条件取消。
// 每一单都走 Confirmed→Cancelled 的 CAS：扫描和结算并发时，
// 先到者生效，后到者空转。
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "order.Sweep")
	defer span.End()

	cutoff := time.Now().UTC().Add(-r.deadline)
	total := 0
	for {
		stale, err := r.orders.FindConfirmedBefore(ctx, cutoff, sweepBatchSize)
		if err != nil {
			span.RecordError(err)
			return total, err
		}
		if len(stale) == 0 {
			break
		}
		progressed := 0
		for _, order := range stale {
			if err := r.settle.cancelConfirmed(ctx, order.ID, "payment window expired"); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel stale order")
				continue
			}
			metrics.Settlements.WithLabelValues("expired").Inc()
			progressed++
			total++
		}
		// 一个都没取消掉说明数据库在闹脾气，留给下一轮调度
		if progressed == 0 || len(stale) < sweepBatchSize {
			break
		}
	}
	if total > 0 {
		logger.Ctx(ctx).Info().Int("orders_cancelled", total).Msg("⏰ payment deadline sweep finished")
	}
	return total, nil
}
