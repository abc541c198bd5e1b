// internal/service/order/application/settlement.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"chomp/internal/contracts"
	"chomp/internal/pkg/idempotency"
	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/metrics"
	"chomp/internal/service/order/domain"
)

// SettlementService 消费支付侧的结算结果，驱动 Confirmed 订单走向
// 终态。Kafka 是 at-least-once，这里的每条路径都必须幂等：
//   - Redis SETNX 去重是快速路径；
//   - 数据库里 Confirmed→终态 的条件更新才是真正的护栏。
type SettlementService struct {
	orders domain.OrderRepository
	bus    EventPublisher
	dedup  idempotency.Store
	tracer trace.Tracer
}

func NewSettlementService(orders domain.OrderRepository, bus EventPublisher, dedup idempotency.Store, tracer trace.Tracer) *SettlementService {
	return &SettlementService{orders: orders, bus: bus, dedup: dedup, tracer: tracer}
}

// HandlePaymentSucceeded 完成订单并原子扣减库存。
// 库存不足不是基础设施故障而是正常的结算失败：订单转 Cancelled，
// 消息不重投。
func (s *SettlementService) HandlePaymentSucceeded(ctx context.Context, ev contracts.PaymentSucceededEvent) error {
	ctx, span := s.tracer.Start(ctx, "order.HandlePaymentSucceeded", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	log := logger.Ctx(ctx).With().Str("order_id", ev.OrderID.String()).Str("payment_id", ev.PaymentID.String()).Logger()

	first, err := s.dedup.FirstSeen(ctx, "settle:"+ev.PaymentID.String())
	if err != nil {
		// Redis 故障时放行：数据库 CAS 会兜住重复
		log.Warn().Err(err).Msg("dedup store unavailable, relying on database guard")
	} else if !first {
		metrics.Settlements.WithLabelValues("duplicate").Inc()
		log.Info().Msg("🔁 duplicate payment result, skipping")
		return nil
	}

	order, err := s.orders.CompleteAndDecrementStock(ctx, ev.OrderID)
	switch {
	case err == nil:
		metrics.Settlements.WithLabelValues("completed").Inc()
		log.Info().Int64("total_cents", order.TotalPriceCents()).Msg("✅ order completed, stock decremented")
		return nil

	case errors.Is(err, domain.ErrAlreadySettled):
		metrics.Settlements.WithLabelValues("duplicate").Inc()
		log.Info().Msg("🔁 order already settled, skipping")
		return nil

	case errors.Is(err, domain.ErrInsufficientStock):
		metrics.Settlements.WithLabelValues("stock_conflict").Inc()
		log.Warn().Msg("⚠️ stock ran out between confirmation and settlement, cancelling order")
		return s.cancelConfirmed(ctx, ev.OrderID, "insufficient stock at settlement")

	default:
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			// 订单在结算前被删掉了，没有可结算的东西
			log.Warn().Msg("order no longer exists, dropping payment result")
			return nil
		}
		// 基础设施错误：撤销去重标记让 broker 重投
		if ferr := s.dedup.Forget(ctx, "settle:"+ev.PaymentID.String()); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to release dedup key")
		}
		span.RecordError(err)
		return err
	}
}

// HandlePaymentFailed 把 Confirmed 订单转为 Cancelled。
// 订单已不在 Confirmed 态时视为重复投递，不做任何事。
func (s *SettlementService) HandlePaymentFailed(ctx context.Context, ev contracts.PaymentFailedEvent) error {
	ctx, span := s.tracer.Start(ctx, "order.HandlePaymentFailed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	logger.Ctx(ctx).Info().
		Str("order_id", ev.OrderID.String()).
		Str("reason", ev.Reason).
		Msg("💳 payment failed, cancelling order")
	metrics.Settlements.WithLabelValues("payment_failed").Inc()
	return s.cancelConfirmed(ctx, ev.OrderID, "payment failed: "+ev.Reason)
}

// cancelConfirmed 用条件更新做 Confirmed→Cancelled，只有真正完成
// 转换的那一次调用才发布 OrderCancelledEvent。
func (s *SettlementService) cancelConfirmed(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, applied, err := s.orders.CancelIfConfirmed(ctx, orderID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			logger.Ctx(ctx).Warn().Str("order_id", orderID.String()).Msg("order no longer exists, nothing to cancel")
			return nil
		}
		return err
	}
	if !applied {
		logger.Ctx(ctx).Info().
			Str("order_id", orderID.String()).
			Str("status", string(order.Status)).
			Msg("order not in confirmed state, skipping cancellation")
		return nil
	}

	if err := s.bus.Publish(ctx, contracts.TopicOrderCancelled, orderID.String(), contracts.OrderCancelledEvent{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Reason:      reason,
		CancelledAt: time.Now().UTC(),
	}); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID.String()).Msg("failed to publish cancellation event")
	}
	logger.Ctx(ctx).Info().Str("order_id", orderID.String()).Str("reason", reason).Msg("order cancelled")
	return nil
}
