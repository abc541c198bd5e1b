// internal/service/payment/application/processor.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chomp/internal/contracts"
	"chomp/internal/pkg/idempotency"
	"chomp/internal/pkg/logger"
	"chomp/internal/pkg/metrics"
	"chomp/internal/service/payment/domain"
)

// EventPublisher 是支付侧对事件总线的出站端口。
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// PaymentProcessor 消费 OrderConfirmedEvent，为每个订单落一条支付
// 记录并路由到对应的结算策略。saga 契约：每条被成功处理的确认事件
// 最终恰好产生一条 PaymentSucceeded 或 PaymentFailed。
type PaymentProcessor struct {
	payments domain.PaymentRepository
	registry *domain.Registry
	bus      EventPublisher
	dedup    idempotency.Store
	tracer   trace.Tracer
}

func NewPaymentProcessor(payments domain.PaymentRepository, registry *domain.Registry, bus EventPublisher, dedup idempotency.Store, tracer trace.Tracer) *PaymentProcessor {
	return &PaymentProcessor{payments: payments, registry: registry, bus: bus, dedup: dedup, tracer: tracer}
}

// HandleOrderConfirmed 是支付侧的唯一入口。
// 幂等性两级：Redis SETNX 快速路径 + payments.order_id 唯一索引兜底。
// 策略抛出的基础设施错误不进入无限重试：按决定的语义在 catch 路径
// 发布 PaymentFailedEvent，把失败交还给订单侧结算。
func (p *PaymentProcessor) HandleOrderConfirmed(ctx context.Context, ev contracts.OrderConfirmedEvent) error {
	ctx, span := p.tracer.Start(ctx, "payment.HandleOrderConfirmed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	log := logger.Ctx(ctx).With().
		Str("order_id", ev.OrderID.String()).
		Str("payment_type", string(ev.PaymentType)).
		Logger()

	// 未知支付方式在落库前就失败：FatalError 直接进死信，不留下
	// 永远 Pending 的支付记录
	settler, err := p.registry.Resolve(ev.PaymentType)
	if err != nil {
		log.Error().Err(err).Msg("🛑 unknown payment type, refusing to settle")
		metrics.PaymentDecisions.WithLabelValues(string(ev.PaymentType), "unknown_type").Inc()
		return err
	}

	first, err := p.dedup.FirstSeen(ctx, "pay:order:"+ev.OrderID.String())
	if err != nil {
		log.Warn().Err(err).Msg("dedup store unavailable, relying on database guard")
	} else if !first {
		log.Info().Msg("🔁 order already being settled, skipping")
		return nil
	}

	payment := domain.NewPayment(ev.OrderID, ev.CustomerID, ev.TotalPriceCents, ev.PaymentType)
	if err := p.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			log.Info().Msg("🔁 payment record already exists, skipping")
			return nil
		}
		// 基础设施错误：撤销去重标记让 broker 重投
		if ferr := p.dedup.Forget(ctx, "pay:order:"+ev.OrderID.String()); ferr != nil {
			log.Warn().Err(ferr).Msg("failed to release dedup key")
		}
		span.RecordError(err)
		return err
	}

	outcome, err := settler.Settle(ctx, domain.SettleRequest{
		PaymentID:   payment.ID,
		OrderID:     ev.OrderID,
		CustomerID:  ev.CustomerID,
		AmountCents: ev.TotalPriceCents,
	})
	if err != nil {
		// 策略内部故障也要让 saga 走完：记失败并通知订单侧，
		// 而不是把消息留在重试循环里
		log.Error().Err(err).Msg("settlement strategy failed")
		outcome = domain.Failed("settlement failed: " + err.Error())
	}

	if outcome.Succeeded {
		payment.Complete()
	} else {
		payment.Fail(outcome.Reason)
	}
	if err := p.payments.Save(ctx, payment); err != nil {
		// 决议已做出但没落库：不重投（会二次扣款），留给对账
		log.Error().Err(err).Str("status", string(payment.Status)).Msg("failed to persist payment outcome")
	}

	return p.publishOutcome(ctx, payment, outcome)
}

func (p *PaymentProcessor) publishOutcome(ctx context.Context, payment *domain.Payment, outcome domain.Outcome) error {
	log := logger.Ctx(ctx).With().
		Str("order_id", payment.OrderID.String()).
		Str("payment_id", payment.ID.String()).
		Logger()

	if outcome.Succeeded {
		metrics.PaymentDecisions.WithLabelValues(string(payment.Method), "succeeded").Inc()
		log.Info().Int64("amount_cents", payment.AmountCents).Msg("✅ payment succeeded")
		return p.bus.Publish(ctx, contracts.TopicPaymentSucceeded, payment.OrderID.String(), contracts.PaymentSucceededEvent{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			CustomerID:  payment.CustomerID,
			AmountCents: payment.AmountCents,
			PaidAt:      time.Now().UTC(),
		})
	}

	metrics.PaymentDecisions.WithLabelValues(string(payment.Method), "failed").Inc()
	log.Warn().Str("reason", outcome.Reason).Msg("💳 payment failed")
	return p.bus.Publish(ctx, contracts.TopicPaymentFailed, payment.OrderID.String(), contracts.PaymentFailedEvent{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		CustomerID: payment.CustomerID,
		Reason:     outcome.Reason,
		FailedAt:   time.Now().UTC(),
	})
}
