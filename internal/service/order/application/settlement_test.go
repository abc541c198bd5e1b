package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"chomp/internal/contracts"
	"chomp/internal/service/order/domain"
)

type settlementFixture struct {
	svc       *SettlementService
	lifecycle *OrderService
	orders    *fakeOrderRepo
	products  *fakeProductRepo
	bus       *fakeBus
	dedup     *fakeDedup
	productA  domain.Product
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	productA := domain.Product{ID: uuid.New(), Name: "Espresso Beans", PriceCents: 1200, Stock: 10}
	products := newFakeProductRepo(productA)
	orders := newFakeOrderRepo(products)
	bus := &fakeBus{}
	dedup := newFakeDedup()
	tracer := otel.Tracer("test")
	return &settlementFixture{
		svc:       NewSettlementService(orders, bus, dedup, tracer),
		lifecycle: NewOrderService(orders, products, bus, tracer),
		orders:    orders,
		products:  products,
		bus:       bus,
		dedup:     dedup,
		productA:  productA,
	}
}

// confirmedOrder 造一个 Confirmed 订单（指定商品数量）。
func (f *settlementFixture) confirmedOrder(t *testing.T, qty int) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.lifecycle.CreateOrder(ctx, uuid.New(), contracts.PaymentWalletBalance, []domain.ItemSpec{
		{ProductID: f.productA.ID, Quantity: qty},
	})
	require.NoError(t, err)
	confirmed, err := f.lifecycle.ConfirmOrder(ctx, order.ID)
	require.NoError(t, err)
	return confirmed
}

func paymentSucceeded(orderID uuid.UUID) contracts.PaymentSucceededEvent {
	return contracts.PaymentSucceededEvent{
		PaymentID:   uuid.New(),
		OrderID:     orderID,
		CustomerID:  uuid.New(),
		AmountCents: 1200,
		PaidAt:      time.Now().UTC(),
	}
}

func TestHandlePaymentSucceeded(t *testing.T) {
	ctx := context.Background()

	t.Run("completes order and decrements stock", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 4)

		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(order.ID)))

		settled, err := f.orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, settled.Status)
		assert.Equal(t, 6, f.products.stockOf(f.productA.ID))
	})

	t.Run("redelivery of the same payment is a no-op", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 4)
		ev := paymentSucceeded(order.ID)

		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, ev))
		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, ev))

		assert.Equal(t, 6, f.products.stockOf(f.productA.ID), "stock must be decremented exactly once")
	})

	t.Run("database guard catches duplicates even without dedup store", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 4)
		f.dedup.err = errors.New("redis down")

		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(order.ID)))
		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(order.ID)))

		assert.Equal(t, 6, f.products.stockOf(f.productA.ID))
	})

	t.Run("stock shortfall settles as a cancellation", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 8)
		// 确认之后库存被别的订单吃掉了
		f.products.decrement(f.productA.ID, 5)

		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(order.ID)))

		cancelled, err := f.orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, 5, f.products.stockOf(f.productA.ID), "failed settlement must not touch stock")

		last := f.bus.last()
		require.Equal(t, contracts.TopicOrderCancelled, last.Topic)
		assert.Equal(t, "insufficient stock at settlement", last.Payload.(contracts.OrderCancelledEvent).Reason)
	})

	t.Run("missing order is dropped", func(t *testing.T) {
		f := newSettlementFixture(t)
		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(uuid.New())))
	})

	t.Run("infrastructure errors propagate and release the dedup key", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 2)
		f.orders.failOps["CompleteAndDecrementStock"] = errors.New("connection reset")
		ev := paymentSucceeded(order.ID)

		require.Error(t, f.svc.HandlePaymentSucceeded(ctx, ev))

		// 重投必须能再次走到结算，而不是被去重标记挡住
		f.orders.failOps = map[string]error{}
		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, ev))
		settled, err := f.orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, settled.Status)
	})
}

// 两个 6 件的订单竞争 10 件库存：恰好一个完成，另一个干净地取消，
// 剩余库存 4，永远不会为负。
func TestSettlementStockRace(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)
	first := f.confirmedOrder(t, 6)
	second := f.confirmedOrder(t, 6)

	done := make(chan error, 2)
	for _, order := range []*domain.Order{first, second} {
		go func(id uuid.UUID) {
			done <- f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(id))
		}(order.ID)
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	statuses := map[domain.Status]int{}
	for _, id := range []uuid.UUID{first.ID, second.ID} {
		o, err := f.orders.FindByID(ctx, id)
		require.NoError(t, err)
		statuses[o.Status]++
	}
	assert.Equal(t, 1, statuses[domain.StatusCompleted])
	assert.Equal(t, 1, statuses[domain.StatusCancelled])
	assert.Equal(t, 4, f.products.stockOf(f.productA.ID))
}

func TestHandlePaymentFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels the confirmed order", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 2)

		err := f.svc.HandlePaymentFailed(ctx, contracts.PaymentFailedEvent{
			PaymentID: uuid.New(),
			OrderID:   order.ID,
			Reason:    "insufficient wallet balance",
			FailedAt:  time.Now().UTC(),
		})
		require.NoError(t, err)

		cancelled, err := f.orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, 10, f.products.stockOf(f.productA.ID), "payment failure never touches stock")

		last := f.bus.last()
		require.Equal(t, contracts.TopicOrderCancelled, last.Topic)
		assert.Equal(t, "payment failed: insufficient wallet balance", last.Payload.(contracts.OrderCancelledEvent).Reason)
	})

	t.Run("already settled order is left alone", func(t *testing.T) {
		f := newSettlementFixture(t)
		order := f.confirmedOrder(t, 2)
		require.NoError(t, f.svc.HandlePaymentSucceeded(ctx, paymentSucceeded(order.ID)))
		published := len(f.bus.topics())

		err := f.svc.HandlePaymentFailed(ctx, contracts.PaymentFailedEvent{OrderID: order.ID, Reason: "late failure"})
		require.NoError(t, err)

		settled, err := f.orders.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, settled.Status)
		assert.Len(t, f.bus.topics(), published, "no cancellation event for a completed order")
	})
}

func TestUserDeletedCancelsOrders(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)
	customerID := uuid.New()

	order, err := f.lifecycle.CreateOrder(ctx, customerID, contracts.PaymentWalletBalance, []domain.ItemSpec{
		{ProductID: f.productA.ID, Quantity: 1},
	})
	require.NoError(t, err)

	// user.deleted 消费者走生命周期服务的批量取消
	ev := contracts.UserDeletedEvent{UserID: customerID, DeletedAt: time.Now().UTC()}
	count, err := f.lifecycle.CancelOrdersForUser(ctx, ev.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	cancelled, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
}

func TestReconcilerSweep(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(t)
	reconciler := NewReconciler(f.orders, f.svc, 15*time.Minute, otel.Tracer("test"))

	stale := f.confirmedOrder(t, 1)
	fresh := f.confirmedOrder(t, 1)
	// 把 stale 的 UpdatedAt 拨回期限之外
	f.orders.mu.Lock()
	f.orders.orders[stale.ID].UpdatedAt = time.Now().UTC().Add(-time.Hour)
	f.orders.mu.Unlock()

	cancelled, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	staleOrder, err := f.orders.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, staleOrder.Status)
	ev := f.bus.last().Payload.(contracts.OrderCancelledEvent)
	assert.Equal(t, "payment window expired", ev.Reason)

	freshOrder, err := f.orders.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, freshOrder.Status)
}
